//go:build linux

package devwatch

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// defaultSource opens the platform event source for dir. On Linux this
// is a raw inotify watch, drained non-blockingly and decoded by
// DecodeEvents.
func defaultSource(dir string) (Source, error) {
	return newInotifySource(dir)
}

type inotifySource struct {
	ready chan struct{}
	done  chan struct{}

	mu     sync.Mutex
	fd     int
	closed bool

	wake      [2]int // self-pipe, unblocks the poller on Close
	pollerEnd chan struct{}
	closeOnce sync.Once
}

func newInotifySource(dir string) (*inotifySource, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, dir, unix.IN_CREATE|unix.IN_MOVED_TO); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("inotify_add_watch %s: %w", dir, err)
	}
	s := &inotifySource{
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
		fd:        fd,
		pollerEnd: make(chan struct{}),
	}
	if err := unix.Pipe2(s.wake[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("pipe2: %w", err)
	}
	go s.pollLoop()
	return s, nil
}

func (s *inotifySource) Ready() <-chan struct{} { return s.ready }

// pollLoop waits for the inotify descriptor to become readable and
// hands the consumer one readiness signal at a time. It exits when the
// wake pipe fires and then releases the descriptors, so teardown
// completes before Close returns.
func (s *inotifySource) pollLoop() {
	defer close(s.pollerEnd)
	defer close(s.ready)
	defer func() {
		s.mu.Lock()
		unix.Close(s.fd)
		s.fd = -1
		s.mu.Unlock()
		unix.Close(s.wake[0])
	}()

	fds := []unix.PollFd{
		{Fd: int32(s.fd), Events: unix.POLLIN},
		{Fd: int32(s.wake[0]), Events: unix.POLLIN},
	}
	for {
		fds[0].Revents = 0
		fds[1].Revents = 0
		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if fds[1].Revents != 0 {
			return
		}
		select {
		case s.ready <- struct{}{}:
		case <-s.done:
			return
		}
	}
}

func (s *inotifySource) ReadEvents() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var (
		events    []Event
		decodeErr error
	)
	buf := make([]byte, 64*1024)
	for {
		n, err := unix.Read(s.fd, buf)
		if n > 0 {
			decoded, derr := DecodeEvents(buf[:n])
			events = append(events, decoded...)
			if derr != nil {
				decodeErr = derr
			}
		}
		switch err {
		case nil:
			if n <= 0 {
				return events, decodeErr
			}
		case unix.EAGAIN:
			return events, decodeErr
		case unix.EINTR:
			// retry
		default:
			return events, fmt.Errorf("inotify read: %w", err)
		}
	}
}

func (s *inotifySource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		unix.Write(s.wake[1], []byte{0})
		<-s.pollerEnd
		unix.Close(s.wake[1])
	})
	return nil
}
