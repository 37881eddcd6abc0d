package devwatch

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// NewPortableSource returns a Source backed by fsnotify. It is the
// default event source on platforms without a raw inotify backend and
// may be selected explicitly with WithSource.
func NewPortableSource(dir string) (Source, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	s := &fsnotifySource{
		watcher: watcher,
		ready:   make(chan struct{}, 1),
	}
	go s.pump()
	return s, nil
}

type fsnotifySource struct {
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	queue []Event
	err   error

	ready chan struct{}
}

func (s *fsnotifySource) Ready() <-chan struct{} { return s.ready }

// pump moves watcher notifications into the queue and pulses readiness
// without blocking, collapsing bursts into a single signal.
func (s *fsnotifySource) pump() {
	defer close(s.ready)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.mu.Lock()
			s.queue = append(s.queue, Event{
				Name:    filepath.Base(ev.Name),
				Created: ev.Op&fsnotify.Create != 0,
			})
			s.mu.Unlock()
			s.pulse()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.pulse()
		}
	}
}

func (s *fsnotifySource) pulse() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *fsnotifySource) ReadEvents() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.queue
	s.queue = nil
	err := s.err
	s.err = nil
	return events, err
}

func (s *fsnotifySource) Close() error {
	return s.watcher.Close()
}
