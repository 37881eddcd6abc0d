package devwatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// Option configures a Searcher at construction.
type Option func(*options)

type options struct {
	source Source
	root   string
	diag   func(error)
}

// WithSource substitutes the event source the Searcher consumes.
// Intended for NewSearcherAt and for tests; the source must feed
// events for the directory the Searcher ends up watching.
func WithSource(src Source) Option {
	return func(o *options) { o.source = src }
}

// WithDeviceRoot relocates the device root, normally /dev. Useful in
// containers and tests.
func WithDeviceRoot(root string) Option {
	return func(o *options) { o.root = root }
}

// WithDiagnostics replaces the default klog reporting of non-fatal
// decode faults.
func WithDiagnostics(fn func(error)) Option {
	return func(o *options) { o.diag = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		root: defaultDeviceRoot,
		diag: func(err error) { klog.Warningf("devwatch: %v", err) },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Searcher yields discovered device entries one at a time. Entries
// present at construction are yielded before any event-sourced entry,
// in enumeration order; no name is ever yielded twice by the same
// Searcher. A Searcher is meant to be driven by a single consumer.
type Searcher struct {
	class  Class
	dir    string
	prefix string

	source  Source
	pending []Found
	seen    map[string]struct{}
	diag    func(error)
	err     error

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewSearcher watches the well-known directory for the given device
// class, trying the class's candidate directories in priority order.
func NewSearcher(class Class, opts ...Option) (*Searcher, error) {
	o := buildOptions(opts)
	rules := class.rules(o.root)
	if len(rules) == 0 {
		return nil, &SourceUnavailableError{
			Dir: o.root,
			Err: errors.New("no watch rules for class " + class.String()),
		}
	}
	var lastErr error
	for _, rule := range rules {
		s, err := newSearcher(class, rule.dir, rule.prefix, o)
		if err == nil {
			return s, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// NewSearcherAt watches an arbitrary directory for entries with the
// given name prefix. An empty prefix matches every entry.
func NewSearcherAt(dir, prefix string, opts ...Option) (*Searcher, error) {
	return newSearcher(ClassUnknown, dir, prefix, buildOptions(opts))
}

func newSearcher(class Class, dir, prefix string, o options) (*Searcher, error) {
	src := o.source
	if src == nil {
		var err error
		src, err = defaultSource(dir)
		if err != nil {
			return nil, &SourceUnavailableError{Dir: dir, Err: err}
		}
	}
	s := &Searcher{
		class:  class,
		dir:    dir,
		prefix: prefix,
		source: src,
		seen:   make(map[string]struct{}),
		diag:   o.diag,
		closed: make(chan struct{}),
	}
	if err := s.scan(); err != nil {
		src.Close()
		return nil, &SourceUnavailableError{Dir: dir, Err: err}
	}
	klog.V(5).Infof("devwatch: watching %s for %q* entries", dir, prefix)
	return s, nil
}

// scan enumerates the directory once, before any event is consumed.
// Creation events observed later for these names are deduplicated.
func (s *Searcher) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		s.ingest(Event{Name: entry.Name(), Created: true})
	}
	return nil
}

func (s *Searcher) ingest(ev Event) {
	if !ev.Created || ev.Name == "" || !strings.HasPrefix(ev.Name, s.prefix) {
		return
	}
	if _, dup := s.seen[ev.Name]; dup {
		klog.V(5).Infof("devwatch: duplicate creation record for %s, ignoring", ev.Name)
		return
	}
	s.seen[ev.Name] = struct{}{}
	s.pending = append(s.pending, Found{
		Path:  filepath.Join(s.dir, ev.Name),
		Class: s.class,
	})
}

// Next returns the next discovered entry. It drains the pending buffer
// without touching the kernel; only with an empty buffer does it await
// source readiness. Cancelling ctx abandons the wait for this call
// only; ErrClosed is returned once the Searcher is closed, and a
// *SourceError is terminal.
func (s *Searcher) Next(ctx context.Context) (Found, error) {
	for {
		if len(s.pending) > 0 {
			found := s.pending[0]
			s.pending = s.pending[1:]
			return found, nil
		}
		if s.err != nil {
			return Found{}, s.err
		}
		select {
		case <-ctx.Done():
			return Found{}, ctx.Err()
		case <-s.closed:
			return Found{}, ErrClosed
		case _, ok := <-s.source.Ready():
			if !ok {
				select {
				case <-s.closed:
					return Found{}, ErrClosed
				default:
				}
				s.err = &SourceError{Err: errors.New("event source shut down")}
				continue
			}
			s.drain()
		}
	}
}

// drain reads and decodes everything the source has buffered. Decode
// faults are reported and skipped; any other read error is terminal,
// though entries decoded before it are still yielded first.
func (s *Searcher) drain() {
	events, err := s.source.ReadEvents()
	for _, ev := range events {
		s.ingest(ev)
	}
	if err == nil {
		return
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		s.diag(err)
		return
	}
	s.err = &SourceError{Err: err}
}

// Close releases the watch resource. It is safe to call while another
// goroutine is blocked in Next; that call returns ErrClosed.
func (s *Searcher) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.source.Close()
	})
	return s.closeErr
}
