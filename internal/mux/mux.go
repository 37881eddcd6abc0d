package mux

import (
	"fmt"
	"time"
)

type Logger interface {
	Info(format string, args ...interface{})
}

type Sink[T any] interface {
	Submit(T) error
	Close()
}

type chanSink[T any] struct {
	ch chan<- T
}

func (c *chanSink[T]) Submit(v T) error {
	c.ch <- v
	return nil
}

func (c *chanSink[T]) Close() {
	close(c.ch)
}

func SinkFromChan[T any](ch chan<- T) Sink[T] {
	return &chanSink[T]{ch}
}

type filterSink[T any] struct {
	sink Sink[T]
	f    func(T) bool
}

func (c *filterSink[T]) Submit(v T) error {
	if c.f(v) {
		return c.sink.Submit(v)
	}
	return nil
}

func (c *filterSink[T]) Close() {
	c.sink.Close()
}

func FilterSink[T any](sink Sink[T], f func(T) bool) Sink[T] {
	return &filterSink[T]{sink, f}
}

type subRequest[T any] struct {
	sink Sink[T]
	done chan struct{}
}

type Mux[T any] struct {
	input      chan T
	register   chan subRequest[T]
	unregister chan subRequest[T]
	outputs    map[Sink[T]]bool

	submitTimeout time.Duration
	inBufSize     int
	logger        Logger
}

type Option[T any] interface {
	apply(*Mux[T])
}

type buffered[T any] struct {
	Size int
}

func (b *buffered[T]) apply(m *Mux[T]) {
	m.inBufSize = b.Size
}

func Buffered[T any](size int) Option[T] {
	return &buffered[T]{size}
}

type withLogger[T any] struct {
	Logger Logger
}

func (l *withLogger[T]) apply(m *Mux[T]) {
	m.logger = l.Logger
}

func WithLogger[T any](logger Logger) Option[T] {
	return &withLogger[T]{logger}
}

func Make[T any](opts ...Option[T]) *Mux[T] {
	mux := &Mux[T]{
		submitTimeout: 1 * time.Second,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(mux)
	}

	mux.input = make(chan T, mux.inBufSize)
	mux.register = make(chan subRequest[T])
	mux.unregister = make(chan subRequest[T])
	mux.outputs = make(map[Sink[T]]bool)

	go mux.run()

	return mux
}

func (c *Mux[T]) run() {
	defer func() {
		for sub := range c.outputs {
			delete(c.outputs, sub)
			sub.Close()
		}
	}()
	defer close(c.input)

	for {
		select {
		case v := <-c.input:
			for out := range c.outputs {
				if err := out.Submit(v); err != nil {
					c.error("error submitting value %v: %v", v, err)
				}
			}
		case req, ok := <-c.register:
			if !ok {
				return
			}
			c.outputs[req.sink] = true
			close(req.done)
		case req := <-c.unregister:
			delete(c.outputs, req.sink)
			req.sink.Close()
			close(req.done)
		}
	}
}

func (m *Mux[T]) error(format string, args ...any) error {
	if m.logger != nil {
		m.logger.Info(format, args...)
	}
	return fmt.Errorf(format, args...)
}

func (c *Mux[T]) Close() {
	close(c.register)
}

func (c *Mux[T]) Submit(v T) error {
	select {
	case c.input <- v:
		return nil
	case <-time.After(c.submitTimeout):
		return c.error("timed out submitting value %v after %s", v, c.submitTimeout)
	}
}

type CancelFunc func()

func (c *Mux[T]) Subscribe(sink Sink[T]) CancelFunc {
	req := subRequest[T]{sink: sink, done: make(chan struct{})}
	c.register <- req
	<-req.done

	return func() {
		req := subRequest[T]{sink: sink, done: make(chan struct{})}
		c.unregister <- req
		<-req.done
	}
}

func ChainCancelFunc(cf1, cf2 func(), cfs ...func()) CancelFunc {
	return func() {
		cf1()
		cf2()
		for _, cf := range cfs {
			if cf != nil {
				cf()
			}
		}
	}
}
