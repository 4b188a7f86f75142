package record

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/newscat/internal/model"
)

const (
	defaultBufferSize   = 1024
	defaultDrainTimeout = 5 * time.Second
)

// AsyncOption configures an Async wrapper.
type AsyncOption func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 1024.
func WithBufferSize(n int) AsyncOption {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner sink's Write fails.
// Default: logs a warning via the zap global logger.
func WithOnError(f func(error)) AsyncOption {
	return func(a *Async) { a.errFunc = f }
}

// Async decouples record production from the underlying sink via a buffered
// channel drained by a single background goroutine, so request handlers
// never contend on the file append lock. Write blocks when the buffer is
// full; errors from the inner sink go to errFunc rather than the caller.
type Async struct {
	inner     Sink
	ch        chan model.LogRecord
	done      chan struct{}
	errFunc   func(error)
	bufSize   int
	closeOnce sync.Once
}

// NewAsync wraps a Sink in an async single-writer. The drain goroutine
// starts immediately.
func NewAsync(inner Sink, opts ...AsyncOption) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		errFunc: func(err error) {
			zap.L().Warn("async record sink write failed", zap.Error(err))
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.LogRecord, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write sends the record into the channel, blocking if the buffer is full.
func (a *Async) Write(_ context.Context, rec model.LogRecord) error {
	a.ch <- rec
	return nil
}

// Close closes the channel, waits for the drain goroutine to finish (with a
// timeout), then closes the inner sink.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			zap.L().Warn("async record sink drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

// drain moves records from the channel to the inner sink.
func (a *Async) drain() {
	defer close(a.done)
	for rec := range a.ch {
		if err := a.inner.Write(context.Background(), rec); err != nil {
			a.errFunc(err)
		}
	}
}
