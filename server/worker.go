package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("server: worker stopped")

// workRequest represents a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func() (any, error)
	done chan workResult
}

// workResult holds the return value from a worker operation.
type workResult struct {
	value any
	err   error
}

// Worker serializes all interpreter access through a single goroutine.
// Interpreters are single-threaded; every handler that touches a session's
// driver must go through the worker.
type Worker struct {
	requests chan workRequest
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	defer close(w.stopped)
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func() (any, error)) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("worker panic: %v", r)
			result = workResult{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := fn()
	return workResult{value: v, err: err}
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes or ctx is done. A panic inside fn is returned as an error.
func (w *Worker) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}

	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.stopped:
		select {
		case result := <-req.done:
			return result.value, result.err
		default:
			return nil, ErrWorkerStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the worker goroutine and waits for it to exit. Work
// already running finishes first.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.stopped
}
