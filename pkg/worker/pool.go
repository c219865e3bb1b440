package worker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/feichai0017/document-chat/pkg/logger"
)

// Pool bounds how many CPU-heavy jobs run at once. Jobs run on a context
// detached from the submitter's cancellation, so a departed caller never
// aborts work already handed to the pool.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	wg     sync.WaitGroup
	logger logger.Logger
}

func NewPool(size int, log logger.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		logger: log,
	}
}

func (p *Pool) Size() int { return p.size }

// Future is the pending result of a submitted job.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the job has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the job finishes or ctx is done. When ctx ends first the
// job keeps running and ctx.Err() is returned.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the job finishes.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Submit schedules fn on p and returns immediately.
func Submit[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	jobCtx := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(f.done)

		if err := p.sem.Acquire(jobCtx, 1); err != nil {
			f.err = err
			return
		}
		defer p.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Worker job panicked", logger.Any("panic", r), logger.Stack())
				f.err = fmt.Errorf("worker job panicked: %v", r)
			}
		}()
		f.value, f.err = fn(jobCtx)
	}()
	return f
}

// Shutdown waits for all submitted jobs or until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
