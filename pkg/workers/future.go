package workers

import (
	"context"
	"errors"
	"sync"
)

// ErrPending is returned by Result before the task has completed.
var ErrPending = errors.New("task has not completed")

// Future is the result slot of a submitted task.
type Future[T any] struct {
	name  string
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any](name string) *Future[T] {
	return &Future[T]{
		name: name,
		done: make(chan struct{}),
	}
}

func (f *Future[T]) complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Name returns the name the task was submitted with.
func (f *Future[T]) Name() string {
	return f.name
}

// Done is closed once the task has completed or failed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking.
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		var zero T
		return zero, ErrPending
	}
}

// Failed reports whether the task completed with an error.
func (f *Future[T]) Failed() bool {
	select {
	case <-f.done:
		return f.err != nil
	default:
		return false
	}
}
