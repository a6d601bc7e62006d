// Package task runs long operations off the caller's goroutine and hands
// back their result once they finish.
package task

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Task is a running function and its eventual result
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  T
	err    error
}

// Go starts fn in a new goroutine. The context passed to fn is cancelled by
// Cancel or when ctx ends. A panic in fn becomes the task's error.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(t.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())
			}
		}()
		t.value, t.err = fn(ctx)
	}()
	return t
}

// Done is closed when the task has finished
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the task to stop
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Wait blocks until the task finishes or ctx ends. Ending ctx does not stop the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
