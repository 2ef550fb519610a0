package actorutil

import (
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var ErrNilTaskResult = errors.New("background task: result is nil")

type SafeBackgroundTask[T any] struct {
	ctx       actor.Context
	fn        func() (*T, error)
	timeout   *time.Duration
	onError   func(error)
	recover   func(error) T
	onSuccess func(T)
}

func NewBackgroundTaskNoError[T any](ctx actor.Context, fn func() *T) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{
		ctx: ctx,
		fn: func() (*T, error) {
			return fn(), nil
		},
	}
}

func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = &timeout
	return t
}

// OnError observes a failure before Recover, if set, turns it into a value.
func (t *SafeBackgroundTask[T]) OnError(fn func(error)) *SafeBackgroundTask[T] {
	t.onError = fn
	return t
}

func (t *SafeBackgroundTask[T]) Recover(fn func(error) T) *SafeBackgroundTask[T] {
	t.recover = fn
	return t
}

// PipeToAsync runs the task on its own goroutine, so the actor keeps
// processing messages meanwhile. The actor context is not touched from the
// task goroutine: the result is delivered through the root context.
func (t *SafeBackgroundTask[T]) PipeToAsync(pid *actor.PID) {
	root := t.ctx.ActorSystem().Root
	t.onSuccess = func(value T) {
		root.Send(pid, value)
	}
	go t.Run()
}

func (t *SafeBackgroundTask[T]) Run() {
	bgFn := io.Eval(t.fn)
	bg := io.Map(bgFn, func(a *T) T {
		if a != nil {
			return *a
		}
		panic(ErrNilTaskResult)
	})
	if t.timeout != nil {
		bg = io.WithTimeout[T](*t.timeout)(bg)
	}
	result := io.RunSync(bg)
	value := result.Value
	if result.Error != nil {
		if t.onError != nil {
			t.onError(result.Error)
		}
		if t.recover == nil {
			return
		}
		value = t.recover(result.Error)
	}

	if t.onSuccess != nil {
		t.onSuccess(value)
	}
}
