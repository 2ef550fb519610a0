package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runTask struct {
	delay time.Duration
}

func spawnTaskRunner(t *testing.T, results chan<- int, failures chan<- error) (*actor.ActorSystem, *actor.PID) {
	t.Helper()

	as := actor.NewActorSystem()
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case runTask:
			NewBackgroundTaskNoError(ctx, func() *int {
				time.Sleep(msg.delay)
				v := 42
				return &v
			}).WithTimeout(100 * time.Millisecond).OnError(func(err error) {
				failures <- err
			}).Recover(func(err error) int {
				return -1
			}).PipeToAsync(ctx.Self())
		case int:
			results <- msg
		}
	}))
	return as, pid
}

func TestBackgroundTaskDeliversResult(t *testing.T) {

	results := make(chan int, 1)
	failures := make(chan error, 1)
	as, pid := spawnTaskRunner(t, results, failures)
	defer as.Shutdown()

	as.Root.Send(pid, runTask{})

	select {
	case v := <-results:
		assert.Equal(t, 42, v)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no task result")
	}
	assert.Empty(t, failures)
}

func TestBackgroundTaskErrorIsObservedThenRecovered(t *testing.T) {

	results := make(chan int, 1)
	failures := make(chan error, 1)
	as, pid := spawnTaskRunner(t, results, failures)
	defer as.Shutdown()

	as.Root.Send(pid, runTask{delay: time.Second})

	select {
	case err := <-failures:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timeout not reported")
	}
	select {
	case v := <-results:
		assert.Equal(t, -1, v)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no recovered result")
	}
}

func TestBackgroundTaskWithoutRecoverDropsResult(t *testing.T) {

	failures := make(chan error, 1)
	task := &SafeBackgroundTask[int]{
		fn: func() (*int, error) {
			return nil, errors.New("device unreachable")
		},
	}
	delivered := false
	task.onSuccess = func(int) { delivered = true }
	task.OnError(func(err error) { failures <- err }).Run()

	require.Len(t, failures, 1)
	assert.ErrorContains(t, <-failures, "device unreachable")
	assert.False(t, delivered)
}

func TestStashLenAndUnstash(t *testing.T) {

	as := actor.NewActorSystem()
	defer as.Shutdown()

	stash := &Stash{}
	replayed := make(chan string, 4)
	stashing := true
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case string:
			if stashing {
				stash.Stash(ctx, msg)
				return
			}
			replayed <- msg
		case int:
			ctx.Respond(stash.Len())
			stashing = false
			stash.UnstashAll(ctx)
		}
	}))

	as.Root.Send(pid, "a")
	as.Root.Send(pid, "b")
	res, err := as.Root.RequestFuture(pid, 0, time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, 2, res)

	assert.Equal(t, "a", <-replayed)
	assert.Equal(t, "b", <-replayed)
}
