package workers

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/lockstep/pkg/log"
	"github.com/cbodonnell/lockstep/pkg/queue"
)

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0, log.LogLevelError)
}

func TestPool_Submit(t *testing.T) {
	p := NewPool(NewPoolOptions{Workers: 2, Logger: quietLogger()})
	defer p.Shutdown(time.Second)

	f := Submit(p, "double", func(ctx context.Context) (int, error) {
		return 21 * 2, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, f.Failed())
	assert.Equal(t, "double", f.Name())
}

func TestPool_FailuresAreRecorded(t *testing.T) {
	failures := queue.NewInMemoryQueue[TaskFailure](0)
	p := NewPool(NewPoolOptions{Workers: 1, Failures: failures, Logger: quietLogger()})
	defer p.Shutdown(time.Second)

	sendErr := errors.New("broken pipe")
	failed := SubmitTagged(p, "send", uint32(3), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, sendErr
	})
	panicked := Submit(p, "explode", func(ctx context.Context) (int, error) {
		panic("boom")
	})
	ok := Submit(p, "after", func(ctx context.Context) (string, error) {
		return "still running", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := failed.Wait(ctx)
	assert.ErrorIs(t, err, sendErr)

	_, err = panicked.Wait(ctx)
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "explode", panicErr.Task)

	v, err := ok.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "still running", v)

	recorded := failures.ReadAll()
	require.Len(t, recorded, 2)
	assert.Equal(t, "send", recorded[0].Name)
	assert.Equal(t, uint32(3), recorded[0].Tag)
	assert.Equal(t, "explode", recorded[1].Name)
}

func TestPool_ResultBeforeCompletion(t *testing.T) {
	p := NewPool(NewPoolOptions{Workers: 1, Logger: quietLogger()})
	defer p.Shutdown(time.Second)

	release := make(chan struct{})
	f := Submit(p, "blocked", func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	_, err := f.Result()
	assert.ErrorIs(t, err, ErrPending)
	close(release)

	<-f.Done()
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPool_QueueCapacity(t *testing.T) {
	p := NewPool(NewPoolOptions{Workers: 1, QueueCapacity: 1, Logger: quietLogger()})
	defer p.Shutdown(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	Submit(p, "busy", func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	queued := Submit(p, "queued", func(ctx context.Context) (int, error) { return 1, nil })
	rejected := Submit(p, "rejected", func(ctx context.Context) (int, error) { return 2, nil })

	_, err := rejected.Result()
	assert.ErrorIs(t, err, ErrPoolFull)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := queued.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPool_ShutdownDrains(t *testing.T) {
	p := NewPool(NewPoolOptions{Workers: 2, Logger: quietLogger()})

	var completed atomic.Int32
	for i := 0; i < 10; i++ {
		Submit(p, "sleep", func(ctx context.Context) (struct{}, error) {
			time.Sleep(time.Millisecond)
			completed.Add(1)
			return struct{}{}, nil
		})
	}
	require.NoError(t, p.Shutdown(time.Second))
	assert.Equal(t, int32(10), completed.Load())

	late := Submit(p, "late", func(ctx context.Context) (int, error) { return 0, nil })
	_, err := late.Result()
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_ShutdownCancelsAfterGrace(t *testing.T) {
	p := NewPool(NewPoolOptions{Workers: 1, Logger: quietLogger()})

	started := make(chan struct{})
	running := Submit(p, "stuck", func(ctx context.Context) (struct{}, error) {
		close(started)
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	})
	<-started
	queued := Submit(p, "never", func(ctx context.Context) (int, error) { return 1, nil })

	err := p.Shutdown(20 * time.Millisecond)
	assert.Error(t, err)

	_, err = running.Result()
	assert.ErrorIs(t, err, context.Canceled)
	_, err = queued.Result()
	assert.ErrorIs(t, err, ErrPoolClosed)
}
