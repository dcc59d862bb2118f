package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})

	err := q.Enqueue(Job{ID: "job-1", Type: "noop"})
	require.Error(t, err)
}

func TestQueueRetriesFailedJobUntilSuccess(t *testing.T) {
	var attempts int32
	done := make(chan struct{})

	handler := func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}

	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "fanout"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to completion")
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestQueueDropsJobAfterMaxRetries(t *testing.T) {
	var attempts int32
	handler := func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("permanent")
	}

	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "fanout"}))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) == 3
	}, 2*time.Second, 5*time.Millisecond)

	// No further attempts after the retry budget is spent.
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}
