package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2})
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Enqueue(context.Background(), Job{Action: "delete", Run: func(context.Context) error {
			n.Add(1)
			return nil
		}}))
	}
	d.Close()
	assert.Equal(t, int32(10), n.Load())
	assert.Equal(t, uint64(10), d.DoneCount())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherDoesNotRetryAPIErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), Job{Action: "delete", Run: func(context.Context) error {
		calls.Add(1)
		return errors.New("message to delete not found")
	}}))
	d.Close()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), Job{Action: "send", Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	}}))
	d.Close()
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, uint64(1), d.DoneCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	err := d.Enqueue(context.Background(), Job{Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Error(t, d.Enqueue(context.Background(), Job{}))
}

func TestDispatcherJobSurvivesCallerCancel(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	require.NoError(t, d.Enqueue(ctx, Job{Run: func(jobCtx context.Context) error {
		ran.Store(jobCtx.Err() == nil)
		return nil
	}}))
	cancel()
	d.Close()
	assert.True(t, ran.Load())
}
