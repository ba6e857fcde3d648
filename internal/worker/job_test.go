package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/tx"
)

func TestJob_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	var trigger atomic.Value
	job := NewJob("posting", time.Millisecond, nil, func(ctx context.Context) error {
		trigger.Store(appctx.GetTrigger(ctx))
		if runs.Add(1) == 3 {
			cancel()
		}
		return errors.New("transient")
	})

	err := job.Serve(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
	assert.Equal(t, appctx.TriggerScheduler, trigger.Load())
	assert.Equal(t, "posting", job.String())
}

func TestJob_UnavailableStorageStopsServe(t *testing.T) {
	var runs atomic.Int32
	job := NewJob("posting", time.Hour, nil, func(context.Context) error {
		runs.Add(1)
		return fmt.Errorf("claim: %w", tx.ErrUnavailable)
	})

	err := job.Serve(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, tx.ErrUnavailable)
	assert.Equal(t, int32(1), runs.Load())
}

func TestNewSupervisor_RunsJobs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	var once atomic.Bool
	sup := NewSupervisor("test", nil, TreeConfig{ShutdownTimeout: time.Second})
	sup.Add(NewJob("reconcile", time.Hour, nil, func(context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(done)
		}
		return nil
	}))

	errCh := sup.ServeBackground(ctx)
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("job never ran")
	}
	cancel()
	<-errCh
}
