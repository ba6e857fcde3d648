// Package worker runs the engines' periodic batches under a suture supervisor.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/tx"
	"stockledger/pkg/logger"
)

// Job runs fn every interval. It implements suture.Service.
type Job struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	log      *logger.Logger
}

var _ suture.Service = (*Job)(nil)

// NewJob creates a periodic job. The first run happens immediately.
func NewJob(name string, interval time.Duration, log *logger.Logger, fn func(ctx context.Context) error) *Job {
	if log == nil {
		log = logger.NewNop()
	}
	return &Job{name: name, interval: interval, fn: fn, log: log.WithComponent(name)}
}

// Serve implements suture.Service. A run failing with tx.ErrUnavailable is
// returned so the supervisor restarts the job with backoff; other failures
// are logged and the next tick proceeds.
func (j *Job) Serve(ctx context.Context) error {
	ctx = appctx.WithTrigger(logger.WithLogger(ctx, j.log), appctx.TriggerScheduler)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if err := j.runOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (j *Job) runOnce(ctx context.Context) error {
	start := time.Now()
	err := j.fn(ctx)
	switch {
	case err == nil:
		j.log.Debugw("job run finished", "duration_ms", time.Since(start).Milliseconds())
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, tx.ErrUnavailable):
		j.log.Errorw("storage unavailable, restarting job", "error", err)
		return err
	default:
		j.log.Warnw("job run failed", "error", err)
	}
	return nil
}

// String implements fmt.Stringer; suture names the service with it.
func (j *Job) String() string {
	return j.name
}
