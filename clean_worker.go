package jobq

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-jobq/jobq/internal/pool"
	"github.com/go-jobq/jobq/job"
	"github.com/go-jobq/jobq/store"
)

// CleanConfig configures a CleanWorker.
//
// State restricts deletion to a single terminal state; job.Unknown means
// every terminal state (Completed, Dead, Cancelled) is eligible.
//
// Interval defines how often the sweep runs.
//
// MaxAge, if non-zero, restricts deletion to jobs whose UpdatedAt is
// older than now - MaxAge, the mechanism behind spec.md's
// jobs.cleanup_completed_after and jobs.cleanup_failed_after options.
type CleanConfig struct {
	State    job.State
	Interval time.Duration
	MaxAge   time.Duration
}

// CleanWorker periodically invokes a store.Cleaner according to
// CleanConfig. It is intended for background retention management, such
// as removing completed or dead jobs once they age past
// jobs.cleanup_completed_after / jobs.cleanup_failed_after.
//
// CleanWorker does not participate in job processing and does not affect
// visibility timeouts.
type CleanWorker struct {
	lcBase
	cleaner  store.Cleaner
	task     pool.TimerTask
	log      *slog.Logger
	state    job.State
	interval time.Duration
	maxAge   time.Duration
}

// NewCleanWorker creates a CleanWorker using cleaner and cfg. The worker
// is not started automatically.
func NewCleanWorker(cleaner store.Cleaner, cfg CleanConfig, log *slog.Logger) *CleanWorker {
	return &CleanWorker{
		cleaner:  cleaner,
		log:      log,
		state:    cfg.State,
		interval: cfg.Interval,
		maxAge:   cfg.MaxAge,
	}
}

func (cw *CleanWorker) beforeStamp() *time.Time {
	if cw.maxAge <= 0 {
		return nil
	}
	ret := time.Now().UTC().Add(-cw.maxAge)
	return &ret
}

func (cw *CleanWorker) clean(ctx context.Context) {
	before := cw.beforeStamp()
	count, err := cw.cleaner.Clean(ctx, cw.state, before)
	if err != nil {
		cw.log.Error("retention sweep failed", "err", err)
		return
	}
	cw.log.Info("retention sweep removed jobs", "count", count, "state", cw.state)
}

// Start begins periodic execution of the retention sweep.
//
// Start returns ErrDoubleStarted if the worker has already been started.
func (cw *CleanWorker) Start(ctx context.Context) error {
	if err := cw.tryStart(); err != nil {
		return err
	}
	interval := cw.interval
	if interval <= 0 {
		// time.NewTicker panics on a non-positive interval; fall back to
		// a conservative default instead.
		interval = time.Hour
	}
	cw.task.Start(ctx, cw.clean, interval)
	return nil
}

// Stop terminates the background retention sweep, waiting up to timeout
// for the in-flight Clean call to finish.
//
// Stop returns ErrDoubleStopped if the worker is not running.
func (cw *CleanWorker) Stop(timeout time.Duration) error {
	return cw.tryStop(timeout, cw.task.Stop)
}
