package jobq

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-jobq/jobq/exec"
	"github.com/go-jobq/jobq/internal/pool"
	"github.com/go-jobq/jobq/job"
	"github.com/go-jobq/jobq/store"
)

// WorkerConfig configures a single Worker's behavior.
type WorkerConfig struct {
	// PollInterval is how long a Worker waits before trying to claim
	// again after finding no eligible job. It does not apply between a
	// successful claim and the next attempt, which happens immediately.
	PollInterval time.Duration

	Executor exec.Executor
	Filter   exec.Filter
	Retry    RetryPolicy
}

// Worker claims and runs exactly one job at a time: claim, check the
// command against Filter, run it through Executor, then complete,
// schedule a retry, or move the job to the dead letter queue depending on
// the outcome.
//
// A job's visibility lease (DeadlineAt) is set by the store to
// StartedAt + the job's own Timeout, the same duration Executor.Run is
// given to bound the command itself. Since the two windows coincide,
// Worker never needs to independently extend the lease while a command
// runs, unlike the teacher's batch Worker, which decoupled its lock
// timeout from handler runtime.
type Worker struct {
	lcBase
	id      string
	claimer store.Claimer
	cfg     WorkerConfig
	log     *slog.Logger
	cancel  context.CancelFunc
	doneCh  pool.DoneChan
}

// NewWorker creates a Worker identified by id, claiming work from claimer.
// The worker is not started automatically; call Start.
func NewWorker(id string, claimer store.Claimer, cfg WorkerConfig, log *slog.Logger) *Worker {
	return &Worker{id: id, claimer: claimer, cfg: cfg, log: log}
}

// ID returns the worker's identifier, the same value recorded as a job's
// WorkerID while it holds the claim.
func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) claimAndProcess(ctx context.Context) bool {
	j, err := w.claimer.ClaimNext(ctx, w.id)
	if err != nil {
		w.log.Error("claim failed", "worker_id", w.id, "err", err)
		return false
	}
	if j == nil {
		return false
	}
	w.process(ctx, j)
	return true
}

func (w *Worker) process(ctx context.Context, j *job.Job) {
	if w.cfg.Filter != nil {
		if err := w.cfg.Filter.Allow(j.Command); err != nil {
			w.log.Warn("command rejected", "worker_id", w.id, "job_id", j.ID, "err", err)
			// a rejected command is not retried: it goes straight to the
			// dead letter queue with the filter's own reason.
			if _, err := w.claimer.MoveToDLQ(ctx, j.ID, err.Error()); err != nil {
				w.log.Error("move to dlq failed", "worker_id", w.id, "job_id", j.ID, "err", err)
			}
			return
		}
	}
	result, err := w.cfg.Executor.Run(ctx, j.Command, j.Timeout)
	if err != nil {
		w.log.Error("executor failed", "worker_id", w.id, "job_id", j.ID, "err", err)
		w.fail(ctx, j, err.Error())
		return
	}
	if result.Success {
		if _, err := w.claimer.Complete(ctx, j.ID, result.ExitCode, result.OutputRef); err != nil {
			w.log.Error("complete failed", "worker_id", w.id, "job_id", j.ID, "err", err)
		}
		return
	}
	w.fail(ctx, j, result.Error)
}

func (w *Worker) fail(ctx context.Context, j *job.Job, reason string) {
	if !ShouldRetry(j.Attempts, j.MaxRetries) {
		if _, err := w.claimer.MoveToDLQ(ctx, j.ID, "max retries exceeded: "+reason); err != nil {
			w.log.Error("move to dlq failed", "worker_id", w.id, "job_id", j.ID, "err", err)
		}
		return
	}
	delay := w.cfg.Retry.NextDelay(j.Attempts)
	if _, err := w.claimer.ScheduleRetry(ctx, j.ID, reason, time.Now().UTC().Add(delay)); err != nil {
		w.log.Error("schedule retry failed", "worker_id", w.id, "job_id", j.ID, "err", err)
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.doneCh)
	interval := w.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		// the claimed job runs on a context that Stop does not cancel, so
		// an in-flight command is bounded only by its own timeout.
		if w.claimAndProcess(context.WithoutCancel(ctx)) {
			timer.Reset(0)
		} else {
			timer.Reset(interval)
		}
	}
}

// Start begins the worker's claim/process loop.
//
// Start returns ErrDoubleStarted if the worker has already been started.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.tryStart(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.doneCh = make(pool.DoneChan)
	go w.loop(ctx)
	return nil
}

// Stop initiates graceful shutdown: the claim loop is canceled and any
// in-flight command is allowed to run to its own timeout. If shutdown
// does not complete within timeout, ErrStopTimeout is returned, though
// the worker may still be terminating in the background.
//
// Stop returns ErrDoubleStopped if the worker is not running.
func (w *Worker) Stop(timeout time.Duration) error {
	return w.tryStop(timeout, func() pool.DoneChan {
		w.cancel()
		return w.doneCh
	})
}
