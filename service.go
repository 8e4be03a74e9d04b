package jobq

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-jobq/jobq/internal/metrics"
	"github.com/go-jobq/jobq/internal/pool"
	"github.com/go-jobq/jobq/job"
	"github.com/go-jobq/jobq/store"

	"github.com/google/uuid"
)

// EnqueueSpec describes a job to enqueue. Only Command is required;
// MaxRetries and Timeout fall back to ServiceConfig's defaults when nil.
// Priority is used exactly as given: its zero value is LOW, and
// ServiceConfig.DefaultPriority is not applied.
type EnqueueSpec struct {
	Command    string
	Priority   job.Priority
	MaxRetries *uint32
	Timeout    *time.Duration
	RunAt      *time.Time
	Metadata   map[string]any
}

// ServiceConfig configures default job fields and sweeper cadence.
type ServiceConfig struct {
	DefaultPriority   job.Priority
	DefaultMaxRetries uint32
	DefaultTimeout    time.Duration

	// PromoteInterval and ReapInterval default to spec's 10s/30s cadence
	// when zero.
	PromoteInterval time.Duration
	ReapInterval    time.Duration

	Retry RetryPolicy
}

// Stats is the breakdown returned by Service.Stats.
type Stats struct {
	ByState    map[job.State]int64
	ByPriority map[job.State]map[job.Priority]int64
}

// Service is the composition root tying the store, retry policy and
// sweepers together. It fills job defaults on enqueue, exposes the
// claim/complete path workers use (store.Claimer, implemented by Service
// itself so calls can be instrumented), and runs the two background
// sweepers spec.md requires: promoteScheduled and reapTimeouts.
//
// Service itself implements store.Claimer, decorating the underlying
// store with metrics recording, so a Worker can be pointed at either the
// raw store or at a Service without caring which.
type Service struct {
	lcBase
	store   store.Store
	cfg     ServiceConfig
	metrics *metrics.Collector
	log     *slog.Logger

	promote pool.TimerTask
	reap    pool.TimerTask
}

// NewService creates a Service around s. metrics may be nil, in which
// case metrics recording is a no-op.
func NewService(s store.Store, cfg ServiceConfig, m *metrics.Collector, log *slog.Logger) *Service {
	return &Service{store: s, cfg: cfg, metrics: m, log: log}
}

func (svc *Service) recordEnqueue() {
	if svc.metrics != nil {
		svc.metrics.RecordEnqueue()
	}
}

// Enqueue validates spec, fills in defaults, chooses the initial state
// (Scheduled if RunAt is in the future, Pending otherwise) and persists
// the job.
func (svc *Service) Enqueue(ctx context.Context, spec EnqueueSpec) (*job.Job, error) {
	if spec.Command == "" {
		return nil, ErrInvalidJobSpec
	}
	j := job.New(spec.Command)
	j.Priority = spec.Priority
	j.MaxRetries = svc.cfg.DefaultMaxRetries
	if spec.MaxRetries != nil {
		j.MaxRetries = *spec.MaxRetries
	}
	j.Timeout = svc.cfg.DefaultTimeout
	if spec.Timeout != nil {
		j.Timeout = *spec.Timeout
	}
	j.Metadata = spec.Metadata

	now := time.Now().UTC()
	if spec.RunAt != nil && spec.RunAt.After(now) {
		j.State = job.Scheduled
		runAt := *spec.RunAt
		j.RunAt = &runAt
	} else {
		j.State = job.Pending
		runAt := now
		if spec.RunAt != nil {
			runAt = *spec.RunAt
		}
		j.RunAt = &runAt
	}

	if err := svc.store.Insert(ctx, j); err != nil {
		return nil, err
	}
	svc.recordEnqueue()
	return j, nil
}

// ClaimNext implements store.Claimer, recording a claim metric on success.
func (svc *Service) ClaimNext(ctx context.Context, workerID string) (*job.Job, error) {
	j, err := svc.store.ClaimNext(ctx, workerID)
	if err != nil || j == nil {
		return j, err
	}
	if svc.metrics != nil {
		svc.metrics.RecordClaim()
	}
	return j, nil
}

// Release implements store.Claimer.
func (svc *Service) Release(ctx context.Context, id uuid.UUID, workerID string) (bool, error) {
	return svc.store.Release(ctx, id, workerID)
}

// Complete implements store.Claimer, recording completion latency.
func (svc *Service) Complete(ctx context.Context, id uuid.UUID, exitCode int, outputRef string) (*job.Job, error) {
	j, err := svc.store.Complete(ctx, id, exitCode, outputRef)
	if err != nil {
		return nil, err
	}
	// the store clears StartedAt on completion, so the attempt's duration
	// comes from the Attempt record it just appended.
	if svc.metrics != nil && len(j.ExecutionHistory) > 0 {
		last := j.ExecutionHistory[len(j.ExecutionHistory)-1]
		svc.metrics.RecordCompleted(last.FinishedAt.Sub(last.StartedAt).Seconds())
	}
	return j, nil
}

// ScheduleRetry implements store.Claimer, recording a retry metric.
func (svc *Service) ScheduleRetry(ctx context.Context, id uuid.UUID, reason string, nextRunAt time.Time) (*job.Job, error) {
	j, err := svc.store.ScheduleRetry(ctx, id, reason, nextRunAt)
	if err != nil {
		return nil, err
	}
	if svc.metrics != nil && len(j.ExecutionHistory) > 0 {
		last := j.ExecutionHistory[len(j.ExecutionHistory)-1]
		svc.metrics.RecordRetry(last.FinishedAt.Sub(last.StartedAt).Seconds())
	}
	return j, nil
}

// MoveToDLQ implements store.Claimer, recording a dead-letter metric.
func (svc *Service) MoveToDLQ(ctx context.Context, id uuid.UUID, reason string) (*job.Job, error) {
	j, err := svc.store.MoveToDLQ(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if svc.metrics != nil {
		svc.metrics.RecordDead()
	}
	return j, nil
}

// ExtendLock implements store.Claimer.
func (svc *Service) ExtendLock(ctx context.Context, id uuid.UUID, lock time.Duration) (*job.Job, error) {
	return svc.store.ExtendLock(ctx, id, lock)
}

// PromoteScheduled implements store.Claimer.
func (svc *Service) PromoteScheduled(ctx context.Context) (int64, error) {
	return svc.store.PromoteScheduled(ctx)
}

// ReapExpired implements store.Claimer.
func (svc *Service) ReapExpired(ctx context.Context) ([]*job.Job, error) {
	return svc.store.ReapExpired(ctx)
}

// DLQRetry implements store.Claimer.
func (svc *Service) DLQRetry(ctx context.Context, id uuid.UUID, resetAttempts bool, newMaxRetries *uint32) (*job.Job, error) {
	return svc.store.DLQRetry(ctx, id, resetAttempts, newMaxRetries)
}

// Cancel implements store.Claimer.
func (svc *Service) Cancel(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	return svc.store.Cancel(ctx, id)
}

// ResetAllProcessing implements store.Claimer; invoked once at startup
// before any worker is spawned, recovering jobs orphaned by a crash.
func (svc *Service) ResetAllProcessing(ctx context.Context) (int64, error) {
	return svc.store.ResetAllProcessing(ctx)
}

// ResetWorker implements store.Claimer.
func (svc *Service) ResetWorker(ctx context.Context, workerID string) (int64, error) {
	return svc.store.ResetWorker(ctx, workerID)
}

// TimeoutJob fails j with reason "timed out", the synonym spec.md assigns
// to the reaper's per-job action.
func (svc *Service) TimeoutJob(ctx context.Context, j *job.Job) error {
	if svc.metrics != nil {
		svc.metrics.RecordTimeout()
	}
	return svc.fail(ctx, j, "timed out")
}

// fail applies the same retry-vs-dead-letter decision a Worker applies to
// its own failures (the job's own MaxRetries), with the backoff delay taken
// from Service's own RetryPolicy — used for jobs reaped after their lease
// expired rather than ones a live worker is currently holding.
func (svc *Service) fail(ctx context.Context, j *job.Job, reason string) error {
	if !ShouldRetry(j.Attempts, j.MaxRetries) {
		_, err := svc.MoveToDLQ(ctx, j.ID, "max retries exceeded: "+reason)
		return err
	}
	delay := svc.cfg.Retry.NextDelay(j.Attempts)
	_, err := svc.ScheduleRetry(ctx, j.ID, reason, time.Now().UTC().Add(delay))
	return err
}

// ReapTimeouts fails every Processing job whose deadline has passed and
// returns how many were handled.
func (svc *Service) ReapTimeouts(ctx context.Context) (int, error) {
	expired, err := svc.store.ReapExpired(ctx)
	if err != nil {
		return 0, err
	}
	for _, j := range expired {
		if err := svc.TimeoutJob(ctx, j); err != nil {
			svc.log.Error("failed to time out job", "job_id", j.ID, "err", err)
		}
	}
	return len(expired), nil
}

// DLQList returns up to limit jobs currently in the Dead state.
func (svc *Service) DLQList(ctx context.Context, limit int) ([]*job.Job, error) {
	return svc.store.ListByState(ctx, job.Dead, store.ListFilter{Limit: limit, Sort: store.SortCreatedDesc})
}

// DLQPurgeAll permanently deletes every Dead job.
func (svc *Service) DLQPurgeAll(ctx context.Context) (int64, error) {
	return svc.store.Clean(ctx, job.Dead, nil)
}

// DLQPurgeOlderThan permanently deletes Dead jobs whose UpdatedAt is
// older than age.
func (svc *Service) DLQPurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	before := time.Now().UTC().Add(-age)
	return svc.store.Clean(ctx, job.Dead, &before)
}

// Stats returns counts by state, and within each state a breakdown by
// priority.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	byState, err := svc.store.CountAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	priorities := []job.Priority{job.LOW, job.MEDIUM, job.HIGH, job.CRITICAL}
	byPriority := make(map[job.State]map[job.Priority]int64, len(byState))
	for state := range byState {
		breakdown := make(map[job.Priority]int64, len(priorities))
		for _, p := range priorities {
			jobs, err := svc.store.ListByState(ctx, state, store.ListFilter{Priorities: []job.Priority{p}})
			if err != nil {
				return Stats{}, err
			}
			breakdown[p] = int64(len(jobs))
		}
		byPriority[state] = breakdown
	}
	return Stats{ByState: byState, ByPriority: byPriority}, nil
}

func (svc *Service) promoteTick(ctx context.Context) {
	n, err := svc.PromoteScheduled(ctx)
	if err != nil {
		svc.log.Error("promoteScheduled failed", "err", err)
		return
	}
	if n > 0 {
		svc.log.Info("promoted scheduled jobs", "count", n)
	}
	svc.updateQueueDepth(ctx)
}

func (svc *Service) updateQueueDepth(ctx context.Context) {
	if svc.metrics == nil {
		return
	}
	counts, err := svc.store.CountAll(ctx)
	if err != nil {
		return
	}
	svc.metrics.SetQueueDepth(counts[job.Pending], counts[job.Processing], counts[job.Scheduled])
}

func (svc *Service) reapTick(ctx context.Context) {
	n, err := svc.ReapTimeouts(ctx)
	if err != nil {
		svc.log.Error("reapTimeouts failed", "err", err)
		return
	}
	if n > 0 {
		svc.log.Info("reaped timed-out jobs", "count", n)
	}
}

// Start performs crash recovery (ResetAllProcessing) and starts the two
// sweepers: promoteScheduled on PromoteInterval (default 10s) and
// reapTimeouts on ReapInterval (default 30s), the cadence spec.md
// specifies.
func (svc *Service) Start(ctx context.Context) error {
	if err := svc.tryStart(); err != nil {
		return err
	}
	if _, err := svc.store.ResetAllProcessing(ctx); err != nil {
		return err
	}
	promoteInterval := svc.cfg.PromoteInterval
	if promoteInterval <= 0 {
		promoteInterval = 10 * time.Second
	}
	reapInterval := svc.cfg.ReapInterval
	if reapInterval <= 0 {
		reapInterval = 30 * time.Second
	}
	svc.promote.Start(ctx, svc.promoteTick, promoteInterval)
	svc.reap.Start(ctx, svc.reapTick, reapInterval)
	return nil
}

// Stop terminates both sweepers, waiting up to timeout for them to
// finish their current tick.
func (svc *Service) Stop(timeout time.Duration) error {
	return svc.tryStop(timeout, func() pool.DoneChan {
		return pool.Combine(svc.promote.Stop(), svc.reap.Stop())
	})
}
