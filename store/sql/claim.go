package sql

import (
	"context"
	"time"

	"github.com/go-jobq/jobq/job"
	"github.com/go-jobq/jobq/store"

	"github.com/google/uuid"
)

// ClaimNext selects the single highest-priority, oldest eligible Pending
// job and atomically transitions it to Processing.
//
// Eligibility: state = Pending AND (run_at <= now). Ordering: priority_
// weight DESC, created_at ASC, id ASC — claim order is FIFO within a
// priority by insertion order, not by run_at, so a retried job whose
// run_at was pushed forward keeps its original place once it is eligible
// again, and a job with an early run_at does not jump ahead of jobs that
// were enqueued before it. The id tiebreaker makes claim order
// deterministic when two jobs share both priority and created_at.
//
// The claim itself is one UPDATE ... WHERE id IN (subquery) RETURNING
// statement, so no two concurrent callers can ever observe the same job
// as the winner: the database serializes the row lock underlying the
// UPDATE, and only one caller's subquery result survives to be the
// target of its own statement. deadline_at is then written by a second,
// version-gated UPDATE (see below).
func (s *Store) ClaimNext(ctx context.Context, workerID string) (*job.Job, error) {
	now := time.Now().UTC()
	subQuery := s.db.NewSelect().
		Model((*jobModel)(nil)).
		Column("id").
		Where("state = ?", job.Pending).
		Where("run_at <= ?", now).
		Order("priority_weight DESC", "created_at ASC", "id ASC").
		Limit(1)
	var models []jobModel
	err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Processing).
		Set("attempts = attempts + 1").
		Set("worker_id = ?", workerID).
		Set("claimed_at = ?", now).
		Set("started_at = ?", now).
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("id IN (?)", subQuery).
		Returning("*").
		Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	claimed := &models[0]
	// deadline_at = started_at + timeout cannot be expressed portably as
	// a single SQL expression across dialects (timeout is stored as a
	// plain integer of nanoseconds, not an interval type every dialect
	// understands), so it is filled in by a second, version-gated
	// update. Per spec, this is safe: the job is already owned by
	// workerID after the first statement, so nothing else can claim it
	// in between.
	deadline := claimed.StartedAt.Add(claimed.Timeout)
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("deadline_at = ?", deadline).
		Where("id = ?", claimed.ID).
		Where("version = ?", claimed.Version).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if isAffected(res) {
		claimed.DeadlineAt = &deadline
	}
	return claimed.toJob(), nil
}

// ExtendLock extends the visibility timeout of a Processing job.
//
// If the job is no longer Processing, store.ErrLockLost is returned.
func (s *Store) ExtendLock(ctx context.Context, id uuid.UUID, lock time.Duration) (*job.Job, error) {
	now := time.Now().UTC()
	deadline := now.Add(lock)
	var models []jobModel
	err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("deadline_at = ?", deadline).
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Returning("*").
		Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, store.ErrLockLost
	}
	return models[0].toJob(), nil
}

// Release transitions a Processing job owned by workerID back to
// Pending, clearing all claim fields, without incrementing Attempts.
func (s *Store) Release(ctx context.Context, id uuid.UUID, workerID string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("worker_id = ''").
		Set("claimed_at = NULL").
		Set("started_at = NULL").
		Set("deadline_at = NULL").
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Where("worker_id = ?", workerID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

// PromoteScheduled transitions every Scheduled job whose run_at has
// elapsed to Pending. Each row is taken individually via its own WHERE
// clause, so PromoteScheduled is safe to run concurrently with ClaimNext
// and with itself.
func (s *Store) PromoteScheduled(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("state = ?", job.Scheduled).
		Where("run_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}

// ReapExpired returns every Processing job whose deadline has passed. It
// does not itself mutate state: the caller fails each job through the
// normal ScheduleRetry/MoveToDLQ path, which is independently CAS-safe
// against a Complete racing in from the original worker.
func (s *Store) ReapExpired(ctx context.Context) ([]*job.Job, error) {
	now := time.Now().UTC()
	var models []jobModel
	err := s.db.NewSelect().
		Model(&models).
		Where("state = ?", job.Processing).
		Where("deadline_at < ?", now).
		Order("deadline_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toJobs(models), nil
}

// ResetAllProcessing atomically rewrites every Processing row to Pending,
// clearing claim fields, without incrementing Attempts. Idempotent.
func (s *Store) ResetAllProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("worker_id = ''").
		Set("claimed_at = NULL").
		Set("started_at = NULL").
		Set("deadline_at = NULL").
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("state = ?", job.Processing).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}

// ResetWorker behaves like ResetAllProcessing but scoped to a single
// worker's claims, for use when that worker exits.
func (s *Store) ResetWorker(ctx context.Context, workerID string) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("worker_id = ''").
		Set("claimed_at = NULL").
		Set("started_at = NULL").
		Set("deadline_at = NULL").
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("state = ?", job.Processing).
		Where("worker_id = ?", workerID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}

// Cancel transitions any non-terminal job to Cancelled.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	now := time.Now().UTC()
	var models []jobModel
	err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Cancelled).
		Set("worker_id = ''").
		Set("claimed_at = NULL").
		Set("started_at = NULL").
		Set("deadline_at = NULL").
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state NOT IN (?, ?, ?)", job.Completed, job.Dead, job.Cancelled).
		Returning("*").
		Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, store.ErrJobLost
	}
	return models[0].toJob(), nil
}

func toJobs(models []jobModel) []*job.Job {
	ret := make([]*job.Job, len(models))
	for i := range models {
		ret[i] = models[i].toJob()
	}
	return ret
}
