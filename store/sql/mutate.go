package sql

import (
	"context"
	"time"

	"github.com/go-jobq/jobq/job"
	"github.com/go-jobq/jobq/store"

	"github.com/google/uuid"
)

// fetchForAttempt reads the current row for id, used by the three
// operations that append an Attempt record (Complete, ScheduleRetry,
// MoveToDLQ). The returned model's Version is used as the CAS token for
// the follow-up update, so a concurrent transition between this read and
// that write causes the write to affect zero rows rather than silently
// clobbering history.
func (s *Store) fetchForAttempt(ctx context.Context, id uuid.UUID) (*jobModel, error) {
	var model jobModel
	err := s.db.NewSelect().
		Model(&model).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, store.ErrJobLost
	}
	return &model, nil
}

func appendAttempt(history []job.Attempt, attempts uint32, workerID string, started, finished time.Time, exitCode int, reason string) []job.Attempt {
	return append(history, job.Attempt{
		Attempt:    attempts,
		WorkerID:   workerID,
		StartedAt:  started,
		FinishedAt: finished,
		ExitCode:   exitCode,
		Error:      reason,
	})
}

// Complete transitions a Processing job to Completed, recording exitCode
// and outputRef and appending a successful Attempt record.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, exitCode int, outputRef string) (*job.Job, error) {
	current, err := s.fetchForAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.State != job.Processing {
		return nil, store.ErrLockLost
	}
	now := time.Now().UTC()
	started := now
	if current.StartedAt != nil {
		started = *current.StartedAt
	}
	history := appendAttempt(current.ExecutionHistory, current.Attempts, current.WorkerID, started, now, exitCode, "")
	var models []jobModel
	err = s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Completed).
		Set("exit_code = ?", exitCode).
		Set("output_ref = ?", outputRef).
		Set("execution_history = ?", history).
		Set("worker_id = ''").
		Set("claimed_at = NULL").
		Set("started_at = NULL").
		Set("deadline_at = NULL").
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Where("version = ?", current.Version).
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

// ScheduleRetry appends a failed Attempt and atomically transitions the
// job back to Pending with a future run_at. Attempts is not changed here:
// ClaimNext already incremented it for the attempt that failed.
func (s *Store) ScheduleRetry(ctx context.Context, id uuid.UUID, reason string, nextRunAt time.Time) (*job.Job, error) {
	current, err := s.fetchForAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.State != job.Processing {
		return nil, store.ErrLockLost
	}
	now := time.Now().UTC()
	started := now
	if current.StartedAt != nil {
		started = *current.StartedAt
	}
	history := appendAttempt(current.ExecutionHistory, current.Attempts, current.WorkerID, started, now, current.ExitCode, reason)
	var models []jobModel
	err = s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("run_at = ?", nextRunAt).
		Set("error_message = ?", reason).
		Set("execution_history = ?", history).
		Set("worker_id = ''").
		Set("claimed_at = NULL").
		Set("started_at = NULL").
		Set("deadline_at = NULL").
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Where("version = ?", current.Version).
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

// MoveToDLQ appends a failed Attempt and atomically transitions the job
// to Dead, recording reason in ErrorMessage.
func (s *Store) MoveToDLQ(ctx context.Context, id uuid.UUID, reason string) (*job.Job, error) {
	current, err := s.fetchForAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.State == job.Completed || current.State == job.Dead || current.State == job.Cancelled {
		return nil, store.ErrJobLost
	}
	now := time.Now().UTC()
	started := now
	if current.StartedAt != nil {
		started = *current.StartedAt
	}
	history := appendAttempt(current.ExecutionHistory, current.Attempts, current.WorkerID, started, now, current.ExitCode, reason)
	var models []jobModel
	err = s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Dead).
		Set("error_message = ?", reason).
		Set("execution_history = ?", history).
		Set("worker_id = ''").
		Set("claimed_at = NULL").
		Set("started_at = NULL").
		Set("deadline_at = NULL").
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("version = ?", current.Version).
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

// DLQRetry moves a Dead job back to Pending, optionally resetting
// Attempts and/or MaxRetries.
func (s *Store) DLQRetry(ctx context.Context, id uuid.UUID, resetAttempts bool, newMaxRetries *uint32) (*job.Job, error) {
	now := time.Now().UTC()
	q := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("run_at = ?", now).
		Set("error_message = ''").
		Set("version = version + 1").
		Set("updated_at = ?", now)
	if resetAttempts {
		q = q.Set("attempts = 0")
	}
	if newMaxRetries != nil {
		q = q.Set("max_retries = ?", *newMaxRetries)
	}
	var models []jobModel
	err := q.
		Where("id = ?", id).
		Where("state = ?", job.Dead).
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
