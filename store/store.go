package store

import (
	"context"
	"time"

	"github.com/go-jobq/jobq/job"
	"github.com/google/uuid"
)

// Sort selects the ordering applied by ListByState.
type Sort int

const (
	// SortCreatedAsc orders by CreatedAt ascending (oldest first). This
	// is the default and is required to efficiently serve the
	// single-column index on created_at spec.md calls for.
	SortCreatedAsc Sort = iota
	// SortCreatedDesc orders by CreatedAt descending (newest first).
	SortCreatedDesc
)

// ListFilter narrows and paginates a ListByState scan.
type ListFilter struct {
	// Priority, if non-zero... is still a valid filter value (LOW is the
	// zero Priority), so Priorities is used instead to opt in to
	// filtering by one or more priorities. A nil/empty slice means "any
	// priority".
	Priorities []job.Priority

	// Limit bounds the number of returned rows. Zero or negative means
	// "no limit", subject to storage-specific constraints.
	Limit int

	// Offset skips the first N matching rows, for simple page-by-page
	// scans. Administrative use only; not part of the claim path.
	Offset int

	Sort Sort
}

// Inserter is the write-side entry point of a queue.
type Inserter interface {
	// Insert durably persists job. The caller must have already chosen
	// job.State (Pending or Scheduled) and filled in every immutable
	// field; Insert does not apply defaults.
	//
	// Insert returns ErrDuplicateID if job.ID already exists.
	Insert(ctx context.Context, j *job.Job) error
}

// Claimer defines the read-write contract for consuming and managing jobs
// through their processing lifecycle.
//
// Claimer provides visibility-timeout semantics: ClaimNext transitions a
// job from Pending to Processing and assigns it a DeadlineAt lease. While
// Processing, the job is invisible to other claimers. If a worker crashes
// or fails to act before the lease expires, the reaper (or a future
// ClaimNext-adjacent sweep) makes the job eligible again.
type Claimer interface {
	// ClaimNext selects the single highest-priority, oldest eligible
	// Pending job (run_at in the past or unset) and atomically
	// transitions it to Processing, setting WorkerID, ClaimedAt,
	// StartedAt and DeadlineAt (StartedAt + the job's own Timeout), and
	// incrementing Version and Attempts.
	//
	// ClaimNext returns (nil, nil) if no job is eligible. No two
	// concurrent callers ever observe the same job as the claim winner.
	ClaimNext(ctx context.Context, workerID string) (*job.Job, error)

	// Release transitions a Processing job owned by workerID back to
	// Pending, clearing all claim fields, without incrementing Attempts
	// (no failure was observed — this is used for graceful worker exit).
	//
	// Release returns (false, nil) if the job is not currently
	// Processing or is not owned by workerID.
	Release(ctx context.Context, id uuid.UUID, workerID string) (bool, error)

	// Complete transitions a Processing job to Completed, recording
	// exitCode and outputRef and appending a successful Attempt record.
	//
	// Complete returns ErrLockLost if the job is no longer Processing.
	Complete(ctx context.Context, id uuid.UUID, exitCode int, outputRef string) (*job.Job, error)

	// ScheduleRetry appends a failed Attempt (reason) and atomically
	// transitions the job back to Pending with RunAt set to nextRunAt,
	// clearing all claim fields. It leaves Attempts unchanged: ClaimNext
	// already counted the attempt that failed.
	//
	// ScheduleRetry returns ErrLockLost if the job is no longer
	// Processing.
	ScheduleRetry(ctx context.Context, id uuid.UUID, reason string, nextRunAt time.Time) (*job.Job, error)

	// MoveToDLQ appends a failed Attempt (reason) and atomically
	// transitions the job to Dead, clearing all claim fields and
	// recording reason in ErrorMessage. It leaves Attempts unchanged.
	//
	// MoveToDLQ returns ErrJobLost if the job no longer exists; it may
	// be called on a Pending or Processing job.
	MoveToDLQ(ctx context.Context, id uuid.UUID, reason string) (*job.Job, error)

	// ExtendLock extends the visibility timeout of a Processing job
	// owned by the caller. It does not verify WorkerID ownership beyond
	// the job still being Processing (the same coarse guarantee the
	// teacher's SQL backend provides): a worker that has already lost
	// its lease to the reaper will observe ErrLockLost because the
	// reaper has already transitioned the row out of Processing.
	ExtendLock(ctx context.Context, id uuid.UUID, lock time.Duration) (*job.Job, error)

	// PromoteScheduled transitions every job with State == Scheduled and
	// RunAt <= now to Pending, and returns the number of rows affected.
	PromoteScheduled(ctx context.Context) (int64, error)

	// ReapExpired returns every job with State == Processing and
	// DeadlineAt < now, for the caller (the Queue Service's reaper) to
	// fail via the normal retry/DLQ path. ReapExpired does not itself
	// mutate state; the caller must call ScheduleRetry or MoveToDLQ for
	// each returned job, which is itself a CAS against the row's current
	// state and therefore safe to race against a concurrent Complete.
	ReapExpired(ctx context.Context) ([]*job.Job, error)

	// DLQRetry moves a Dead job back to Pending, optionally resetting
	// Attempts to zero and/or MaxRetries to a new value.
	DLQRetry(ctx context.Context, id uuid.UUID, resetAttempts bool, newMaxRetries *uint32) (*job.Job, error)

	// Cancel transitions any non-terminal job to Cancelled.
	Cancel(ctx context.Context, id uuid.UUID) (*job.Job, error)

	// ResetAllProcessing atomically rewrites every Processing row to
	// Pending, clearing claim fields, without incrementing Attempts. It
	// is the crash-recovery primitive invoked once at startup, before
	// any worker is spawned. It is idempotent: calling it twice in a row
	// has the same effect as calling it once.
	ResetAllProcessing(ctx context.Context) (int64, error)

	// ResetWorker behaves like ResetAllProcessing but is scoped to jobs
	// currently owned by workerID; it is used when a single worker exits
	// (gracefully or otherwise) and may still hold an orphaned claim.
	ResetWorker(ctx context.Context, workerID string) (int64, error)
}

// Observer provides read-only access to jobs stored in the queue.
//
// Observer does not modify job state and does not participate in
// visibility-timeout or lifecycle transitions. Returned Job values are
// snapshots; mutating them has no effect on storage.
type Observer interface {
	// GetByID returns the job identified by id, or ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error)

	// ListByState returns jobs matching state, subject to filter. If
	// state is job.Unknown, no state filter is applied.
	ListByState(ctx context.Context, state job.State, filter ListFilter) ([]*job.Job, error)

	// CountByState returns the number of jobs currently in state.
	CountByState(ctx context.Context, state job.State) (int64, error)

	// CountAll returns a count of jobs broken down by state.
	CountAll(ctx context.Context) (map[job.State]int64, error)
}

// Cleaner permanently removes jobs in terminal states from storage. It is
// intended for retention management and must reject non-terminal states.
type Cleaner interface {
	// Clean deletes jobs matching state (Completed, Dead or Cancelled)
	// and, if before is non-nil, whose UpdatedAt is <= *before. If state
	// is job.Unknown, every terminal state is eligible. Clean returns
	// the number of deleted rows, or ErrBadState if state refers to a
	// non-terminal state.
	Clean(ctx context.Context, state job.State, before *time.Time) (int64, error)
}

// Store is the full persistence contract the Queue Service depends on.
type Store interface {
	Inserter
	Claimer
	Observer
	Cleaner
}
