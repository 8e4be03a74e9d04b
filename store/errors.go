package store

import "errors"

var (
	// ErrDuplicateID indicates that Insert was called with an id that
	// already exists in storage.
	ErrDuplicateID = errors.New("jobq: duplicate job id")

	// ErrNotFound indicates that no job exists for the given id.
	ErrNotFound = errors.New("jobq: job not found")

	// ErrVersionConflict indicates that a CAS-style update observed a
	// Version different from the one the caller expected. Callers other
	// than ClaimNext should re-read the job and reapply their intended
	// change; ClaimNext instead treats this as "no job" and the worker
	// simply polls again.
	ErrVersionConflict = errors.New("jobq: version conflict")

	// ErrJobLost indicates that the referenced job no longer exists, or
	// is no longer in the state the caller expected (for example, a
	// MoveToDLQ, DLQRetry or Cancel call raced with another transition).
	ErrJobLost = errors.New("jobq: job lost")

	// ErrLockLost indicates that the caller no longer owns the job's
	// claim. This happens when the visibility timeout (DeadlineAt)
	// elapses and the reaper — or another worker after ResetWorker —
	// reclaims the job before the original worker finishes.
	ErrLockLost = errors.New("jobq: lock lost")

	// ErrBadState indicates an operation was asked to act on a state it
	// does not support (for example, Cleaner asked to delete a
	// non-terminal state).
	ErrBadState = errors.New("jobq: bad job state")
)
