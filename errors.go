package jobq

import "errors"

var (
	// ErrInvalidJobSpec is returned by Service.Enqueue when the supplied
	// command is empty or otherwise structurally invalid.
	ErrInvalidJobSpec = errors.New("jobq: invalid job spec")

	// ErrStoreUnavailable wraps an underlying store.Store error that the
	// Service could not otherwise classify.
	ErrStoreUnavailable = errors.New("jobq: store unavailable")

	// ErrExecutorFailure indicates the configured exec.Executor itself
	// failed to run the command (as opposed to the command running and
	// exiting non-zero).
	ErrExecutorFailure = errors.New("jobq: executor failure")

	// ErrTimeout indicates a job's visibility timeout elapsed before it
	// completed.
	ErrTimeout = errors.New("jobq: job timed out")
)
