package job

import (
	"time"

	"github.com/google/uuid"
)

// Job is a persistent record describing one unit of work: a shell command,
// its scheduling policy, and its current lifecycle state.
//
// ID, Command, Priority, MaxRetries and Timeout are immutable after
// enqueue. State, Attempts, the claim fields (WorkerID, ClaimedAt,
// StartedAt, DeadlineAt), the outcome fields (ExitCode, ErrorMessage,
// OutputRef) and Version are mutated only through store.Store transitions.
//
// Invariant: State == Processing holds exactly when the four claim fields
// (WorkerID non-empty; ClaimedAt, StartedAt, DeadlineAt non-nil) are set;
// these four claim fields are empty in every other state.
type Job struct {
	ID         uuid.UUID
	Command    string
	Priority   Priority
	State      State
	Attempts   uint32
	MaxRetries uint32
	Timeout    time.Duration

	CreatedAt time.Time
	UpdatedAt time.Time

	RunAt *time.Time

	ClaimedAt  *time.Time
	StartedAt  *time.Time
	DeadlineAt *time.Time
	WorkerID   string

	ExitCode     int
	ErrorMessage string
	OutputRef    string

	Version uint64

	ExecutionHistory []Attempt

	// Metadata holds arbitrary, queue-opaque key-value data attached at
	// enqueue time (for example, a caller-supplied correlation id). It
	// plays no role in any state-machine transition.
	Metadata map[string]any
}

// New creates a Job with a freshly generated ID and CreatedAt/UpdatedAt
// stamped to now. All other fields take their zero value; the store's
// Insert does not fill in defaults, so a caller inserting the result
// directly sets State, Priority, MaxRetries, Timeout and RunAt itself
// (Service.Enqueue does this for its callers).
func New(command string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		Command:   command,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Get returns the metadata value associated with the given key, or nil if
// the key does not exist or Metadata is nil.
func (j *Job) Get(key string) any {
	ret, ok := j.Metadata[key]
	if !ok {
		return nil
	}
	return ret
}

// Set stores the given key-value pair in the job's metadata, initializing
// Metadata lazily if necessary. Set does not participate in any
// state-machine transition; it is a convenience for attaching caller data
// before a job is persisted.
func (j *Job) Set(key string, value any) {
	if j.Metadata == nil {
		j.Metadata = make(map[string]any)
	}
	j.Metadata[key] = value
}

// GetAs retrieves a metadata value associated with key and attempts to
// cast it to type T. It returns the zero value of T and false if the key
// does not exist or the stored value is not of type T.
func GetAs[T any](j *Job, key string) (T, bool) {
	raw, ok := j.Metadata[key]
	if !ok {
		var t T
		return t, false
	}
	ret, ok := raw.(T)
	if !ok {
		var t T
		return t, false
	}
	return ret, true
}

// Claimed reports whether the job currently carries a live claim, per
// invariant 1: all four claim fields set together, or none at all.
func (j *Job) Claimed() bool {
	return j.WorkerID != "" && j.ClaimedAt != nil && j.StartedAt != nil && j.DeadlineAt != nil
}
