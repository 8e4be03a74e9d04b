package job

import "fmt"

// State represents the current lifecycle state of a Job.
//
// The persisted state machine is:
//
//	Pending    -> Processing
//	Pending    <- Scheduled   (via promotion, when run_at elapses)
//	Processing -> Completed
//	Processing -> Pending     (via retry or release)
//	Processing -> Dead
//	Dead       -> Pending     (via an operator-initiated DLQ retry)
//	any        -> Cancelled   (operator-initiated, optional)
//
// Failed and Timeout are deliberately not members of this type: they are
// transient bookkeeping reasons recorded inside an Attempt's Error field,
// never a durable top-level State. The transition out of a failed attempt
// (to Pending with a future RunAt, or to Dead) is atomic from the point of
// view of any external observer.
//
// Unknown is reserved as the zero value and may be used to indicate an
// unspecified or invalid state in filtering contexts (for example, List
// treats it as "no filter").
type State uint8

const (
	// Unknown represents an unspecified or invalid job state.
	// It is the zero value of State.
	Unknown State = iota

	// Pending indicates that the job is available for claiming.
	// A Pending job may have a future RunAt, delaying eligibility.
	Pending

	// Scheduled indicates that the job was enqueued with a future RunAt
	// and has not yet been promoted to Pending.
	Scheduled

	// Processing indicates that the job has been claimed and is currently
	// owned by a worker. While in this state, DeadlineAt bounds how long
	// the claim remains valid before the reaper reclaims it.
	Processing

	// Completed indicates successful execution. Terminal.
	Completed

	// Dead indicates that the job has exhausted its retry budget, or was
	// rejected outright, and will not be retried automatically. Terminal
	// unless explicitly retried via the dead-letter queue.
	Dead

	// Cancelled indicates an operator-initiated withdrawal of the job
	// from further processing. Terminal.
	Cancelled
)

func stateToString(s State) string {
	switch s {
	case Pending:
		return "Pending"
	case Scheduled:
		return "Scheduled"
	case Processing:
		return "Processing"
	case Completed:
		return "Completed"
	case Dead:
		return "Dead"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

func stateFromString(s string) (State, error) {
	switch s {
	case "Pending":
		return Pending, nil
	case "Scheduled":
		return Scheduled, nil
	case "Processing":
		return Processing, nil
	case "Completed":
		return Completed, nil
	case "Dead":
		return Dead, nil
	case "Cancelled":
		return Cancelled, nil
	case "Unknown":
		return Unknown, nil
	default:
		return 0, fmt.Errorf("unknown state: %s", s)
	}
}

// ParseState converts a string representation of a state into a State value.
//
// An error is returned for unrecognized strings.
func ParseState(s string) (State, error) {
	return stateFromString(s)
}

// Terminal reports whether s is an absorbing state: Completed, Dead or
// Cancelled. No operation defined on store.Store transitions a job out of
// a terminal state, except the explicit dead-letter retry path (Dead ->
// Pending), which is a deliberate operator action rather than an automatic
// transition.
func (s State) Terminal() bool {
	return s == Completed || s == Dead || s == Cancelled
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(stateToString(s)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	state, err := stateFromString(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// String returns the canonical string representation of the state.
func (s State) String() string {
	return stateToString(s)
}
