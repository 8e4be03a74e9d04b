package job

import "time"

// Attempt is an append-only record of a single execution of a Job's
// command. Attempts are recorded in attempt order and are never mutated
// or removed once appended.
type Attempt struct {
	Attempt    uint32
	WorkerID   string
	StartedAt  time.Time
	FinishedAt time.Time
	ExitCode   int
	Error      string
}

// Success reports whether the attempt completed without error.
func (a Attempt) Success() bool {
	return a.Error == ""
}
