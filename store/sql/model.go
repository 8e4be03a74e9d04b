package sql

import (
	"time"

	"github.com/go-jobq/jobq/job"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// jobModel is the bun row shape backing job.Job. It carries a denormalized
// PriorityWeight column (derived from Priority) so the claim query can
// order by a single indexed integer column instead of re-deriving the
// weight per row.
type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	ID uuid.UUID `bun:"id,pk,type:uuid"`

	Command        string        `bun:"command,notnull"`
	Priority       job.Priority  `bun:"priority,notnull,default:1"`
	PriorityWeight int32         `bun:"priority_weight,notnull,default:10"`
	MaxRetries     uint32        `bun:"max_retries,notnull,default:0"`
	Timeout        time.Duration `bun:"timeout,notnull"`

	State    job.State `bun:"state,notnull,default:0"`
	Attempts uint32    `bun:"attempts,notnull,default:0"`
	Version  uint64    `bun:"version,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	RunAt     time.Time `bun:"run_at,nullzero,notnull"`

	ClaimedAt  *time.Time `bun:"claimed_at,nullzero,default:null"`
	StartedAt  *time.Time `bun:"started_at,nullzero,default:null"`
	DeadlineAt *time.Time `bun:"deadline_at,nullzero,default:null"`
	WorkerID   string     `bun:"worker_id,nullzero,default:null"`

	ExitCode     int    `bun:"exit_code,notnull,default:0"`
	ErrorMessage string `bun:"error_message,nullzero,default:null"`
	OutputRef    string `bun:"output_ref,nullzero,default:null"`

	ExecutionHistory []job.Attempt  `bun:"execution_history,type:jsonb"`
	Metadata         map[string]any `bun:"metadata,type:jsonb"`
}

func (jm *jobModel) toJob() *job.Job {
	j := &job.Job{
		ID:               jm.ID,
		Command:          jm.Command,
		Priority:         jm.Priority,
		MaxRetries:       jm.MaxRetries,
		Timeout:          jm.Timeout,
		State:            jm.State,
		Attempts:         jm.Attempts,
		Version:          jm.Version,
		CreatedAt:        jm.CreatedAt,
		UpdatedAt:        jm.UpdatedAt,
		ClaimedAt:        jm.ClaimedAt,
		StartedAt:        jm.StartedAt,
		DeadlineAt:       jm.DeadlineAt,
		WorkerID:         jm.WorkerID,
		ExitCode:         jm.ExitCode,
		ErrorMessage:     jm.ErrorMessage,
		OutputRef:        jm.OutputRef,
		ExecutionHistory: jm.ExecutionHistory,
		Metadata:         jm.Metadata,
	}
	if !jm.RunAt.IsZero() {
		runAt := jm.RunAt
		j.RunAt = &runAt
	}
	return j
}

// fromJob builds the row to insert for a freshly constructed job.Job. The
// caller (Inserter) is expected to have already resolved defaults and the
// initial State (Pending or Scheduled).
func fromJob(j *job.Job) *jobModel {
	model := &jobModel{
		ID:               j.ID,
		Command:          j.Command,
		Priority:         j.Priority,
		PriorityWeight:   j.Priority.Weight(),
		MaxRetries:       j.MaxRetries,
		Timeout:          j.Timeout,
		State:            j.State,
		Attempts:         j.Attempts,
		Version:          j.Version,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		ExecutionHistory: j.ExecutionHistory,
		Metadata:         j.Metadata,
	}
	if j.RunAt != nil {
		model.RunAt = *j.RunAt
	} else {
		model.RunAt = j.CreatedAt
	}
	return model
}
