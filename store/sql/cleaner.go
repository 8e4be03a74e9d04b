package sql

import (
	"context"
	"time"

	"github.com/go-jobq/jobq/job"
	"github.com/go-jobq/jobq/store"
)

// Clean deletes jobs matching the provided state and time filter.
//
// Only terminal states are allowed: Completed, Dead, Cancelled. If state
// is job.Unknown, all three are eligible for deletion. Clean does not
// attempt to lock or coordinate with running workers; deleting
// non-terminal jobs is rejected outright rather than raced against.
func (s *Store) Clean(ctx context.Context, state job.State, before *time.Time) (int64, error) {
	if state != job.Unknown && !state.Terminal() {
		return 0, store.ErrBadState
	}
	query := s.db.NewDelete().Model((*jobModel)(nil))
	if state != job.Unknown {
		query = query.Where("state = ?", state)
	} else {
		query = query.Where("state IN (?, ?, ?)", job.Completed, job.Dead, job.Cancelled)
	}
	if before != nil {
		query = query.Where("updated_at <= ?", *before)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}
