package sql

import (
	"context"
	gosql "database/sql"
	"errors"

	"github.com/go-jobq/jobq/job"
	"github.com/go-jobq/jobq/store"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// GetByID retrieves a job by its identifier. GetByID performs a simple
// SELECT and applies no locking beyond what the underlying database
// provides.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	var model jobModel
	err := s.db.NewSelect().
		Model(&model).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, gosql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return model.toJob(), nil
}

// ListByState returns jobs matching state, subject to filter. If state is
// job.Unknown, no state filter is applied.
func (s *Store) ListByState(ctx context.Context, state job.State, filter store.ListFilter) ([]*job.Job, error) {
	query := s.db.NewSelect().Model((*jobModel)(nil))
	if state != job.Unknown {
		query = query.Where("state = ?", state)
	}
	if len(filter.Priorities) > 0 {
		weights := make([]int32, len(filter.Priorities))
		for i, p := range filter.Priorities {
			weights[i] = p.Weight()
		}
		query = query.Where("priority_weight IN (?)", bun.In(weights))
	}
	switch filter.Sort {
	case store.SortCreatedDesc:
		query = query.Order("created_at DESC")
	default:
		query = query.Order("created_at ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var models []jobModel
	if err := query.Scan(ctx, &models); err != nil {
		return nil, err
	}
	return toJobs(models), nil
}

// CountByState returns the number of jobs currently in state.
func (s *Store) CountByState(ctx context.Context, state job.State) (int64, error) {
	count, err := s.db.NewSelect().
		Model((*jobModel)(nil)).
		Where("state = ?", state).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return int64(count), nil
}

// CountAll returns a count of jobs broken down by state.
func (s *Store) CountAll(ctx context.Context) (map[job.State]int64, error) {
	states := []job.State{
		job.Pending, job.Scheduled, job.Processing,
		job.Completed, job.Dead, job.Cancelled,
	}
	ret := make(map[job.State]int64, len(states))
	for _, st := range states {
		n, err := s.CountByState(ctx, st)
		if err != nil {
			return nil, err
		}
		ret[st] = n
	}
	return ret, nil
}
