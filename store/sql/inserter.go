package sql

import (
	"context"
	"strings"

	"github.com/go-jobq/jobq/job"
	"github.com/go-jobq/jobq/store"
	"github.com/uptrace/bun"
)

// Store implements store.Store using a relational database via
// github.com/uptrace/bun. It is compatible with SQLite, PostgreSQL and
// other bun-supported dialects, subject to their transactional
// guarantees.
//
// The claim itself is a single atomic UPDATE...RETURNING statement to
// avoid races between selection and state transition; deadline_at is
// stamped by a follow-up version-gated update. SQLite users are strongly
// encouraged to enable WAL mode and configure an appropriate
// busy_timeout; see the store/sql tests for a working DSN.
type Store struct {
	db *bun.DB
}

// New creates a new SQL-backed Store. The provided *bun.DB must be
// properly configured and connected, and InitDB must have already run.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// Insert durably persists j exactly as given; it does not apply any
// defaults (that is the Queue Service's responsibility) and performs no
// deduplication beyond the primary key.
func (s *Store) Insert(ctx context.Context, j *job.Job) error {
	model := fromJob(j)
	_, err := s.db.NewInsert().
		Model(model).
		Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return store.ErrDuplicateID
	}
	return err
}

// isUniqueViolation recognizes the common SQLite/Postgres primary-key
// constraint error text. Neither modernc.org/sqlite nor bun expose a
// portable, dialect-independent error code for this, so a text match on
// the well-known phrasing is the pragmatic choice; a false negative here
// simply surfaces the underlying driver error to the caller instead of
// store.ErrDuplicateID.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
