package sql

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*jobModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// createClaimIndex backs the claim query's filter+order:
// state, run_at (the eligibility filter), priority_weight DESC,
// created_at ASC (the claim order).
func createClaimIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_claim").
		Column("state", "run_at", "priority_weight", "created_at").
		IfNotExists().
		Exec(ctx)
	return err
}

// createReapIndex backs the timeout reaper's scan: state, deadline_at.
func createReapIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_reap").
		Column("state", "deadline_at").
		IfNotExists().
		Exec(ctx)
	return err
}

// createWorkerIndex backs ResetWorker's scan: worker_id, state.
func createWorkerIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_worker").
		Column("worker_id", "state").
		IfNotExists().
		Exec(ctx)
	return err
}

// createListIndex backs the administrative listing scan, ordered by
// created_at.
func createListIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*jobModel)(nil)).
		Index("idx_jobs_created").
		Column("created_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func initDB(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := createTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createClaimIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createReapIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createWorkerIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createListIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

// InitDB initializes the database schema required by the SQL backend.
//
// It creates the jobs table and required indexes inside a single
// transaction. If any step fails, the transaction is rolled back.
//
// InitDB is idempotent and may be safely called multiple times. It does
// not drop or modify existing tables beyond creating missing objects.
//
// The caller is responsible for providing a properly configured *bun.DB.
func InitDB(ctx context.Context, db *bun.DB) error {
	return initDB(ctx, db)
}

// MustInitDB behaves like InitDB but panics if initialization fails.
//
// This helper is intended for application bootstrap code where failure to
// initialize schema is considered unrecoverable.
func MustInitDB(ctx context.Context, db *bun.DB) {
	if err := initDB(ctx, db); err != nil {
		panic(err)
	}
}
