package sql_test

import (
	"context"
	gosql "database/sql"
	"testing"
	"time"

	"github.com/go-jobq/jobq/job"
	gsql "github.com/go-jobq/jobq/store/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := gosql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1) // important for in-memory sqlite
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := gsql.InitDB(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}

func newPendingJob(command string) *job.Job {
	j := job.New(command)
	j.State = job.Pending
	j.Priority = job.MEDIUM
	j.MaxRetries = 3
	j.Timeout = time.Second
	now := j.CreatedAt
	j.RunAt = &now
	return j
}
