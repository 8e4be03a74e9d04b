package sql_test

import (
	"context"
	"testing"

	"github.com/go-jobq/jobq/job"
	gsql "github.com/go-jobq/jobq/store/sql"
)

func TestClean(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	s := gsql.New(db)
	ctx := context.Background()

	j := newPendingJob("echo hello")
	if err := s.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}

	claimed, err := s.ClaimNext(ctx, "worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil {
		t.Fatal("expected a job to be claimed")
	}

	if _, err := s.Complete(ctx, claimed.ID, 0, ""); err != nil {
		t.Fatal(err)
	}

	count, err := s.Clean(ctx, job.Completed, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 deleted job, got %d", count)
	}
}

func TestCleanRejectsNonTerminalState(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	s := gsql.New(db)
	ctx := context.Background()

	if _, err := s.Clean(ctx, job.Pending, nil); err == nil {
		t.Fatal("expected Clean to reject a non-terminal state")
	}
}
