package jobq_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/go-jobq/jobq"
	"github.com/go-jobq/jobq/job"
	gsql "github.com/go-jobq/jobq/store/sql"
)

func newTestService(t *testing.T) (*jobq.Service, *gsql.Store) {
	t.Helper()
	db := newTestDB(t)
	t.Cleanup(func() { db.Close() })
	s := gsql.New(db)
	retry := jobq.NewRetryPolicy(jobq.BackoffConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})
	svc := jobq.NewService(s, jobq.ServiceConfig{
		DefaultMaxRetries: 3,
		DefaultTimeout:    time.Second,
		Retry:             retry,
	}, nil, slog.Default())
	return svc, s
}

func TestServiceEnqueuePending(t *testing.T) {
	svc, _ := newTestService(t)
	j, err := svc.Enqueue(context.Background(), jobq.EnqueueSpec{Command: "echo hi"})
	if err != nil {
		t.Fatal(err)
	}
	if j.State != job.Pending {
		t.Fatalf("expected Pending, got %s", j.State)
	}
	if j.MaxRetries != 3 || j.Timeout != time.Second {
		t.Fatalf("expected defaults to be applied, got %+v", j)
	}
}

func TestServiceEnqueueScheduled(t *testing.T) {
	svc, _ := newTestService(t)
	future := time.Now().UTC().Add(time.Hour)
	j, err := svc.Enqueue(context.Background(), jobq.EnqueueSpec{Command: "echo later", RunAt: &future})
	if err != nil {
		t.Fatal(err)
	}
	if j.State != job.Scheduled {
		t.Fatalf("expected Scheduled, got %s", j.State)
	}
}

func TestServiceEnqueueRejectsEmptyCommand(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Enqueue(context.Background(), jobq.EnqueueSpec{}); err != jobq.ErrInvalidJobSpec {
		t.Fatalf("expected ErrInvalidJobSpec, got %v", err)
	}
}

func TestServiceClaimNextDelegatesToStore(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	j := newPendingJob("echo hi")
	if err := store.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}
	claimed, err := svc.ClaimNext(ctx, "worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil || claimed.ID != j.ID {
		t.Fatal("expected the inserted job to be claimed")
	}
}

func TestServiceReapTimeoutsMovesExpiredJobToRetryOrDLQ(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	j := newPendingJob("sleep 100")
	j.Timeout = 20 * time.Millisecond
	if err := store.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ClaimNext(ctx, "worker-1"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(40 * time.Millisecond)

	n, err := svc.ReapTimeouts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reaped job, got %d", n)
	}

	got, err := store.GetByID(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != job.Pending {
		t.Fatalf("expected reaped job to be rescheduled to Pending, got %s", got.State)
	}
}

func TestServicePromoteScheduledReleasesDueJobs(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	j := newPendingJob("echo later")
	j.State = job.Scheduled
	past := time.Now().UTC().Add(-time.Minute)
	j.RunAt = &past
	if err := store.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}

	n, err := svc.PromoteScheduled(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 promoted job, got %d", n)
	}

	got, err := store.GetByID(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != job.Pending {
		t.Fatalf("expected promoted job to be Pending, got %s", got.State)
	}
}

func TestServiceDLQRoundTrip(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	j := newPendingJob("exit 1")
	j.MaxRetries = 0
	if err := store.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ClaimNext(ctx, "worker-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.MoveToDLQ(ctx, j.ID, "boom"); err != nil {
		t.Fatal(err)
	}

	dead, err := svc.DLQList(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead job, got %d", len(dead))
	}

	retried, err := svc.DLQRetry(ctx, j.ID, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if retried.State != job.Pending || retried.Attempts != 0 {
		t.Fatalf("expected job reset to Pending with zero attempts, got %+v", retried)
	}
}

func TestServiceStatsCountsByState(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := store.Insert(ctx, newPendingJob("echo hi")); err != nil {
			t.Fatal(err)
		}
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ByState[job.Pending] != 3 {
		t.Fatalf("expected 3 pending jobs, got %d", stats.ByState[job.Pending])
	}
}

func TestServiceStartPerformsCrashRecovery(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	j := newPendingJob("echo hi")
	if err := store.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ClaimNext(ctx, "dead-worker"); err != nil {
		t.Fatal(err)
	}

	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer svc.Stop(time.Second)

	got, err := store.GetByID(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != job.Pending {
		t.Fatalf("expected crash recovery to reset job to Pending, got %s", got.State)
	}
}
