package jobq_test

import (
	"context"
	gosql "database/sql"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jobq/jobq"
	"github.com/go-jobq/jobq/exec"
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
	sqlDB.SetMaxOpenConns(1)
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

type fakeExecutor struct {
	calls atomic.Int32
	run   func(n int32) exec.Result
}

func (f *fakeExecutor) Run(ctx context.Context, command string, timeout time.Duration) (exec.Result, error) {
	n := f.calls.Add(1)
	return f.run(n), nil
}

func TestWorkerProcessesJob(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	s := gsql.New(db)

	executor := &fakeExecutor{run: func(n int32) exec.Result {
		return exec.Result{Success: true, ExitCode: 0}
	}}

	cfg := jobq.WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		Executor:     executor,
		Retry:        jobq.NewRetryPolicy(jobq.BackoffConfig{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}),
	}
	w := jobq.NewWorker("worker-1", s, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(time.Second)

	j := newPendingJob("echo hello")
	if err := s.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got, err := s.GetByID(ctx, j.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State == job.Completed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not complete in time")
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	s := gsql.New(db)

	executor := &fakeExecutor{run: func(n int32) exec.Result {
		if n < 2 {
			return exec.Result{Success: false, ExitCode: 1, Error: "boom"}
		}
		return exec.Result{Success: true, ExitCode: 0}
	}}

	cfg := jobq.WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		Executor:     executor,
		Retry:        jobq.NewRetryPolicy(jobq.BackoffConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Jitter: 0}),
	}
	w := jobq.NewWorker("worker-1", s, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(time.Second)

	j := newPendingJob("exit 1")
	if err := s.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err := s.GetByID(ctx, j.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State == job.Completed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not complete after retry")
}

func TestWorkerRetriesOnceThenMovesToDLQ(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	s := gsql.New(db)

	executor := &fakeExecutor{run: func(n int32) exec.Result {
		return exec.Result{Success: false, ExitCode: 1, Error: "always fails"}
	}}

	cfg := jobq.WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		Executor:     executor,
		Retry:        jobq.NewRetryPolicy(jobq.BackoffConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
	}
	w := jobq.NewWorker("worker-1", s, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(time.Second)

	j := newPendingJob("exit 1")
	j.MaxRetries = 1
	if err := s.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := s.GetByID(ctx, j.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State == job.Dead {
			if got.Attempts != 2 {
				t.Fatalf("Attempts = %d, want exactly 2", got.Attempts)
			}
			last := got.ExecutionHistory[len(got.ExecutionHistory)-1]
			if !strings.Contains(last.Error, "max retries") {
				t.Fatalf("expected error_message to contain %q, got %q", "max retries", last.Error)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job was not moved to the dead letter queue after exactly 2 attempts")
}

func TestWorkerMovesExhaustedJobToDLQ(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	s := gsql.New(db)

	executor := &fakeExecutor{run: func(n int32) exec.Result {
		return exec.Result{Success: false, ExitCode: 1, Error: "always fails"}
	}}

	cfg := jobq.WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		Executor:     executor,
		Retry:        jobq.NewRetryPolicy(jobq.BackoffConfig{MaxRetries: 0, BaseDelay: time.Millisecond}),
	}
	w := jobq.NewWorker("worker-1", s, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(time.Second)

	j := newPendingJob("exit 1")
	j.MaxRetries = 0
	if err := s.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got, err := s.GetByID(ctx, j.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State == job.Dead {
			if got.Attempts != 1 {
				t.Fatalf("Attempts = %d, want 1 (max_retries+1)", got.Attempts)
			}
			last := got.ExecutionHistory[len(got.ExecutionHistory)-1]
			if !strings.Contains(last.Error, "max retries exceeded") {
				t.Fatalf("expected error_message to contain %q, got %q", "max retries exceeded", last.Error)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job was not moved to the dead letter queue")
}

func TestWorkerRejectsFilteredCommand(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	s := gsql.New(db)

	executor := &fakeExecutor{run: func(n int32) exec.Result {
		t.Fatal("executor should not run a rejected command")
		return exec.Result{}
	}}

	cfg := jobq.WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		Executor:     executor,
		Filter:       exec.DenylistFilter{Substrings: []string{"rm -rf /"}},
		Retry:        jobq.NewRetryPolicy(jobq.BackoffConfig{MaxRetries: 0, BaseDelay: time.Millisecond}),
	}
	w := jobq.NewWorker("worker-1", s, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(time.Second)

	j := newPendingJob("rm -rf / --no-preserve-root")
	j.MaxRetries = 0
	if err := s.Insert(ctx, j); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got, err := s.GetByID(ctx, j.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State == job.Dead {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("rejected job was not moved to the dead letter queue")
}
