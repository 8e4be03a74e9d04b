package exec

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestShellExecutorSuccess(t *testing.T) {
	e := NewShellExecutor()
	res, err := e.Run(context.Background(), "echo hello", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(res.OutputRef, "hello") {
		t.Fatalf("OutputRef = %q, want to contain hello", res.OutputRef)
	}
}

func TestShellExecutorNonZeroExit(t *testing.T) {
	e := NewShellExecutor()
	res, err := e.Run(context.Background(), "exit 7", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ExitCode != 7 {
		t.Fatalf("ExitCode = %d, want 7", res.ExitCode)
	}
}

func TestShellExecutorTimeout(t *testing.T) {
	e := NewShellExecutor()
	res, err := e.Run(context.Background(), "sleep 5", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if res.Error != "timeout" {
		t.Fatalf("Error = %q, want timeout", res.Error)
	}
}

func TestDenylistFilter(t *testing.T) {
	f := DenylistFilter{Substrings: []string{"rm -rf /"}}
	if err := f.Allow("echo safe"); err != nil {
		t.Fatalf("expected safe command to be allowed, got %v", err)
	}
	if err := f.Allow("rm -rf / --no-preserve-root"); err == nil {
		t.Fatal("expected dangerous command to be rejected")
	}
}
