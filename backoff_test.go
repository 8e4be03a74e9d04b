package jobq_test

import (
	"testing"
	"time"

	"github.com/go-jobq/jobq"
)

func TestShouldRetry(t *testing.T) {
	if !jobq.ShouldRetry(1, 3) {
		t.Fatal("expected retry to be allowed after the first attempt")
	}
	if !jobq.ShouldRetry(3, 3) {
		t.Fatal("expected retry to still be allowed when attempts equals max_retries")
	}
	if jobq.ShouldRetry(4, 3) {
		t.Fatal("expected retry to be refused once attempts exceeds max_retries")
	}
}

func TestNextDelayGrowsExponentially(t *testing.T) {
	rp := jobq.NewRetryPolicy(jobq.BackoffConfig{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   time.Hour,
	})

	d0 := rp.NextDelay(0)
	d1 := rp.NextDelay(1)
	d2 := rp.NextDelay(2)

	if d0 != time.Second {
		t.Fatalf("expected first delay to equal base delay, got %s", d0)
	}
	if d1 != 2*time.Second {
		t.Fatalf("expected delay to double, got %s", d1)
	}
	if d2 != 4*time.Second {
		t.Fatalf("expected delay to double again, got %s", d2)
	}
}

func TestNextDelayCapsAtMaxDelay(t *testing.T) {
	rp := jobq.NewRetryPolicy(jobq.BackoffConfig{
		MaxRetries: 20,
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
	})

	d := rp.NextDelay(10)
	if d != 5*time.Second {
		t.Fatalf("expected delay to cap at max_delay, got %s", d)
	}
}

func TestNextDelayFloorsAtMinimum(t *testing.T) {
	rp := jobq.NewRetryPolicy(jobq.BackoffConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
	})

	d := rp.NextDelay(0)
	if d < time.Second {
		t.Fatalf("expected delay to floor at 1s, got %s", d)
	}
}

func TestNextDelayJitterStaysWithinBounds(t *testing.T) {
	rp := jobq.NewRetryPolicy(jobq.BackoffConfig{
		MaxRetries: 5,
		BaseDelay:  time.Minute,
		MaxDelay:   time.Hour,
		Jitter:     0.5,
	})

	for i := 0; i < 20; i++ {
		d := rp.NextDelay(1)
		if d < time.Minute || d > 3*time.Minute {
			t.Fatalf("jittered delay %s out of expected [1m, 3m] bounds", d)
		}
	}
}
