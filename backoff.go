package jobq

import (
	"math"
	"math/rand/v2"
	"time"
)

// minBackoff is the floor applied after jitter, so a small base delay
// combined with a large randomization factor can never produce a
// negative or effectively-zero wait.
const minBackoff = time.Second

// BackoffConfig configures a RetryPolicy.
//
// Delay grows exponentially with the attempt count: BaseDelay * 2^attempts,
// capped at MaxDelay. If Jitter is non-zero, the computed delay is
// perturbed by +/- Jitter*delay before the floor is applied.
type BackoffConfig struct {
	MaxRetries uint32
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
}

// RetryPolicy computes retry delays and retry eligibility from a
// BackoffConfig. It is the Go-native reshaping of the teacher's
// backoffCounter: same exponential-with-jitter shape, but the exponent
// base is fixed at 2 and indexed from attempts (not attempt-1), matching
// the fixed "2^attempt_count" formula.
type RetryPolicy struct {
	cfg BackoffConfig
}

// NewRetryPolicy constructs a RetryPolicy from cfg.
func NewRetryPolicy(cfg BackoffConfig) RetryPolicy {
	return RetryPolicy{cfg: cfg}
}

// ShouldRetry reports whether a job that has accumulated attempts failed
// attempts is still eligible for another try under maxRetries. attempts
// is expected to already include the attempt that just failed (claiming
// a job increments it before it runs), so a job is eligible as long as
// it has not yet used its one original try plus maxRetries retries.
func ShouldRetry(attempts, maxRetries uint32) bool {
	return attempts <= maxRetries
}

// NextDelay returns the backoff delay to apply before the job identified
// by attempts (the number of attempts made so far, including the one that
// just failed) becomes eligible again.
func (rp RetryPolicy) NextDelay(attempts uint32) time.Duration {
	exp := float64(rp.cfg.BaseDelay) * math.Pow(2, float64(attempts))
	if rp.cfg.MaxDelay > 0 && exp > float64(rp.cfg.MaxDelay) {
		exp = float64(rp.cfg.MaxDelay)
	}
	if rp.cfg.Jitter > 0 {
		delta := rp.cfg.Jitter * exp
		lo := exp - delta
		hi := exp + delta
		exp = lo + rand.Float64()*(hi-lo)
	}
	delay := time.Duration(exp)
	if delay < minBackoff {
		delay = minBackoff
	}
	return delay
}

// ShouldRetry reports whether attempts is still within the policy's
// configured MaxRetries.
func (rp RetryPolicy) ShouldRetry(attempts uint32) bool {
	return ShouldRetry(attempts, rp.cfg.MaxRetries)
}
