package webhook

import (
	"math"
	"math/rand"
	"time"
)

// Backoff constants from spec.md §4.5 step 6.
const (
	InitialDelay    = 1 * time.Second
	Multiplier      = 2.0
	MaxRetryDelay   = 24 * time.Hour
	Jitter          = 0.1
	MaxAttempts     = 10
)

// NextRetryDelay computes the delay before the next attempt, given the
// attemptCount just recorded (1-indexed, the attempt that just ran).
// delay = min(MAX, INITIAL * MULTIPLIER^(attemptCount-1)) + U(0, delay*JITTER),
// and the result is additionally capped so the caller's now+delay never
// exceeds now+MAX_RETRY_DELAY regardless of jitter.
func NextRetryDelay(attemptCount int, rng *rand.Rand) time.Duration {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	exp := math.Pow(Multiplier, float64(attemptCount-1))
	base := float64(InitialDelay) * exp
	if base > float64(MaxRetryDelay) {
		base = float64(MaxRetryDelay)
	}

	jittered := base + rng.Float64()*base*Jitter

	if jittered > float64(MaxRetryDelay) {
		jittered = float64(MaxRetryDelay)
	}

	return time.Duration(jittered)
}

// NextRetryAt returns the absolute retry time for a delivery whose
// attemptCount was just incremented to attemptCount.
func NextRetryAt(now time.Time, attemptCount int, rng *rand.Rand) time.Time {
	return now.Add(NextRetryDelay(attemptCount, rng))
}
