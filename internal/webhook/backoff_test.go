package webhook

import (
	"math/rand"
	"testing"
	"time"
)

func TestNextRetryDelayGrowsExponentially(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name         string
		attemptCount int
		minExpected  time.Duration
		maxExpected  time.Duration
	}{
		{"first retry", 1, InitialDelay, InitialDelay * 2},
		{"second retry", 2, 2 * InitialDelay, 2*InitialDelay + time.Duration(float64(2*InitialDelay)*Jitter)},
		{"third retry", 3, 4 * InitialDelay, 4*InitialDelay + time.Duration(float64(4*InitialDelay)*Jitter)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay := NextRetryDelay(tt.attemptCount, rng)
			if delay < tt.minExpected || delay > tt.maxExpected {
				t.Errorf("NextRetryDelay(%d) = %v; want between %v and %v", tt.attemptCount, delay, tt.minExpected, tt.maxExpected)
			}
		})
	}
}

func TestNextRetryDelayCapsAtMaxRetryDelay(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	delay := NextRetryDelay(MaxAttempts+5, rng)
	if delay > MaxRetryDelay {
		t.Errorf("NextRetryDelay(%d) = %v; want <= %v", MaxAttempts+5, delay, MaxRetryDelay)
	}
}

func TestNextRetryAtIsAlwaysInTheFuture(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	now := time.Now()

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		at := NextRetryAt(now, attempt, rng)
		if !at.After(now) {
			t.Errorf("NextRetryAt(attempt=%d) = %v; want after %v", attempt, at, now)
		}
	}
}
