package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrMaxRetriesExceeded wraps the last error once the retry budget runs out
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy controls how operations are retried
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         bool

	// RetryableFunc overrides the default error classification when set
	RetryableFunc func(error) bool
}

// DefaultPolicy returns a policy suitable for external network calls
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
	}
}

// Validate checks the policy is usable
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if p.InitialBackoff <= 0 {
		return fmt.Errorf("initial backoff must be positive")
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1")
	}
	return nil
}

// Backoff computes exponential backoff durations for a policy
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the wait before the given attempt (1-based)
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(b.policy.InitialBackoff) * math.Pow(b.policy.Multiplier, float64(attempt-1))
	if max := float64(b.policy.MaxBackoff); max > 0 && d > max {
		d = max
	}
	if b.policy.Jitter {
		// up to 25% random spread to avoid thundering herds
		d += d * 0.25 * rand.Float64()
	}
	return time.Duration(d)
}
