package refresher

import (
	"math"
	"time"
)

// Backoff yields the delay before retry attempt n (1-based).
type Backoff interface {
	NextDelay(attempt int) time.Duration
}

// FixedBackoff waits the same delay between every retry.
type FixedBackoff struct {
	Delay time.Duration
}

func (b FixedBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return b.Delay
}

// ExponentialBackoff doubles (or multiplies) the base delay per attempt,
// capped at MaxDelay.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func DefaultExponentialBackoff() ExponentialBackoff {
	return ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
	}
}

func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 2.0
	}
	delay := float64(b.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	return time.Duration(delay)
}
