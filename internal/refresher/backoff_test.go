package refresher

import (
	"testing"
	"time"
)

func TestFixedBackoff(t *testing.T) {
	b := FixedBackoff{Delay: 45 * time.Second}
	for attempt := 1; attempt <= 4; attempt++ {
		if d := b.NextDelay(attempt); d != 45*time.Second {
			t.Fatalf("attempt %d: got %s", attempt, d)
		}
	}
}

func TestExponentialBackoffGrowth(t *testing.T) {
	b := ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2,
	}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{6, 10 * time.Second},
	}
	for _, tc := range cases {
		if d := b.NextDelay(tc.attempt); d != tc.want {
			t.Fatalf("attempt %d: got %s want %s", tc.attempt, d, tc.want)
		}
	}
}

func TestExponentialBackoffDefaults(t *testing.T) {
	b := DefaultExponentialBackoff()
	if b.NextDelay(1) <= 0 {
		t.Fatalf("default backoff must produce a positive delay")
	}
	if b.NextDelay(10) > b.MaxDelay {
		t.Fatalf("delay must be capped at MaxDelay")
	}
}
