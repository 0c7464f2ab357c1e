package stealth

import (
	"context"
	"math/rand/v2"
	"time"
)

// DelayProfile names how long to linger between brand passes.
type DelayProfile string

const (
	ProfileCautious   DelayProfile = "cautious"
	ProfileNormal     DelayProfile = "normal"
	ProfileAggressive DelayProfile = "aggressive"
	// ProfileNone disables pauses; used by tests and dry runs.
	ProfileNone DelayProfile = "none"
)

// HumanDelay pauses for a random duration in [Min, Max).
type HumanDelay struct {
	Min time.Duration
	Max time.Duration
}

// NewHumanDelay maps a profile to its range. Unknown profiles get "normal".
func NewHumanDelay(profile DelayProfile) *HumanDelay {
	switch profile {
	case ProfileNone:
		return &HumanDelay{}
	case ProfileCautious:
		return &HumanDelay{Min: 3 * time.Second, Max: 8 * time.Second}
	case ProfileAggressive:
		return &HumanDelay{Min: 250 * time.Millisecond, Max: time.Second}
	default:
		return &HumanDelay{Min: time.Second, Max: 3 * time.Second}
	}
}

// Wait blocks for one jittered pause or until ctx is done.
func (h *HumanDelay) Wait(ctx context.Context) error {
	if h == nil {
		return nil
	}
	return Sleep(ctx, h.Next())
}

// Next draws the next pause length.
func (h *HumanDelay) Next() time.Duration {
	if h.Min >= h.Max {
		return h.Min
	}
	return h.Min + time.Duration(rand.Int64N(int64(h.Max-h.Min)))
}

// Sleep waits for d unless ctx finishes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
