package leetcode

import (
	"context"
	"time"
)

// WaitOptions configures two-phase wait for submission verdict.
//
// First phase is fixed initial delay before first probe, second phase
// polls at regular interval until deadline is exceeded.
type WaitOptions struct {
	InitialDelay time.Duration
	PollInterval time.Duration
	Deadline     time.Duration
}

func (o *WaitOptions) setDefaults() {
	if o.InitialDelay <= 0 {
		o.InitialDelay = 2 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.Deadline <= 0 {
		o.Deadline = 30 * time.Second
	}
}

// WaitResult waits until check reports ready result or deadline passes.
//
// Returns false on miss and on canceled context.
func WaitResult(
	ctx context.Context, options WaitOptions, check func(ctx context.Context) bool,
) bool {
	options.setDefaults()
	deadline := time.Now().Add(options.Deadline)
	if !sleepContext(ctx, options.InitialDelay) {
		return false
	}
	for {
		if check(ctx) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		if !sleepContext(ctx, options.PollInterval) {
			return false
		}
	}
}

func sleepContext(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
