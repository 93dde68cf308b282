package scraper

import (
	"context"
	"time"
)

// RetryPolicy is the single retry/backoff abstraction shared by the
// poller and any outbound call: a fixed delay between attempts, and an
// elongated cooldown (Delay × CooldownMultiplier) after a failure the
// classifier deems transient. Cooldowns still count against MaxAttempts.
type RetryPolicy struct {
	MaxAttempts        int
	Delay              time.Duration
	CooldownMultiplier int
	IsTransient        func(error) bool
}

// DefaultPolicy mirrors the pipeline defaults: poll every delay, triple
// the wait after a transport hiccup.
func DefaultPolicy(maxAttempts int, delay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:        maxAttempts,
		Delay:              delay,
		CooldownMultiplier: 3,
		IsTransient:        IsTransient,
	}
}

// Cooldown returns how long to wait after the given attempt error.
func (p RetryPolicy) Cooldown(err error) time.Duration {
	if err != nil && p.IsTransient != nil && p.IsTransient(err) {
		mult := p.CooldownMultiplier
		if mult < 1 {
			mult = 1
		}
		return p.Delay * time.Duration(mult)
	}
	return p.Delay
}

// Sleep waits for d or until the context is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn up to MaxAttempts times, sleeping the policy's cooldown
// between attempts. Non-transient errors stop the loop immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.IsTransient == nil || !p.IsTransient(lastErr) {
			return lastErr
		}
		if attempt < p.MaxAttempts {
			if err := Sleep(ctx, p.Cooldown(lastErr)); err != nil {
				return err
			}
		}
	}
	return lastErr
}
