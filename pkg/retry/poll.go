// Package retry waits for long-running remote work to finish.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var ErrAttemptsExhausted = errors.New("poll attempts exhausted")

// Policy describes how often to check. Multiplier <= 1 means a fixed interval.
// MaxAttempts 0 means check until done or the context ends.
type Policy struct {
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
	MaxAttempts int
}

func (p Policy) backOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.Interval)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Interval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.Reset()
	return b
}

// CheckFunc reports whether the awaited work is done. A returned error stops
// the loop; callers that want to tolerate transient failures return (false, nil).
type CheckFunc func(ctx context.Context) (bool, error)

// Until sleeps one interval, then calls check, and repeats until check reports
// done, check fails, the attempt ceiling is reached, or ctx ends. It returns
// the number of checks made.
func Until(ctx context.Context, policy Policy, check CheckFunc) (int, error) {
	b := policy.backOff()
	attempts := 0

	for {
		if policy.MaxAttempts > 0 && attempts >= policy.MaxAttempts {
			return attempts, ErrAttemptsExhausted
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return attempts, ErrAttemptsExhausted
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, ctx.Err()
		case <-timer.C:
		}

		attempts++
		done, err := check(ctx)
		if err != nil {
			return attempts, err
		}
		if done {
			return attempts, nil
		}
	}
}
