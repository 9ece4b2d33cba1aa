// Package retry implements bounded polling with saturating backoff for
// operations that wait on slow external systems, such as deployment
// service database propagation or in-progress disk merges.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned by Do when the operation did not complete
// within the configured number of attempts.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy controls attempt count and inter-attempt delays. Delays grow
// by Factor after each attempt and saturate at Max. The zero value of
// Initial produces no waiting at all, which is what tests want.
type Policy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64

	// Sleep waits between attempts. Left nil, a context-aware
	// time.Timer sleep is used.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the polling policy used when the engine configuration
// does not override it: 15 attempts starting at 5s, growing 1.5x per
// attempt, capped at 30s.
func Default() Policy {
	return Policy{
		Attempts: 15,
		Initial:  5 * time.Second,
		Max:      30 * time.Second,
		Factor:   1.5,
	}
}

// Do invokes op until it reports done, fails, or the attempt budget is
// spent. A non-nil error from op aborts immediately; running out of
// attempts returns ErrExhausted.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) (bool, error)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := p.Initial
	for i := 0; i < attempts; i++ {
		done, err := op(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if i == attempts-1 {
			break
		}

		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}

		if p.Factor > 1 {
			delay = time.Duration(float64(delay) * p.Factor)
		}
		if p.Max > 0 && delay > p.Max {
			delay = p.Max
		}
	}

	return ErrExhausted
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
