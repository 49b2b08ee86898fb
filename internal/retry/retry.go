// Package retry wraps persistence calls at the service boundary with a
// bounded exponential backoff. Exhausted retries are the caller's cue
// to surface a transient error; nothing here retries forever.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Exponential returns base * 2^attempt, capped at max.
func Exponential(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

// jitter returns a random duration in [0, d).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)))
}

// Do runs fn up to attempts times, sleeping an exponentially growing
// jittered delay between tries. It returns nil on the first success,
// ctx.Err() if the context dies while waiting, and the last error once
// attempts are exhausted.
func Do(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(Exponential(base, 2*time.Second, i)) + base):
		}
	}
	return err
}
