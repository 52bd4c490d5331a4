// Package retry gives any fallible operation bounded retries with backoff.
//
// The wrapper knows nothing about what it wraps: search, fetch, generation
// and tool calls all go through Do with their own Policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy configures Do.
type Policy struct {
	// Tries is the maximum number of attempts. Values below 1 mean 1.
	Tries int
	// Delay is the wait before the second attempt.
	Delay time.Duration
	// Multiplier grows the delay after each retry. Values <= 1 keep it constant.
	Multiplier float64
	// MaxDelay caps the delay. Zero means no cap.
	MaxDelay time.Duration
	// AttemptTimeout bounds each attempt. A timed out attempt counts as a
	// failed attempt and is retried like any other failure.
	AttemptTimeout time.Duration
	// ShouldRetry decides whether an error is worth another attempt.
	// Nil retries everything except Permanent errors.
	ShouldRetry func(error) bool
	// Name identifies the operation in log lines.
	Name   string
	Logger *slog.Logger
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default mirrors the stock policy: 3 tries, 0.5s doubling up to 4s.
func Default() Policy {
	return Policy{
		Tries:      3,
		Delay:      500 * time.Millisecond,
		Multiplier: 2,
		MaxDelay:   4 * time.Second,
	}
}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the unwrapped error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, the attempts run out, or a non-retryable
// error is returned. Attempt 1 runs immediately. Each failure with attempts
// left logs a warning and waits before the next attempt.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	tries := p.Tries
	if tries < 1 {
		tries = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	delay := p.Delay

	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		v, err := runAttempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			return v, nil
		}
		lastErr = err

		var pe *permanentError
		if errors.As(err, &pe) {
			return zero, pe.err
		}
		if ctx.Err() != nil {
			return zero, err
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(err) {
			return zero, err
		}
		if attempt == tries {
			break
		}

		if p.Logger != nil {
			p.Logger.WarnContext(ctx, "Attempt failed, retrying",
				"op", p.Name,
				"attempt", attempt,
				"tries", tries,
				"delay", delay,
				"error", err,
			)
		}
		if err := sleep(ctx, capDelay(delay, p.MaxDelay)); err != nil {
			return zero, fmt.Errorf("retry interrupted: %w", errors.Join(err, lastErr))
		}
		delay = next(delay, p.Multiplier, p.MaxDelay)
	}

	return zero, &ExhaustedError{Name: p.Name, Attempts: tries, Err: lastErr}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type outcome[T any] struct {
	v   T
	err error
}

// runAttempt bounds one attempt by timeout. An op that ignores its context is
// abandoned once the deadline passes; its late result is discarded.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := op(attemptCtx)
		done <- outcome[T]{v: v, err: err}
	}()

	select {
	case out := <-done:
		return out.v, out.err
	case <-attemptCtx.Done():
		var zero T
		return zero, fmt.Errorf("attempt timed out after %s: %w", timeout, attemptCtx.Err())
	}
}

func capDelay(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

func next(d time.Duration, multiplier float64, max time.Duration) time.Duration {
	if multiplier <= 1 {
		return d
	}
	return capDelay(time.Duration(float64(d)*multiplier), max)
}
