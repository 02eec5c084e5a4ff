// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retry loop and response classification
// shared by stages that call external services.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Outcome classifies one attempt of a call.
type Outcome int

const (
	// Success ends the loop with the attempt's value.
	Success Outcome = iota
	// Retryable failures are retried until attempts run out.
	Retryable
	// Fatal failures end the loop immediately without retry.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Attempt is the typed result of one call attempt.
type Attempt[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

// Ok returns a successful attempt.
func Ok[T any](v T) Attempt[T] { return Attempt[T]{Value: v, Outcome: Success} }

// Retry returns a retryable failed attempt.
func Retry[T any](err error) Attempt[T] { return Attempt[T]{Outcome: Retryable, Err: err} }

// Fail returns a fatal failed attempt.
func Fail[T any](err error) Attempt[T] { return Attempt[T]{Outcome: Fatal, Err: err} }

// DefaultBackoffStep is the wait after the first failed attempt. Tests
// override it to avoid real sleeps.
var DefaultBackoffStep = 2 * time.Second

const defaultMaxAttempts = 3

// ErrAttemptsExhausted wraps the last error once every attempt failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy bounds the retry loop. The wait after failed attempt n is
// n * BackoffStep (2s, 4s, 6s with the default step).
type Policy struct {
	// MaxAttempts is the total number of attempts (default 3).
	MaxAttempts int

	// BackoffStep defaults to DefaultBackoffStep.
	BackoffStep time.Duration

	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	step := p.BackoffStep
	if step <= 0 {
		step = DefaultBackoffStep
	}
	return time.Duration(attempt) * step
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return p.MaxAttempts
}

// Do runs fn until it succeeds, fails fatally, or the attempts run out.
// Fatal errors are returned unwrapped so callers can match them; exhausted
// retries wrap the last error with ErrAttemptsExhausted. If ctx is
// cancelled during a wait Do returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) Attempt[T]) (T, error) {
	var zero T
	maxAttempts := p.attempts()

	for attempt := 1; ; attempt++ {
		res := fn(ctx)
		switch res.Outcome {
		case Success:
			return res.Value, nil
		case Fatal:
			return zero, res.Err
		}

		if attempt >= maxAttempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, res.Err)
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, res.Err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Classify maps an HTTP round trip to an outcome. Transport errors, 429 and
// 5xx responses are retryable; a cancelled context, 403 and other non-2xx
// responses are fatal.
func Classify(ctx context.Context, resp *http.Response, err error) Outcome {
	if err != nil {
		if ctx.Err() != nil {
			return Fatal
		}
		return Retryable
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Success
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return Retryable
	default:
		return Fatal
	}
}
