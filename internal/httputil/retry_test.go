// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Use a tiny step so tests finish quickly.
	DefaultBackoffStep = time.Millisecond
}

func TestDo_ImmediateSuccess(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), Policy{}, func(context.Context) Attempt[string] {
		calls++
		return Ok("done")
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	var waits []time.Duration
	p := Policy{OnRetry: func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) }}

	v, err := Do(context.Background(), p, func(context.Context) Attempt[int] {
		calls++
		if calls < 3 {
			return Retry[int](errors.New("HTTP 503"))
		}
		return Ok(42)
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	last := errors.New("connection reset")
	_, err := Do(context.Background(), Policy{}, func(context.Context) Attempt[int] {
		calls++
		return Retry[int](last)
	})
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, defaultMaxAttempts, calls)
}

func TestDo_FatalStopsImmediately(t *testing.T) {
	calls := 0
	quota := errors.New("quota exceeded")
	_, err := Do(context.Background(), Policy{MaxAttempts: 5}, func(context.Context) Attempt[int] {
		calls++
		return Fail[int](quota)
	})
	assert.Equal(t, quota, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Do(ctx, Policy{BackoffStep: time.Second, MaxAttempts: 3}, func(context.Context) Attempt[int] {
		return Retry[int](errors.New("HTTP 500"))
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPolicy_BackoffSequence(t *testing.T) {
	p := Policy{BackoffStep: 2 * time.Second}
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 6*time.Second, p.Backoff(3))
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		status int
		want   Outcome
	}{
		{http.StatusOK, Success},
		{http.StatusForbidden, Fatal},
		{http.StatusNotFound, Fatal},
		{http.StatusTooManyRequests, Retryable},
		{http.StatusInternalServerError, Retryable},
		{http.StatusServiceUnavailable, Retryable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			resp, err := ts.Client().Get(ts.URL)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, Classify(ctx, resp, err))
		})
	}
}

func TestClassify_TransportErrors(t *testing.T) {
	assert.Equal(t, Retryable, Classify(context.Background(), nil, errors.New("dial tcp: refused")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Fatal, Classify(ctx, nil, context.Canceled))
}
