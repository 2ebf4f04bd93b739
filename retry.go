package parley

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Defaults for the reply-path retry policy.
const (
	DefaultRetryAttempts  = 10
	DefaultRetryBaseDelay = 5 * time.Second
	DefaultRetryMaxDelay  = 120 * time.Second
)

// retryProvider wraps a Provider and automatically retries transient errors
// (HTTP 429 and 503, network timeouts) with exponential backoff.
type retryProvider struct {
	inner       Provider
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *slog.Logger
}

// RetryOption configures a retryProvider.
type RetryOption func(*retryProvider)

// RetryMaxAttempts sets the maximum number of attempts (default: 10).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryProvider) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt
// (default: 5s). Each subsequent delay doubles until RetryMaxDelay.
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.baseDelay = d }
}

// RetryMaxDelay caps the per-attempt backoff delay (default: 120s).
func RetryMaxDelay(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.maxDelay = d }
}

// RetryLogger sets the structured logger for retry events. Retries log at
// WARN, final failures after exhausting attempts at ERROR. If not set, a
// no-op logger is used.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *retryProvider) { r.logger = l }
}

// WithRetry wraps p with automatic retry on transient errors. Backoff is
// exponential with jitter, capped at RetryMaxDelay; when the error carries a
// Retry-After duration, the delay is at least that long. Compose with any
// Provider:
//
//	llm = parley.WithRetry(openaicompat.NewProvider(key, model, base))
//	llm = parley.WithRetry(p, parley.RetryMaxAttempts(3))
func WithRetry(p Provider, opts ...RetryOption) Provider {
	r := &retryProvider{
		inner:       p,
		maxAttempts: DefaultRetryAttempts,
		baseDelay:   DefaultRetryBaseDelay,
		maxDelay:    DefaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = nopLogger
	}
	return r
}

// Name delegates to the inner provider.
func (r *retryProvider) Name() string { return r.inner.Name() }

// Chat implements Provider with retry.
func (r *retryProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var last error
	for i := 0; i < r.maxAttempts; i++ {
		resp, err := r.inner.Chat(ctx, req)
		if err == nil || !isTransient(err) {
			return resp, err
		}
		last = err
		r.logger.Warn("retrying transient error",
			"provider", r.inner.Name(),
			"status", statusOf(err),
			"attempt", i+1,
			"max_attempts", r.maxAttempts)
		if i < r.maxAttempts-1 {
			timer := time.NewTimer(r.delay(i, err))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ChatResponse{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	r.logger.Error("all retry attempts exhausted",
		"provider", r.inner.Name(),
		"attempts", r.maxAttempts,
		"error", last)
	return ChatResponse{}, last
}

// delay computes the wait before retry attempt i, using capped exponential
// backoff as a floor and the server's Retry-After value (if present) as a
// minimum.
func (r *retryProvider) delay(i int, err error) time.Duration {
	backoff := retryBackoff(r.baseDelay, r.maxDelay, i)
	if ra := retryAfterOf(err); ra > backoff {
		return ra
	}
	return backoff
}

// retryBackoff returns the delay for retry i (0-indexed): base * 2^i plus up
// to 50% random jitter, capped at max.
func retryBackoff(base, max time.Duration, i int) time.Duration {
	exp := base * (1 << i)
	if exp > max || exp <= 0 {
		exp = max
	}
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	if exp+jitter > max {
		return max
	}
	return exp + jitter
}

// isTransient reports whether err is worth retrying: a rate-limit or
// overloaded HTTP status, or a network-level timeout.
func isTransient(err error) bool {
	var httpErr *ErrHTTP
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusTooManyRequests ||
			httpErr.Status == http.StatusServiceUnavailable
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// statusOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryAfterOf extracts the Retry-After duration from an ErrHTTP, or 0.
func retryAfterOf(err error) time.Duration {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// ParseRetryAfter parses an HTTP Retry-After header value: either a delay in
// seconds or an HTTP date. Returns 0 for empty or unparseable values.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// compile-time check
var _ Provider = (*retryProvider)(nil)
