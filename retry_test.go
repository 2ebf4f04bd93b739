package parley

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyProvider fails with err for failures attempts, then succeeds.
type flakyProvider struct {
	failures int
	err      error
	calls    int
}

func (f *flakyProvider) Name() string { return "flaky" }

func (f *flakyProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return ChatResponse{}, f.err
	}
	return ChatResponse{Content: "ok"}, nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestWithRetryRecoversFromRateLimit(t *testing.T) {
	p := &flakyProvider{failures: 2, err: &ErrHTTP{Status: 429, Body: "slow down"}}
	r := WithRetry(p, RetryBaseDelay(time.Millisecond), RetryMaxDelay(5*time.Millisecond))

	resp, err := r.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want %q", resp.Content, "ok")
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestWithRetryNetworkTimeoutIsTransient(t *testing.T) {
	p := &flakyProvider{failures: 1, err: timeoutErr{}}
	r := WithRetry(p, RetryBaseDelay(time.Millisecond), RetryMaxDelay(5*time.Millisecond))

	if _, err := r.Chat(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestWithRetryNonTransientFailsFast(t *testing.T) {
	wantErr := &ErrHTTP{Status: 401, Body: "bad key"}
	p := &flakyProvider{failures: 10, err: wantErr}
	r := WithRetry(p, RetryBaseDelay(time.Millisecond))

	_, err := r.Chat(context.Background(), ChatRequest{})
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != 401 {
		t.Fatalf("Chat() error = %v, want http 401", err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	p := &flakyProvider{failures: 100, err: &ErrHTTP{Status: 503, Body: "overloaded"}}
	r := WithRetry(p, RetryMaxAttempts(3), RetryBaseDelay(time.Millisecond), RetryMaxDelay(2*time.Millisecond))

	_, err := r.Chat(context.Background(), ChatRequest{})
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != 503 {
		t.Fatalf("Chat() error = %v, want http 503", err)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestWithRetryContextCancellation(t *testing.T) {
	p := &flakyProvider{failures: 100, err: &ErrHTTP{Status: 429}}
	r := WithRetry(p, RetryBaseDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Chat(ctx, ChatRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Chat() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRetryBackoffCapped(t *testing.T) {
	max := 120 * time.Second
	for i := 0; i < 20; i++ {
		if d := retryBackoff(5*time.Second, max, i); d > max {
			t.Errorf("retryBackoff(i=%d) = %v, exceeds cap %v", i, d, max)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"-5", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	// HTTP-date form: a moment in the future parses to a positive delay.
	future := time.Now().Add(90 * time.Second).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
	if got := ParseRetryAfter(future); got <= 0 || got > 91*time.Second {
		t.Errorf("ParseRetryAfter(date) = %v, want ~90s", got)
	}
}
