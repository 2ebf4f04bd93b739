package parley

import (
	"context"
	"testing"
	"time"
)

type countingProvider struct {
	calls int
	usage Usage
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	c.calls++
	return ChatResponse{Content: "ok", Usage: c.usage}, nil
}

func TestWithRateLimitPassesThrough(t *testing.T) {
	p := &countingProvider{}
	r := WithRateLimit(p, RPM(100))

	for i := 0; i < 3; i++ {
		resp, err := r.Chat(context.Background(), ChatRequest{})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if resp.Content != "ok" {
			t.Errorf("Content = %q, want %q", resp.Content, "ok")
		}
	}
	if p.calls != 3 {
		t.Errorf("inner calls = %d, want 3", p.calls)
	}
	if r.Name() != "counting" {
		t.Errorf("Name() = %q, want inner name", r.Name())
	}
}

func TestWithRateLimitBlocksAtRPM(t *testing.T) {
	p := &countingProvider{}
	r := WithRateLimit(p, RPM(1))

	if _, err := r.Chat(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("first Chat() error = %v", err)
	}

	// Budget exhausted for a minute; a cancelled context must unblock.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Chat(ctx, ChatRequest{})
	if err != context.DeadlineExceeded {
		t.Fatalf("second Chat() error = %v, want context.DeadlineExceeded", err)
	}
	if p.calls != 1 {
		t.Errorf("inner calls = %d, want 1", p.calls)
	}
}

func TestWithRateLimitBlocksAtTPM(t *testing.T) {
	p := &countingProvider{usage: Usage{InputTokens: 80, OutputTokens: 40}}
	r := WithRateLimit(p, TPM(100))

	// First request is admitted; its recorded usage exceeds the budget.
	if _, err := r.Chat(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("first Chat() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.Chat(ctx, ChatRequest{}); err != context.DeadlineExceeded {
		t.Fatalf("second Chat() error = %v, want context.DeadlineExceeded", err)
	}
	if p.calls != 1 {
		t.Errorf("inner calls = %d, want 1", p.calls)
	}
}

func TestWithRateLimitUnlimited(t *testing.T) {
	p := &countingProvider{usage: Usage{InputTokens: 1000}}
	r := WithRateLimit(p)

	for i := 0; i < 5; i++ {
		if _, err := r.Chat(context.Background(), ChatRequest{}); err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
	}
	if p.calls != 5 {
		t.Errorf("inner calls = %d, want 5", p.calls)
	}
}
