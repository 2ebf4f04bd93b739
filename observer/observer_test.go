package observer

import (
	"context"
	"errors"
	"testing"

	"github.com/parleyhq/parley"
)

// mockProvider for observer tests.
type mockProvider struct {
	name     string
	chatResp parley.ChatResponse
	chatErr  error
	gotReq   parley.ChatRequest
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Chat(_ context.Context, req parley.ChatRequest) (parley.ChatResponse, error) {
	m.gotReq = req
	return m.chatResp, m.chatErr
}

// testInstruments creates a no-op Instruments using the global OTEL providers
// (which are no-ops by default). This is safe for testing delegation behavior
// without any real OTEL backend.
func testInstruments(t *testing.T) *Instruments {
	t.Helper()
	inst, err := newInstruments(nil)
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	return inst
}

func TestObservedProviderName(t *testing.T) {
	inner := &mockProvider{name: "test-provider"}
	op := WrapProvider(inner, "test-model", testInstruments(t))

	got := op.Name()
	if got != "test-provider" {
		t.Errorf("Name() = %q, want %q", got, "test-provider")
	}
}

func TestObservedProviderChat(t *testing.T) {
	want := parley.ChatResponse{
		Content: "hello from LLM",
		Usage:   parley.Usage{InputTokens: 10, OutputTokens: 5},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	req := parley.ChatRequest{Messages: []parley.ChatMessage{
		{Role: "system", Content: "你是村民"},
		{Role: "user", Content: "主持人: 请发言"},
	}}
	got, err := op.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat returned unexpected error: %v", err)
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
	if got.Usage != want.Usage {
		t.Errorf("Usage = %+v, want %+v", got.Usage, want.Usage)
	}
	if len(inner.gotReq.Messages) != 2 {
		t.Errorf("inner request messages = %d, want 2", len(inner.gotReq.Messages))
	}
}

func TestObservedProviderChatError(t *testing.T) {
	wantErr := errors.New("provider unavailable")
	inner := &mockProvider{name: "p", chatErr: wantErr}
	op := WrapProvider(inner, "m", testInstruments(t))

	_, err := op.Chat(context.Background(), parley.ChatRequest{})
	if !errors.Is(err, wantErr) {
		t.Errorf("Chat error = %v, want %v", err, wantErr)
	}
}
