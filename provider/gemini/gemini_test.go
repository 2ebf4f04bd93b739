package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parleyhq/parley"
)

func text(s string) *string { return &s }

func withTestServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	old := baseURL
	baseURL = srv.URL
	t.Cleanup(func() { baseURL = old })
}

func TestChatSuccess(t *testing.T) {
	var gotBody map[string]any
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{
				{Text: text("先想一想"), Thought: true},
				{Text: text("我投张三")},
			}}}},
			UsageMetadata: &geminiUsage{PromptTokenCount: 20, CandidatesTokenCount: 4},
		})
	})

	g := New("key", "gemini-2.0-flash", WithTemperature(0.5))
	resp, err := g.Chat(context.Background(), parley.ChatRequest{Messages: []parley.ChatMessage{
		{Role: "system", Content: "你是村民"},
		{Role: "user", Content: "主持人: 请投票"},
		{Role: "assistant", Content: "好的"},
	}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "我投张三" {
		t.Errorf("Content = %q, want thought parts skipped", resp.Content)
	}
	if resp.Usage.InputTokens != 20 || resp.Usage.OutputTokens != 4 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Error("system message not lifted into systemInstruction")
	}
	contents := gotBody["contents"].([]any)
	if len(contents) != 2 {
		t.Fatalf("contents length = %d, want system excluded", len(contents))
	}
	if role := contents[1].(map[string]any)["role"]; role != "model" {
		t.Errorf("assistant role = %v, want model", role)
	}
	gen := gotBody["generationConfig"].(map[string]any)
	if gen["temperature"] != 0.5 {
		t.Errorf("temperature = %v, want 0.5", gen["temperature"])
	}
}

func TestChatHTTPErrorWithRetryInfo(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"details":[
			{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"13s"}]}}`))
	})

	g := New("key", "gemini-2.0-flash")
	_, err := g.Chat(context.Background(), parley.ChatRequest{Messages: []parley.ChatMessage{{Role: "user", Content: "hi"}}})

	var httpErr *parley.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("Chat() error = %v, want *parley.ErrHTTP", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", httpErr.Status)
	}
	if httpErr.RetryAfter != 13*time.Second {
		t.Errorf("RetryAfter = %v, want 13s from RetryInfo detail", httpErr.RetryAfter)
	}
}

func TestChatRetryAfterHeaderWins(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"13s"}]}}`))
	})

	g := New("key", "gemini-2.0-flash")
	_, err := g.Chat(context.Background(), parley.ChatRequest{Messages: []parley.ChatMessage{{Role: "user", Content: "hi"}}})

	var httpErr *parley.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("Chat() error = %v, want *parley.ErrHTTP", err)
	}
	if httpErr.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %v, want header to take precedence", httpErr.RetryAfter)
	}
}

func TestParseRetryInfo(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Duration
	}{
		{"retry info present", `{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"2.5s"}]}}`, 2500 * time.Millisecond},
		{"other detail type", `{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.ErrorInfo"}]}}`, 0},
		{"not json", "plain text error", 0},
		{"empty body", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryInfo(tt.body); got != tt.want {
				t.Errorf("parseRetryInfo() = %v, want %v", got, tt.want)
			}
		})
	}
}
