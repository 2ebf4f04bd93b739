package openaicompat

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

func TestChatSuccess(t *testing.T) {
	var gotBody ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			ID: "chatcmpl-1",
			Choices: []Choice{{
				Message:      &ChoiceMessage{Role: "assistant", Content: "你好"},
				FinishReason: "stop",
			}},
			Usage: &Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
		})
	}))
	defer srv.Close()

	p := NewProvider("sk-test", "gpt-4o-mini", srv.URL, WithOptions(WithTemperature(0.7)))
	resp, err := p.Chat(context.Background(), parley.ChatRequest{Messages: []parley.ChatMessage{
		{Role: "system", Content: "你是村民"},
		{Role: "user", Content: "主持人: 天亮了"},
	}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "你好" {
		t.Errorf("Content = %q, want 你好", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("body model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Errorf("body messages = %+v", gotBody.Messages)
	}
	if gotBody.Temperature == nil || *gotBody.Temperature != 0.7 {
		t.Errorf("body temperature = %v, want 0.7", gotBody.Temperature)
	}
}

func TestChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	p := NewProvider("sk-test", "gpt-4o-mini", srv.URL)
	_, err := p.Chat(context.Background(), parley.ChatRequest{Messages: []parley.ChatMessage{{Role: "user", Content: "hi"}}})

	var httpErr *parley.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("Chat() error = %v, want *parley.ErrHTTP", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", httpErr.Status)
	}
	if httpErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", httpErr.RetryAfter)
	}
}

func TestChatDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p := NewProvider("", "m", srv.URL)
	_, err := p.Chat(context.Background(), parley.ChatRequest{Messages: []parley.ChatMessage{{Role: "user", Content: "hi"}}})

	var llmErr *parley.ErrLLM
	if !errors.As(err, &llmErr) {
		t.Fatalf("Chat() error = %v, want *parley.ErrLLM", err)
	}
}

func TestChatNoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("Authorization header set without api key")
		}
		json.NewEncoder(w).Encode(ChatResponse{Choices: []Choice{{Message: &ChoiceMessage{Content: "ok"}}}})
	}))
	defer srv.Close()

	p := NewProvider("", "llama3", srv.URL, WithName("ollama"))
	if p.Name() != "ollama" {
		t.Errorf("Name() = %q, want ollama", p.Name())
	}
	if _, err := p.Chat(context.Background(), parley.ChatRequest{Messages: []parley.ChatMessage{{Role: "user", Content: "hi"}}}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}
