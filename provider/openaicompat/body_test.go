package openaicompat

import (
	"testing"

	"github.com/parleyhq/parley"
)

func TestBuildBody(t *testing.T) {
	msgs := []parley.ChatMessage{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "alice: hello"},
		{Role: "assistant", Content: "hi"},
	}
	body := BuildBody(msgs, "gpt-4o-mini", WithMaxTokens(256), WithStop("TERMINATE"))

	if body.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", body.Model)
	}
	if len(body.Messages) != 3 || body.Messages[2].Role != "assistant" {
		t.Errorf("Messages = %+v", body.Messages)
	}
	if body.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d, want 256", body.MaxTokens)
	}
	if len(body.Stop) != 1 || body.Stop[0] != "TERMINATE" {
		t.Errorf("Stop = %v", body.Stop)
	}
	if body.Temperature != nil {
		t.Errorf("Temperature set without option: %v", *body.Temperature)
	}
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse(ChatResponse{
		Choices: []Choice{{Message: &ChoiceMessage{Content: "回复"}}},
		Usage:   &Usage{PromptTokens: 5, CompletionTokens: 2},
	})
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if resp.Content != "回复" || resp.Usage.InputTokens != 5 || resp.Usage.OutputTokens != 2 {
		t.Errorf("ParseResponse() = %+v", resp)
	}

	empty, err := ParseResponse(ChatResponse{})
	if err != nil || empty.Content != "" {
		t.Errorf("empty response = %+v, err %v", empty, err)
	}
}
