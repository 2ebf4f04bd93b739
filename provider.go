package parley

import (
	"context"
	"fmt"
)

// Provider abstracts the LLM backend.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Name returns the provider name (e.g. "openai").
	Name() string
}

// ChatMessage is one turn of LLM context.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// BuildChatContext converts a chat transcript into LLM context from the point
// of view of member selfID: the member's own messages become assistant turns,
// everyone else's become user turns prefixed with the speaker's name. A
// non-empty system prompt leads the context.
func BuildChatContext(selfID, system string, msgs []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, ChatMessage{Role: "system", Content: system})
	}
	for _, m := range msgs {
		if m.FromMemberID == selfID {
			out = append(out, ChatMessage{Role: "assistant", Content: m.Message})
		} else {
			out = append(out, ChatMessage{
				Role:    "user",
				Content: fmt.Sprintf("%s: %s", m.FromMemberName, m.Message),
			})
		}
	}
	return out
}
