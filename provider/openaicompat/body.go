package openaicompat

import "github.com/parleyhq/parley"

// BuildBody converts parley chat context into an OpenAI chat completions
// request body, applying any request options.
func BuildBody(msgs []parley.ChatMessage, model string, opts ...Option) ChatRequest {
	body := ChatRequest{
		Model:    model,
		Messages: make([]Message, 0, len(msgs)),
	}
	for _, m := range msgs {
		body.Messages = append(body.Messages, Message{Role: m.Role, Content: m.Content})
	}
	for _, opt := range opts {
		opt(&body)
	}
	return body
}
