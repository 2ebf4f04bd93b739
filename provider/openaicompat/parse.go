package openaicompat

import "github.com/parleyhq/parley"

// ParseResponse converts an OpenAI chat completions response into the parley
// response shape. An empty choice list yields an empty response rather than
// an error; callers treat empty content as a skipped turn.
func ParseResponse(resp ChatResponse) (parley.ChatResponse, error) {
	out := parley.ChatResponse{}
	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		out.Content = resp.Choices[0].Message.Content
	}
	if resp.Usage != nil {
		out.Usage = parley.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return out, nil
}
