// Package evaluate scores a document against the standard rubric using an
// external chat-completion service, degrading to deterministic fallback
// scores whenever the service or its output lets us down.
package evaluate

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Completer is the single-shot completion call the dimension evaluator
// consumes. It exists so tests can substitute a double for the real service.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client talks to a DeepSeek-compatible chat-completions endpoint.
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
}

// NewClient builds a client for the given endpoint. A zero timeout disables
// the per-call deadline.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		api:     openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(2000),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
