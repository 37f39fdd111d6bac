// Package openai implements llm.Client on top of the OpenAI Chat Completions
// API. Any OpenAI-compatible endpoint can be targeted through BaseURL.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/jxucoder/llmproc/pkg/llm"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gpt-4o-mini"

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string // empty means the SDK default
	Model   string
	Timeout time.Duration
}

// Client implements llm.Client using the OpenAI Chat Completions API.
type Client struct {
	api   *goopenai.Client
	model string
}

var _ llm.Client = (*Client)(nil)

// New creates a client for the OpenAI API.
func New(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &Client{
		api:   goopenai.NewClientWithConfig(cfg),
		model: opts.Model,
	}
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string { return c.model }

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
