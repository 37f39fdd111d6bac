// Package llm defines the completion client interface used by llmproc.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the endpoint answers without any text.
var ErrEmptyResponse = errors.New("no response content from model")

// Client is a minimal interface for making LLM API calls.
// Implementations provide the actual transport to a specific provider and
// must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// UserMessage formats file or pipe content as the user turn of a request.
func UserMessage(content string) string {
	return fmt.Sprintf("Input:\n\n %s", content)
}
