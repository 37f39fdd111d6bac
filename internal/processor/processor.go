// Package processor implements a single attempt at one work item: read the
// input, ask the model, write the answer.
package processor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jxucoder/llmproc/internal/sink"
	"github.com/jxucoder/llmproc/pkg/llm"
	"github.com/jxucoder/llmproc/pkg/model"
)

const previewLen = 50

// Processor sends work items to a completion client and hands the result
// to a sink. It holds no per-item state and is safe for concurrent use.
type Processor struct {
	client llm.Client
	sink   sink.Sink
	log    *zap.Logger
}

// New creates a Processor. A nil logger discards output.
func New(client llm.Client, s sink.Sink, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{client: client, sink: s, log: log}
}

// Process runs the whole unit of work once and returns the model output
// and where it was written.
func (p *Processor) Process(ctx context.Context, item model.WorkItem) (string, string, error) {
	content := item.Text
	if !item.Inline() {
		data, err := os.ReadFile(item.Path)
		if err != nil {
			return "", "", fmt.Errorf("reading input: %w", err)
		}
		content = string(data)
	}

	p.log.Info("processing",
		zap.String("source", item.Source()),
		zap.String("preview", Preview(content)))

	output, err := p.client.Complete(ctx, item.Prompt, llm.UserMessage(content))
	if err != nil {
		return "", "", err
	}
	if output == "" {
		return "", "", llm.ErrEmptyResponse
	}
	p.log.Debug("result", zap.String("source", item.Source()), zap.String("preview", Preview(output)))

	dest, err := p.sink.Write(item, output)
	if err != nil {
		return "", "", err
	}
	if dest != "" {
		p.log.Info("saved", zap.String("source", item.Source()), zap.String("dest", dest))
	}
	return output, dest, nil
}

// Preview returns the first characters of s on a single line.
func Preview(s string) string {
	r := []rune(s)
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	return strings.ReplaceAll(string(r), "\n", " ")
}
