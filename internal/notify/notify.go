// Package notify posts end-of-run summaries to chat services.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jxucoder/llmproc/pkg/model"
)

// Message describes a finished batch.
type Message struct {
	RunID   string
	Name    string
	Input   string
	Output  string
	Summary model.Summary
}

// Text renders the message as plain text.
func (m Message) Text() string {
	text := fmt.Sprintf("llmproc: %d/%d succeeded", m.Summary.Succeeded, m.Summary.Total)
	if m.Summary.Failed > 0 {
		text += fmt.Sprintf(" (%d failed)", m.Summary.Failed)
	}
	if m.RunID != "" {
		text += fmt.Sprintf("\nrun: %s", m.RunID)
	}
	if m.Name != "" {
		text += fmt.Sprintf("\njob: %s", m.Name)
	}
	if m.Input != "" {
		text += fmt.Sprintf("\ninput: %s", m.Input)
	}
	if m.Output != "" {
		text += fmt.Sprintf("\noutput: %s", m.Output)
	}
	return text
}

// Notifier delivers a run summary to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Fanout sends to every notifier and joins their errors.
type Fanout struct {
	Notifiers []Notifier
	Logger    *zap.Logger
}

// Notify never stops at the first failure.
func (f *Fanout) Notify(ctx context.Context, msg Message) error {
	log := f.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var errs []error
	for _, n := range f.Notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			log.Warn("notification failed", zap.String("notifier", n.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		log.Debug("notification sent", zap.String("notifier", n.Name()))
	}
	return errors.Join(errs...)
}

// Len returns the number of configured notifiers.
func (f *Fanout) Len() int { return len(f.Notifiers) }
