// Package runner executes work items against a fallible completion service
// with bounded concurrency and per-item retry.
//
// Every item moves through Pending -> Running -> (Success | RetryWait ->
// Running | Failure). Failures are captured as outcomes and never cancel
// other items; Run returns only after every item is terminal.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jxucoder/llmproc/pkg/eventbus"
	"github.com/jxucoder/llmproc/pkg/model"
	"github.com/jxucoder/llmproc/pkg/queue"
	"github.com/jxucoder/llmproc/pkg/retry"
)

// ErrNoWorkItems is returned by Run before scheduling when there is nothing to do.
var ErrNoWorkItems = errors.New("no work items to process")

// Processor performs one attempt of a work item. The whole call is
// retried on error.
type Processor interface {
	Process(ctx context.Context, item model.WorkItem) (output, dest string, err error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, item model.WorkItem) (string, string, error)

func (f ProcessorFunc) Process(ctx context.Context, item model.WorkItem) (string, string, error) {
	return f(ctx, item)
}

// ExhaustedError is the terminal error of an item whose retries ran out.
type ExhaustedError struct {
	Source   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed to process %s after %d attempts: %v", e.Source, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Options configures a Runner.
type Options struct {
	Concurrency int
	Retry       retry.Policy
	Logger      *zap.Logger
	// Events receives progress for every item. Optional.
	Events eventbus.Bus
}

// Runner schedules work items on a bounded queue and retries failures.
type Runner struct {
	proc        Processor
	concurrency int
	policy      retry.Policy
	log         *zap.Logger
	events      eventbus.Bus
}

// New creates a Runner.
func New(proc Processor, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		proc:        proc,
		concurrency: opts.Concurrency,
		policy:      opts.Retry,
		log:         opts.Logger,
		events:      opts.Events,
	}
}

// Run processes items and returns one outcome per item, in item order.
// The error is non-nil only when items is empty.
func (r *Runner) Run(ctx context.Context, items []model.WorkItem) ([]model.Outcome, error) {
	if len(items) == 0 {
		return nil, ErrNoWorkItems
	}

	r.log.Info("starting batch",
		zap.Int("items", len(items)),
		zap.Int("concurrency", r.concurrency),
		zap.Int("max_retries", r.policy.MaxRetries))

	// Each goroutine writes only its own index.
	outcomes := make([]model.Outcome, len(items))
	q := queue.New(r.concurrency)
	for i, item := range items {
		i, item := i, item
		q.Submit(func() {
			outcomes[i] = r.runOne(ctx, item)
		})
	}
	q.Wait()

	return outcomes, nil
}

func (r *Runner) runOne(ctx context.Context, item model.WorkItem) model.Outcome {
	start := time.Now()
	var output, dest string

	attempts, err := r.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		r.publish(model.EventStarted, item, attempt, nil)
		var err error
		output, dest, err = r.attempt(ctx, item)
		return err
	}, func(attempt, remaining int, err error, delay time.Duration) {
		r.publish(model.EventRetrying, item, attempt, err)
		r.log.Warn("attempt failed, retrying",
			zap.String("source", item.Source()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Int("retries_left", remaining),
			zap.Error(err))
	})

	out := model.Outcome{
		Item:     item,
		Attempts: attempts,
		Duration: time.Since(start),
	}
	if err != nil {
		out.Status = model.StatusFailure
		out.Err = &ExhaustedError{Source: item.Source(), Attempts: attempts, Err: err}
		r.log.Error("failed to process",
			zap.String("source", item.Source()),
			zap.Int("attempts", attempts),
			zap.Error(err))
		r.publish(model.EventFailed, item, attempts, err)
		return out
	}

	out.Status = model.StatusSuccess
	out.Output = output
	out.Destination = dest
	r.log.Debug("processed",
		zap.String("source", item.Source()),
		zap.Int("attempts", attempts),
		zap.Duration("duration", out.Duration))
	r.publish(model.EventSucceeded, item, attempts, nil)
	return out
}

func (r *Runner) publish(typ model.EventType, item model.WorkItem, attempt int, err error) {
	if r.events == nil {
		return
	}
	r.events.Publish(&model.Event{
		Type:      typ,
		Index:     item.Index,
		Source:    item.Source(),
		Attempt:   attempt,
		Err:       err,
		CreatedAt: time.Now(),
	})
}

// attempt turns a panicking processor into an ordinary attempt failure.
func (r *Runner) attempt(ctx context.Context, item model.WorkItem) (output, dest string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while processing %s: %v", item.Source(), p)
		}
	}()
	return r.proc.Process(ctx, item)
}
