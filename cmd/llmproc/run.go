package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jxucoder/llmproc/internal/config"
	"github.com/jxucoder/llmproc/internal/history"
	"github.com/jxucoder/llmproc/internal/job"
	"github.com/jxucoder/llmproc/internal/notify"
	"github.com/jxucoder/llmproc/internal/processor"
	"github.com/jxucoder/llmproc/internal/runner"
	"github.com/jxucoder/llmproc/internal/sink"
	"github.com/jxucoder/llmproc/internal/source"
	"github.com/jxucoder/llmproc/pkg/eventbus"
	"github.com/jxucoder/llmproc/pkg/model"
	"github.com/jxucoder/llmproc/pkg/retry"
)

type runOptions struct {
	input       string
	output      string
	prompt      string
	promptFile  string
	concurrency int
	retries     int
	jobFile     string
	name        string
	noHistory   bool
	client      clientFlags
}

func newRunCmd(a *app) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every file matching a glob pattern",
		Long: `Process every file matching the input pattern concurrently and write
each response under the output directory, mirroring paths relative to the
pattern's static prefix. Failed files are retried with exponential backoff.`,
		Example: `  llmproc run -i "docs/*.md" -o out -p "Translate to French"
  llmproc run -i "src/**/*.go" -o reviews -f review.txt -c 10 -r 5
  llmproc run --job nightly.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, &o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.input, "input", "i", "", `Input glob pattern or directory (e.g. "docs/**/*.md")`)
	f.StringVarP(&o.output, "output", "o", "", "Output directory")
	f.StringVarP(&o.prompt, "prompt", "p", "", "System prompt text")
	f.StringVarP(&o.promptFile, "prompt-file", "f", "", "File containing the system prompt")
	f.IntVarP(&o.concurrency, "concurrency", "c", config.DefaultConcurrency, "Maximum concurrent requests (env MAX_CONCURRENT_REQUESTS)")
	f.IntVarP(&o.retries, "retries", "r", config.DefaultMaxRetries, "Retries per file after the first attempt (env MAX_RETRIES)")
	f.StringVar(&o.jobFile, "job", "", "YAML job file supplying input, output, prompt and limits")
	f.BoolVar(&o.noHistory, "no-history", false, "Do not record this run in the history database")
	o.client.bind(cmd)

	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, o *runOptions) error {
	cfg, err := o.client.load()
	if err != nil {
		return err
	}
	if err := o.apply(cmd, cfg); err != nil {
		return err
	}

	if o.input == "" {
		return errors.New("--input is required")
	}
	if o.output == "" {
		return errors.New("--output is required")
	}
	prompt, err := config.ResolvePrompt(o.prompt, o.promptFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	batch, err := source.Expand(o.input)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(o.output, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	client, modelName := a.newClient(cfg)
	proc := processor.New(client, &sink.FileSink{Dir: o.output, Name: batch.Rel}, a.log)
	bus := eventbus.NewInMemoryBus()
	r := runner.New(proc, runner.Options{
		Concurrency: cfg.Concurrency,
		Retry:       retry.New(cfg.MaxRetries),
		Logger:      a.log,
		Events:      bus,
	})

	run := &history.Run{
		ID:          history.NewRunID(),
		Name:        o.name,
		Mode:        history.ModeBatch,
		Input:       o.input,
		Output:      o.output,
		Model:       modelName,
		Concurrency: cfg.Concurrency,
		MaxRetries:  cfg.MaxRetries,
		StartedAt:   time.Now().UTC(),
	}
	a.log.Info("found files",
		zap.Int("count", len(batch.Paths)),
		zap.String("run", run.ID),
		zap.String("model", modelName))

	events := bus.Subscribe()
	tracked := make(chan struct{})
	go func() {
		defer close(tracked)
		a.trackProgress(events, len(batch.Paths))
	}()

	outcomes, err := r.Run(cmd.Context(), batch.Items(prompt))
	bus.Unsubscribe(events)
	<-tracked
	if err != nil {
		return err
	}
	run.FinishedAt = time.Now().UTC()

	summary := sink.Report(cmd.OutOrStdout(), cmd.ErrOrStderr(), outcomes)

	a.record(cfg, run, outcomes)
	a.notify(cmd.Context(), notifiers(cfg), notify.Message{
		RunID:   run.ID,
		Name:    run.Name,
		Input:   o.input,
		Output:  o.output,
		Summary: summary,
	})

	// Partial failure is reported, not fatal.
	return nil
}

// trackProgress logs a running tally of finished items until ch closes.
func (a *app) trackProgress(ch <-chan *model.Event, total int) {
	done, failed := 0, 0
	for ev := range ch {
		if !ev.Type.Terminal() {
			continue
		}
		done++
		if ev.Type == model.EventFailed {
			failed++
		}
		a.log.Info("progress",
			zap.Int("done", done),
			zap.Int("total", total),
			zap.Int("failed", failed))
	}
}

// apply merges the job file and explicit flags into o and cfg.
// Precedence: flag > job file > environment.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if o.jobFile != "" {
		j, err := job.Load(o.jobFile)
		if err != nil {
			return fmt.Errorf("loading job %s: %w", o.jobFile, err)
		}
		o.name = j.Name
		if !flags.Changed("input") && j.Input != "" {
			o.input = j.Input
		}
		if !flags.Changed("output") && j.Output != "" {
			o.output = j.Output
		}
		if !flags.Changed("prompt") && !flags.Changed("prompt-file") {
			o.prompt, o.promptFile = j.Prompt, j.PromptFile
		}
		if !flags.Changed("model") && j.Model != "" {
			cfg.Model = j.Model
		}
		if j.Concurrency != nil {
			cfg.Concurrency = *j.Concurrency
		}
		if j.Retries != nil {
			cfg.MaxRetries = *j.Retries
		}
	}

	if flags.Changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if flags.Changed("retries") {
		cfg.MaxRetries = o.retries
	}
	if o.noHistory {
		cfg.HistoryEnabled = false
	}
	return nil
}
