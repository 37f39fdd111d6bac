package main

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jxucoder/llmproc/internal/config"
	"github.com/jxucoder/llmproc/internal/history"
	"github.com/jxucoder/llmproc/internal/processor"
	"github.com/jxucoder/llmproc/internal/sink"
	"github.com/jxucoder/llmproc/internal/source"
	"github.com/jxucoder/llmproc/pkg/model"
)

const stdoutLabel = "<stdout>"

type pipeOptions struct {
	prompt     string
	promptFile string
	noHistory  bool
	client     clientFlags
}

func newPipeCmd(a *app) *cobra.Command {
	var o pipeOptions
	cmd := &cobra.Command{
		Use:   "pipe [input-file|-] [output]",
		Short: "Process a single file or stdin",
		Long: `Process one input without retry. Input is read from stdin when no file
is given (or the file is "-") and stdin is not a terminal. Without an output
the response is printed to stdout. With a file input the output is a
directory and the response is written under the input's base name; with
stdin the output is the destination file.`,
		Example: `  echo "Hello" | llmproc pipe -p "Translate to French"
  llmproc pipe notes.md out -f summarize.txt
  cat notes.md | llmproc pipe summary.md -p "Summarize"`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPipe(cmd, &o, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.prompt, "prompt", "p", "", "System prompt text")
	f.StringVarP(&o.promptFile, "prompt-file", "f", "", "File containing the system prompt")
	f.BoolVar(&o.noHistory, "no-history", false, "Do not record this run in the history database")
	o.client.bind(cmd)

	return cmd
}

func (a *app) runPipe(cmd *cobra.Command, o *pipeOptions, args []string) error {
	prompt, err := config.ResolvePrompt(o.prompt, o.promptFile)
	if err != nil {
		return err
	}
	cfg, err := o.client.load()
	if err != nil {
		return err
	}
	if o.noHistory {
		cfg.HistoryEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	in := cmd.InOrStdin()
	inputPath, outputPath := pipeArgs(args, stdinPiped(in))

	item := model.WorkItem{Prompt: prompt}
	if inputPath == "" {
		if !stdinPiped(in) {
			return errors.New("no input: pass a file or pipe data on stdin")
		}
		text, err := source.ReadAll(in)
		if err != nil {
			return err
		}
		item.Text = text
	} else {
		item.Path = inputPath
	}

	var s sink.Sink
	switch {
	case outputPath == "":
		s = &sink.WriterSink{W: cmd.OutOrStdout()}
	case item.Inline():
		s = &sink.PathSink{Path: outputPath}
	default:
		s = &sink.FileSink{Dir: outputPath}
	}

	client, modelName := a.newClient(cfg)
	proc := processor.New(client, s, a.log)

	started := time.Now().UTC()
	output, dest, err := proc.Process(cmd.Context(), item)
	outcome := model.Outcome{
		Item:        item,
		Status:      model.StatusSuccess,
		Output:      output,
		Destination: dest,
		Attempts:    1,
		Duration:    time.Since(started),
	}
	if err != nil {
		outcome.Status = model.StatusFailure
		outcome.Err = err
	}

	recorded := outputPath
	if recorded == "" {
		recorded = stdoutLabel
	}
	a.record(cfg, &history.Run{
		ID:          history.NewRunID(),
		Mode:        history.ModePipe,
		Input:       item.Source(),
		Output:      recorded,
		Model:       modelName,
		Concurrency: 1,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
	}, []model.Outcome{outcome})

	return err
}

// pipeArgs splits positional arguments into input and output paths. With
// piped stdin a single argument that is not an existing file names the
// output. An input of "-" means stdin.
func pipeArgs(args []string, piped bool) (input, output string) {
	switch len(args) {
	case 2:
		input, output = args[0], args[1]
	case 1:
		if piped && args[0] != "-" && !isFile(args[0]) {
			output = args[0]
		} else {
			input = args[0]
		}
	}
	if input == "-" {
		input = ""
	}
	return input, output
}

func stdinPiped(r io.Reader) bool {
	if f, ok := r.(*os.File); ok {
		return source.Piped(f)
	}
	return true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
