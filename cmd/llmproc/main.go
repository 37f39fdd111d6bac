// llmproc
//
// Send files or piped text to a chat-completion model with a fixed system
// prompt and write the answers back out.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jxucoder/llmproc/internal/config"
	"github.com/jxucoder/llmproc/pkg/llm"
	"github.com/jxucoder/llmproc/pkg/llm/anthropic"
	"github.com/jxucoder/llmproc/pkg/llm/openai"
)

var version = "dev"

// app carries state shared by every command.
type app struct {
	verbose bool
	log     *zap.Logger

	// newClient builds the completion client; tests replace it.
	newClient func(cfg *config.Config) (llm.Client, string)
}

func newApp() *app {
	return &app{
		log:       zap.NewNop(),
		newClient: defaultClient,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "llmproc",
		Short: "Process files with an LLM using a fixed prompt",
		Long: `llmproc sends file contents (or piped text) to a chat-completion model
with a fixed system prompt and writes the responses.

  llmproc run -i "docs/*.md" -o out -p "Translate to French"   Batch mode
  echo "Hello" | llmproc pipe -p "Translate to French"          Pipe mode
  llmproc history                                              Recent runs
  llmproc config set OPENAI_API_KEY sk-...                     Configure`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.log = newLogger(cmd.ErrOrStderr(), a.verbose)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(a),
		newPipeCmd(a),
		newHistoryCmd(),
		newConfigCmd(),
	)
	return root
}

func main() {
	root := newRootCmd(newApp())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger writes human-readable progress lines to w.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	// Items log from many goroutines; w need not be safe for concurrent use.
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core)
}

func defaultClient(cfg *config.Config) (llm.Client, string) {
	if cfg.Provider == config.ProviderAnthropic {
		c := anthropic.New(anthropic.Options{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		return c, c.Model()
	}
	c := openai.New(openai.Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	return c, c.Model()
}

// clientFlags are the provider overrides shared by run and pipe.
type clientFlags struct {
	provider string
	apiKey   string
	baseURL  string
	model    string
	timeout  time.Duration
}

func (f *clientFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "Completion provider: openai or anthropic (env LLMPROC_PROVIDER)")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key (env OPENAI_API_KEY / ANTHROPIC_API_KEY)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "API base URL (env OPENAI_BASE_URL / ANTHROPIC_BASE_URL)")
	cmd.Flags().StringVar(&f.model, "model", "", "Model identifier (env OPENAI_MODEL / ANTHROPIC_MODEL)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Timeout per request, e.g. 90s (env LLMPROC_TIMEOUT)")
}

// load resolves configuration and applies the flag overrides.
func (f *clientFlags) load() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.provider != "" {
		cfg.SetProvider(f.provider)
	}
	if f.apiKey != "" {
		cfg.APIKey = f.apiKey
	}
	if f.baseURL != "" {
		cfg.BaseURL = f.baseURL
	}
	if f.model != "" {
		cfg.Model = f.model
	}
	if f.timeout > 0 {
		cfg.Timeout = f.timeout
	}
	return cfg, nil
}
