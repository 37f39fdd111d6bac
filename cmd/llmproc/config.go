package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jxucoder/llmproc/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage llmproc configuration",
		Long: `Manage llmproc configuration (API keys, defaults, notifications).

Configuration is stored in ~/.llmproc/config.env and can be overridden
by environment variables, a local .env file and command-line flags.

  llmproc config set KEY VALUE      Set a single config value
  llmproc config show               Show current configuration
  llmproc config path               Print config file path`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Set a config value",
			Long: `Set a single configuration value. Example:
  llmproc config set OPENAI_API_KEY sk-xxxxxxxxxxxx`,
			Args: cobra.ExactArgs(2),
			RunE: runConfigSet,
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show current configuration",
			Long:  "Display all configured values. Secrets are masked.",
			Args:  cobra.NoArgs,
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), config.FilePath())
				return nil
			},
		},
	)
	return cmd
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	path := config.FilePath()
	values, err := config.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	values[key] = value
	if err := config.WriteFile(path, values); err != nil {
		return err
	}

	display := value
	if k, ok := findKey(key); ok && k.Secret {
		display = config.MaskSecret(value)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, display)
	return nil
}

// runConfigShow displays the current effective configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	path := config.FilePath()
	values, err := config.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config file: %s\n\n", path)

	for _, k := range config.Keys {
		value := values[k.Name]
		source := ""
		if v := os.Getenv(k.Name); v != "" {
			value = v
			source = " (from env)"
		} else if value != "" {
			source = " (from config file)"
		}

		display := "(not set)"
		if value != "" {
			display = value
			if k.Secret {
				display = config.MaskSecret(value)
			}
		}
		fmt.Fprintf(out, "  %-24s %s%s\n", k.Name, display, source)
	}
	return nil
}

func findKey(name string) (config.Key, bool) {
	for _, k := range config.Keys {
		if k.Name == name {
			return k, true
		}
	}
	return config.Key{}, false
}
