package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Key describes a single configuration value managed by `llmproc config`.
type Key struct {
	Name   string
	Desc   string
	Secret bool
}

// Keys lists every configurable value in display order.
var Keys = []Key{
	{"LLMPROC_PROVIDER", "Completion provider (openai or anthropic)", false},
	{"OPENAI_API_KEY", "OpenAI API key", true},
	{"OPENAI_BASE_URL", "OpenAI-compatible API base URL", false},
	{"OPENAI_MODEL", "OpenAI model identifier", false},
	{"ANTHROPIC_API_KEY", "Anthropic API key", true},
	{"ANTHROPIC_BASE_URL", "Anthropic API base URL", false},
	{"ANTHROPIC_MODEL", "Anthropic model identifier", false},
	{"MAX_CONCURRENT_REQUESTS", "Default batch concurrency", false},
	{"MAX_RETRIES", "Default retries per file", false},
	{"LLMPROC_TIMEOUT", "Timeout for a single completion request", false},
	{"LLMPROC_HISTORY", "Record runs in the history database (on/off)", false},
	{"SLACK_BOT_TOKEN", "Slack bot token for run summaries", true},
	{"SLACK_CHANNEL", "Slack channel ID for run summaries", false},
	{"TELEGRAM_BOT_TOKEN", "Telegram bot token for run summaries", true},
	{"TELEGRAM_CHAT_ID", "Telegram chat ID for run summaries", false},
}

// FilePath returns <data dir>/config.env.
func FilePath() string {
	return filepath.Join(envOr("LLMPROC_DATA_DIR", defaultDataDir()), "config.env")
}

// ReadFile reads key=value pairs. A missing file yields an empty map.
func ReadFile(path string) (map[string]string, error) {
	values := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		values[strings.TrimSpace(parts[0])] = unquote(strings.TrimSpace(parts[1]))
	}
	return values, scanner.Err()
}

// WriteFile writes key=value pairs: known keys first, then extras sorted.
func WriteFile(path string, values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "# llmproc configuration")
	fmt.Fprintln(f, "# Managed by: llmproc config")
	fmt.Fprintln(f, "# Environment variables override these values.")
	fmt.Fprintln(f)

	written := make(map[string]bool)
	for _, k := range Keys {
		if v, ok := values[k.Name]; ok && v != "" {
			fmt.Fprintf(f, "%s=%s\n", k.Name, v)
			written[k.Name] = true
		}
	}
	var extras []string
	for k, v := range values {
		if !written[k] && v != "" {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		fmt.Fprintf(f, "%s=%s\n", k, values[k])
	}
	return f.Close()
}

// MaskSecret masks a secret string, showing only the first 4 and last 4 characters.
func MaskSecret(s string) string {
	if len(s) <= 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// loadEnvFile sets any values from path that are not already present in
// the environment. A missing file is not an error.
func loadEnvFile(path string) error {
	values, err := ReadFile(path)
	if err != nil {
		return err
	}
	for key, value := range values {
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	return nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
