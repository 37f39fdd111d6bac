// Package job reads batch run definitions from YAML files.
//
//	input: "docs/**/*.md"
//	output: out
//	prompt_file: prompts/translate.txt
//	concurrency: 4
//	retries: 2
package job

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Job defines a batch run. Zero values mean "not set".
type Job struct {
	Name        string `yaml:"name"`
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	Prompt      string `yaml:"prompt"`
	PromptFile  string `yaml:"prompt_file"`
	Model       string `yaml:"model"`
	Concurrency *int   `yaml:"concurrency"`
	Retries     *int   `yaml:"retries"`
}

// Load parses a job file. Relative prompt_file paths resolve against the
// job file's directory.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if j.Concurrency != nil && *j.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1")
	}
	if j.Retries != nil && *j.Retries < 0 {
		return nil, fmt.Errorf("retries must not be negative")
	}
	if j.Prompt != "" && j.PromptFile != "" {
		return nil, fmt.Errorf("prompt and prompt_file are mutually exclusive")
	}
	if j.PromptFile != "" && !filepath.IsAbs(j.PromptFile) {
		j.PromptFile = filepath.Join(filepath.Dir(path), j.PromptFile)
	}
	if j.Name == "" {
		base := filepath.Base(path)
		j.Name = base[:len(base)-len(filepath.Ext(base))]
	}

	return &j, nil
}
