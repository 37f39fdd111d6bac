// Package source turns user input into work items: a glob pattern expanded
// once into an ordered file list, or a single blob read from stdin.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mattn/go-isatty"

	"github.com/jxucoder/llmproc/pkg/model"
)

// ErrNoInput is returned when a pattern matches no files and no piped
// data is available.
var ErrNoInput = errors.New("no input files found")

// Batch is the fixed result of expanding an input pattern.
type Batch struct {
	Pattern string
	// Base is the static directory prefix of Pattern. Destinations mirror
	// each file's path relative to it.
	Base  string
	Paths []string
}

// Expand resolves pattern to a sorted list of regular files. "**" matches
// any number of directories. A pattern naming an existing directory is
// treated as every file beneath it.
func Expand(pattern string) (*Batch, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty input pattern: %w", ErrNoInput)
	}

	glob := pattern
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		glob = filepath.Join(pattern, "**", "*")
	}

	if !doublestar.ValidatePathPattern(glob) {
		return nil, fmt.Errorf("invalid input pattern %q", pattern)
	}

	paths, err := doublestar.FilepathGlob(glob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w matching %q", ErrNoInput, pattern)
	}
	sort.Strings(paths)

	base, _ := doublestar.SplitPattern(filepath.ToSlash(glob))
	return &Batch{
		Pattern: pattern,
		Base:    filepath.FromSlash(base),
		Paths:   paths,
	}, nil
}

// Items pairs every path with the prompt, preserving enumeration order.
func (b *Batch) Items(prompt string) []model.WorkItem {
	items := make([]model.WorkItem, len(b.Paths))
	for i, p := range b.Paths {
		items[i] = model.WorkItem{Index: i, Path: p, Prompt: prompt}
	}
	return items
}

// Rel returns the destination-relative name for path. Paths outside Base
// fall back to their file name.
func (b *Batch) Rel(path string) string {
	rel, err := filepath.Rel(b.Base, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return rel
}

// Piped reports whether f is connected to a pipe or file rather than an
// interactive terminal.
func Piped(f *os.File) bool {
	fd := f.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// ReadAll reads a single inline payload. Empty input is ErrNoInput.
func ReadAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("stdin is empty: %w", ErrNoInput)
	}
	return string(data), nil
}
