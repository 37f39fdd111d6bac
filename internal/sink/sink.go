// Package sink persists successful outputs and reports run totals.
package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jxucoder/llmproc/pkg/model"
)

// Sink receives the output of a successful work item.
// Write returns the destination path, or "" for streams.
type Sink interface {
	Write(item model.WorkItem, output string) (string, error)
}

// WriteError is a filesystem failure while persisting an output.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// FileSink writes each output under Dir. Name maps a source path to its
// path relative to Dir; it defaults to the file's base name.
type FileSink struct {
	Dir  string
	Name func(path string) string
}

func (s *FileSink) Write(item model.WorkItem, output string) (string, error) {
	name := filepath.Base(item.Path)
	if s.Name != nil {
		name = s.Name(item.Path)
	}
	dest := filepath.Join(s.Dir, name)
	return dest, writeFile(dest, output)
}

// PathSink writes every output to one fixed path.
type PathSink struct {
	Path string
}

func (s *PathSink) Write(_ model.WorkItem, output string) (string, error) {
	return s.Path, writeFile(s.Path, output)
}

// WriterSink streams outputs to W, newline-terminated.
type WriterSink struct {
	W io.Writer
}

func (s *WriterSink) Write(_ model.WorkItem, output string) (string, error) {
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	if _, err := io.WriteString(s.W, output); err != nil {
		return "", &WriteError{Path: "<stdout>", Err: err}
	}
	return "", nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
