// Package model holds the data types shared by the llmproc pipeline.
package model

import "time"

// WorkItem is one unit of input paired with the shared prompt.
// Exactly one of Path or Text is set.
type WorkItem struct {
	Index  int
	Path   string
	Text   string
	Prompt string
}

// Inline reports whether the item carries its payload in memory.
func (w WorkItem) Inline() bool { return w.Path == "" }

// Source returns a human-readable label for logs and history.
func (w WorkItem) Source() string {
	if w.Inline() {
		return "<stdin>"
	}
	return w.Path
}

// Status is the terminal state of a WorkItem.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the terminal result of processing one WorkItem.
type Outcome struct {
	Item        WorkItem
	Status      Status
	Output      string
	Destination string // empty when written to stdout
	Err         error  // last error, set on failure
	Attempts    int
	Duration    time.Duration
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Summary counts outcomes over a run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}
