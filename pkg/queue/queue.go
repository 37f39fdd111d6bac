// Package queue provides a bounded-concurrency task queue with a
// submit / await-all contract.
package queue

import (
	"golang.org/x/sync/errgroup"
)

// Queue runs submitted functions with at most a fixed number in flight.
//
// Submit admits functions in call order: when every slot is taken it blocks
// until one frees, so functions submitted from a single goroutine start in
// FIFO order. Completion order is unconstrained. Submit must not be called
// from inside a queued function.
type Queue struct {
	g     errgroup.Group
	limit int
}

// New creates a queue that runs at most concurrency functions at once.
// Values below 1 are treated as 1.
func New(concurrency int) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	q := &Queue{limit: concurrency}
	q.g.SetLimit(concurrency)
	return q
}

// Limit returns the concurrency cap.
func (q *Queue) Limit() int { return q.limit }

// Submit runs fn in its own goroutine once a slot is available.
func (q *Queue) Submit(fn func()) {
	q.g.Go(func() error {
		fn()
		return nil
	})
}

// Wait blocks until every submitted function has returned.
func (q *Queue) Wait() {
	_ = q.g.Wait()
}
