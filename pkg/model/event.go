package model

import "time"

// EventType identifies a step in the life of a work item.
type EventType string

const (
	EventStarted   EventType = "started"
	EventRetrying  EventType = "retrying"
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
)

// Terminal reports whether no further events follow for the item.
func (t EventType) Terminal() bool {
	return t == EventSucceeded || t == EventFailed
}

// Event is a progress notification for one work item.
type Event struct {
	Type      EventType
	Index     int
	Source    string
	Attempt   int
	Err       error
	CreatedAt time.Time
}
