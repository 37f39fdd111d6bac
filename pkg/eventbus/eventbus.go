// Package eventbus provides the Bus interface and an in-memory implementation
// for streaming batch progress.
package eventbus

import (
	"sync"

	"github.com/jxucoder/llmproc/pkg/model"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

// Bus provides pub/sub for work item events.
type Bus interface {
	Subscribe() chan *model.Event
	Unsubscribe(ch chan *model.Event)
	Publish(event *model.Event)
}

// InMemoryBus is the default in-memory Bus implementation.
type InMemoryBus struct {
	mu   sync.RWMutex
	subs []chan *model.Event
}

// NewInMemoryBus creates a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{}
}

// Subscribe creates a channel that receives every published event.
func (b *InMemoryBus) Subscribe() chan *model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *model.Event, subscriberBuffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes ch and closes it.
func (b *InMemoryBus) Unsubscribe(ch chan *model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all subscribers. It never blocks: a full
// subscriber misses the event.
func (b *InMemoryBus) Publish(event *model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
