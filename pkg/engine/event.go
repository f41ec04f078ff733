package engine

import (
	"sync"
	"time"

	"github.com/germanamz/sleuth/pkg/agent"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventQuestion       EventKind = "question" // A session accepted a question.
	EventReasoningStart EventKind = EventKind(agent.EventReasoningStart)
	EventDecision       EventKind = EventKind(agent.EventDecision)
	EventToolCallStart  EventKind = EventKind(agent.EventToolCallStart)
	EventToolCallEnd    EventKind = EventKind(agent.EventToolCallEnd)
	EventAnswer         EventKind = "answer" // A run finished with a final answer.
	EventError          EventKind = "error"  // A run failed.
)

// Event is an immutable notification of engine activity. For events
// forwarded from the agent loop, Data holds the agent.Event; for
// EventQuestion it holds the question, for EventAnswer the answer text and
// for EventError the error.
type Event struct {
	Kind      EventKind
	SessionID string
	Agent     string
	RunID     string
	Timestamp time.Time
	Data      any
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *EventBus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all subscribers. If a subscriber's buffer is full
// the event is dropped for that subscriber so slow consumers never stall the
// agent loop.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// fromAgentEvent converts a loop event into an engine event. Run end events
// are reported by the session as EventAnswer or EventError instead.
func fromAgentEvent(sessionID string, ev agent.Event) (Event, bool) {
	if ev.Kind == agent.EventRunEnd {
		return Event{}, false
	}

	return Event{
		Kind:      EventKind(ev.Kind),
		SessionID: sessionID,
		Agent:     ev.Agent,
		RunID:     ev.RunID,
		Timestamp: ev.Time,
		Data:      ev,
	}, true
}
