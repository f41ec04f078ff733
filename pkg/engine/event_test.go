package engine

import (
	"testing"
	"time"

	"github.com/germanamz/sleuth/pkg/agent"
	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_SubscribePublish(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	e := Event{
		Kind:      EventQuestion,
		SessionID: "s1",
		Agent:     "bot",
		Timestamp: time.Now(),
	}

	bus.Publish(e)

	select {
	case got := <-sub.C:
		assert.Equal(t, EventQuestion, got.Kind)
		assert.Equal(t, "s1", got.SessionID)
		assert.Equal(t, "bot", got.Agent)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBus_FanOut(t *testing.T) {
	bus := NewEventBus()
	sub1 := bus.Subscribe(4)
	sub2 := bus.Subscribe(4)
	defer bus.Unsubscribe(sub1)
	defer bus.Unsubscribe(sub2)

	bus.Publish(Event{Kind: EventDecision})

	select {
	case <-sub1.C:
	case <-time.After(time.Second):
		t.Fatal("sub1 did not receive event")
	}

	select {
	case <-sub2.C:
	case <-time.After(time.Second):
		t.Fatal("sub2 did not receive event")
	}
}

func TestEventBus_NonBlockingDrop(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(1) // buffer of 1
	defer bus.Unsubscribe(sub)

	// Fill the buffer.
	bus.Publish(Event{Kind: EventQuestion})
	// This should not block; the event is dropped.
	bus.Publish(Event{Kind: EventAnswer})

	got := <-sub.C
	assert.Equal(t, EventQuestion, got.Kind)

	select {
	case <-sub.C:
		t.Fatal("expected channel to be empty after drop")
	default:
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(4)

	bus.Unsubscribe(sub)

	// Channel should be closed.
	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Double unsubscribe should not panic.
	bus.Unsubscribe(sub)
}

func TestEventBus_PublishNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic.
	bus.Publish(Event{Kind: EventError})
}

func TestFromAgentEvent(t *testing.T) {
	now := time.Now()
	ev := agent.Event{
		Kind:      agent.EventToolCallEnd,
		Agent:     "sleuth",
		RunID:     "run-1",
		Iteration: 2,
		Time:      now,
		Call:      content.ToolCall{ID: "c1", Name: "lookup"},
		Result:    content.ToolResult{ToolCallID: "c1", Content: "ok"},
	}

	got, ok := fromAgentEvent("session-1", ev)
	require.True(t, ok)

	assert.Equal(t, EventToolCallEnd, got.Kind)
	assert.Equal(t, "session-1", got.SessionID)
	assert.Equal(t, "sleuth", got.Agent)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, ev, got.Data)
}

func TestFromAgentEvent_SkipsRunEnd(t *testing.T) {
	_, ok := fromAgentEvent("s", agent.Event{Kind: agent.EventRunEnd})
	assert.False(t, ok)
}
