// Package bridge forwards engine events of one session to a bubbletea
// program.
package bridge

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/msgs"
	"github.com/germanamz/sleuth/pkg/agent"
	"github.com/germanamz/sleuth/pkg/engine"
)

// Sender receives converted messages. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Start launches the event watcher goroutine. It only calls s.Send() and
// never touches model state directly. The returned cancel function stops the
// watcher and waits for it to exit, so no stale messages are sent after it
// returns.
func Start(ctx context.Context, s Sender, sessionID string, events *engine.EventBus) context.CancelFunc {
	bridgeCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	sub := events.Subscribe(64)

	wg.Go(func() {
		defer events.Unsubscribe(sub)
		for {
			select {
			case <-bridgeCtx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if ev.SessionID != sessionID {
					continue
				}
				if msg, ok := Convert(ev); ok {
					s.Send(msg)
				}
			}
		}
	})

	return func() {
		cancel()
		wg.Wait()
	}
}

// Convert maps an engine event to a TUI message. Events the TUI does not
// display are skipped.
func Convert(ev engine.Event) (tea.Msg, bool) {
	ae, ok := ev.Data.(agent.Event)
	if !ok {
		return nil, false
	}

	switch ev.Kind {
	case engine.EventReasoningStart:
		return msgs.ReasoningMsg{Iteration: ae.Iteration}, true
	case engine.EventToolCallStart:
		return msgs.ToolStartMsg{Call: ae.Call}, true
	case engine.EventToolCallEnd:
		return msgs.ToolEndMsg{Call: ae.Call, Result: ae.Result, Duration: ae.Duration}, true
	default:
		return nil, false
	}
}
