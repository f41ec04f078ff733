package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/germanamz/sleuth/pkg/chats/chat"
	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/germanamz/sleuth/pkg/chats/message"
	"github.com/germanamz/sleuth/pkg/chats/role"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
	"github.com/stretchr/testify/require"
)

// reply is one scripted oracle response.
type reply struct {
	msg message.Message
	err error
}

// sequenceCompleter returns scripted replies in order and records the
// conversations it was given.
type sequenceCompleter struct {
	mu      sync.Mutex
	replies []reply
	index   int
	seen    [][]message.Message
	tools   [][]string
}

func (p *sequenceCompleter) Complete(_ context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen = append(p.seen, c.Messages())
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	p.tools = append(p.tools, names)

	if p.index >= len(p.replies) {
		return message.Message{}, errors.New("no more replies")
	}
	r := p.replies[p.index]
	p.index++
	return r.msg, r.err
}

func (p *sequenceCompleter) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// loopCompleter requests the same tool call forever.
type loopCompleter struct {
	mu    sync.Mutex
	count int
}

func (p *loopCompleter) Complete(context.Context, *chat.Chat, []toolbox.Tool) (message.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return message.New("", role.Assistant, content.ToolCall{Name: "echo", Arguments: `{"n":1}`}), nil
}

// errorCompleter always returns an error.
type errorCompleter struct {
	err error
}

func (p *errorCompleter) Complete(context.Context, *chat.Chat, []toolbox.Tool) (message.Message, error) {
	return message.Message{}, p.err
}

// blockingCompleter blocks until ctx is done.
type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ *chat.Chat, _ []toolbox.Tool) (message.Message, error) {
	<-ctx.Done()
	return message.Message{}, ctx.Err()
}

func text(s string) reply {
	return reply{msg: message.NewText("", role.Assistant, s)}
}

func toolCalls(calls ...content.ToolCall) reply {
	parts := make([]content.Part, len(calls))
	for i, c := range calls {
		parts[i] = c
	}
	return reply{msg: message.New("", role.Assistant, parts...)}
}

func failure(err error) reply {
	return reply{err: err}
}

func echoTool() toolbox.Tool {
	return toolbox.Tool{
		Name:        "echo",
		Description: "Echoes input",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(_ context.Context, input json.RawMessage) (string, error) {
			return string(input), nil
		},
	}
}

// lookupTool returns "<topic> facts" for {"topic": ...}.
func lookupTool() toolbox.Tool {
	return toolbox.Tool{
		Name:        "lookup",
		Description: "Looks a topic up",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"}}}`),
		Handler: func(_ context.Context, input json.RawMessage) (string, error) {
			var args struct {
				Topic string `json:"topic"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return "", err
			}
			if args.Topic == "" {
				return "", errors.New("topic is required")
			}
			return args.Topic + " facts", nil
		},
	}
}

func newToolBox(t *testing.T, tools ...toolbox.Tool) *toolbox.ToolBox {
	t.Helper()
	tb, err := toolbox.New(tools...)
	require.NoError(t, err)
	return tb
}

// eventLog collects events from concurrent emitters.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(_ context.Context, e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, e := range l.events {
		out[i] = e.Kind
	}
	return out
}

// echoQueryCompleter answers with the upper-cased last user message.
type echoQueryCompleter struct{}

func (echoQueryCompleter) Complete(_ context.Context, c *chat.Chat, _ []toolbox.Tool) (message.Message, error) {
	var q string
	c.Each(func(_ int, m message.Message) bool {
		if m.Role == role.User {
			q = m.TextContent()
		}
		return true
	})
	return message.NewText("", role.Assistant, strings.ToUpper(q)), nil
}
