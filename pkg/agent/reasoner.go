package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/germanamz/sleuth/pkg/chats/chat"
	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/germanamz/sleuth/pkg/chats/message"
	"github.com/germanamz/sleuth/pkg/chats/role"
	"github.com/germanamz/sleuth/pkg/modeladapter"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
	"github.com/google/uuid"
)

// ReasonerOptions configures a Reasoner.
type ReasonerOptions struct {
	// Instructions become the system prompt. Empty means no system prompt.
	Instructions string
	// Sender is stamped on the assistant messages the Reasoner returns.
	Sender string
}

// Reasoner turns a conversation into the next Decision by consulting a
// Completer. It holds no per-run state: the same history always produces the
// same request to the oracle.
type Reasoner struct {
	completer modeladapter.Completer
	tools     *toolbox.ToolBox
	opts      ReasonerOptions
}

// NewReasoner creates a Reasoner. tools may be nil when no tools are offered.
func NewReasoner(completer modeladapter.Completer, tools *toolbox.ToolBox, opts ReasonerOptions) *Reasoner {
	return &Reasoner{completer: completer, tools: tools, opts: opts}
}

// Decide asks the oracle for the next step given history. It returns the
// Decision together with the assistant message that must be appended to the
// history. Oracle failures wrap ErrReasoningUnavailable; replies that break
// the tool request contract wrap ErrInvalidDecision. Decide never retries.
func (r *Reasoner) Decide(ctx context.Context, history []message.Message) (Decision, message.Message, error) {
	c, err := r.conversation(history)
	if err != nil {
		return nil, message.Message{}, err
	}

	reply, err := r.completer.Complete(ctx, c, r.tools.Tools())
	if err != nil {
		return nil, message.Message{}, fmt.Errorf("%w: %w", ErrReasoningUnavailable, err)
	}

	reply, err = r.normalize(reply, c)
	if err != nil {
		return nil, message.Message{}, err
	}

	if calls := reply.ToolCalls(); len(calls) > 0 {
		return ActionRequested{Calls: calls}, reply, nil
	}

	return FinalAnswer{Text: reply.TextContent()}, reply, nil
}

// conversation builds the oracle's view: the system prompt followed by a copy
// of history.
func (r *Reasoner) conversation(history []message.Message) (*chat.Chat, error) {
	var c chat.Chat

	if strings.TrimSpace(r.opts.Instructions) != "" {
		if err := c.Append(message.NewText(r.opts.Sender, role.System, r.opts.Instructions)); err != nil {
			return nil, err
		}
	}

	if err := c.Append(history...); err != nil {
		return nil, fmt.Errorf("agent: invalid history: %w", err)
	}

	return &c, nil
}

// normalize validates the oracle's reply and fixes request IDs so they are
// unique across the conversation: missing or reused IDs get a fresh one.
func (r *Reasoner) normalize(reply message.Message, c *chat.Chat) (message.Message, error) {
	switch reply.Role {
	case role.Assistant:
	case "":
		reply.Role = role.Assistant
	default:
		return message.Message{}, fmt.Errorf("%w: reply has role %q", ErrInvalidDecision, reply.Role)
	}

	out := message.Message{Sender: r.opts.Sender, Role: role.Assistant}
	seen := make(map[string]bool)

	for _, p := range reply.Parts {
		switch v := p.(type) {
		case content.Text:
			out.Parts = append(out.Parts, v)
		case content.ToolCall:
			if strings.TrimSpace(v.Name) == "" {
				return message.Message{}, fmt.Errorf("%w: tool call %q has no tool name", ErrInvalidDecision, v.ID)
			}
			if v.ID == "" || seen[v.ID] || c.HasRequest(v.ID) {
				v.ID = newCallID()
			}
			seen[v.ID] = true
			out.Parts = append(out.Parts, v)
		default:
			return message.Message{}, fmt.Errorf("%w: unexpected %s part in reply", ErrInvalidDecision, p.PartKind())
		}
	}

	return out, nil
}

func newCallID() string {
	return "call_" + uuid.NewString()
}
