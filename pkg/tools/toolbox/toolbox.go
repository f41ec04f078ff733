package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/germanamz/sleuth/pkg/chats/content"
)

var (
	// ErrUnknownTool is returned when a tool name is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrToolExecution wraps any failure raised while running a tool handler.
	ErrToolExecution = errors.New("tool execution failed")
)

// ToolBox is an immutable registry of tools keyed by name. It is built once
// with New and may be shared by concurrent runs.
type ToolBox struct {
	tools map[string]Tool
}

// New creates a ToolBox from the given tools. Empty names, nil handlers and
// duplicate names are rejected.
func New(tools ...Tool) (*ToolBox, error) {
	tb := &ToolBox{tools: make(map[string]Tool, len(tools))}

	for _, t := range tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, errors.New("toolbox: tool name is required")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("toolbox: tool %q has no handler", t.Name)
		}
		if _, dup := tb.tools[t.Name]; dup {
			return nil, fmt.Errorf("toolbox: duplicate tool %q", t.Name)
		}
		tb.tools[t.Name] = t
	}

	return tb, nil
}

// Resolve returns the tool registered under name, or an error wrapping
// ErrUnknownTool.
func (tb *ToolBox) Resolve(name string) (Tool, error) {
	t, ok := tb.Get(name)
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Get returns a tool by name and a boolean indicating whether it was found.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	if tb == nil {
		return Tool{}, false
	}
	t, ok := tb.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (tb *ToolBox) Len() int {
	if tb == nil {
		return 0
	}
	return len(tb.tools)
}

// Names returns the registered tool names in sorted order.
func (tb *ToolBox) Names() []string {
	if tb == nil {
		return nil
	}
	names := make([]string, 0, len(tb.tools))
	for name := range tb.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tools returns all registered tools sorted by name.
func (tb *ToolBox) Tools() []Tool {
	names := tb.Names()
	result := make([]Tool, 0, len(names))
	for _, name := range names {
		result = append(result, tb.tools[name])
	}
	return result
}

// Filter returns a new ToolBox containing only the named tools. Names that
// are not registered are skipped. An empty filter returns the receiver.
func (tb *ToolBox) Filter(names []string) *ToolBox {
	if len(names) == 0 {
		return tb
	}

	filtered := &ToolBox{tools: make(map[string]Tool, len(names))}
	for _, name := range names {
		if t, ok := tb.Get(name); ok {
			filtered.tools[name] = t
		}
	}
	return filtered
}

// Merge returns a new ToolBox holding the tools of the receiver and all
// others. A name registered more than once is an error.
func (tb *ToolBox) Merge(others ...*ToolBox) (*ToolBox, error) {
	all := tb.Tools()
	for _, o := range others {
		all = append(all, o.Tools()...)
	}
	return New(all...)
}

// Invoke resolves and runs a tool call. Unknown tools yield an error wrapping
// ErrUnknownTool; handler errors, malformed arguments and panics yield an
// error wrapping ErrToolExecution.
func (tb *ToolBox) Invoke(ctx context.Context, tc content.ToolCall) (out string, err error) {
	t, err := tb.Resolve(tc.Name)
	if err != nil {
		return "", err
	}

	if _, argErr := tc.Args(); argErr != nil {
		return "", fmt.Errorf("%w: tool %s: %w", ErrToolExecution, tc.Name, argErr)
	}

	input := json.RawMessage(tc.Arguments)
	if raw := strings.TrimSpace(tc.Arguments); raw == "" || raw == "null" {
		input = json.RawMessage(`{}`)
	}

	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = fmt.Errorf("%w: tool %s panicked: %v", ErrToolExecution, tc.Name, r)
		}
	}()

	out, err = t.Handler(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: tool %s: %w", ErrToolExecution, tc.Name, err)
	}

	return out, nil
}

// Call executes a tool call and returns a ToolResult answering tc.ID. It never
// fails: unknown tools, handler errors and panics all become a result with
// Failed set.
func (tb *ToolBox) Call(ctx context.Context, tc content.ToolCall) content.ToolResult {
	out, err := tb.Invoke(ctx, tc)
	if err != nil {
		return content.Failure(tc.ID, Detail(tc.Name, err))
	}

	return content.ToolResult{
		ToolCallID: tc.ID,
		Content:    out,
	}
}

// Detail renders a tool error as the text the model reads back.
func Detail(name string, err error) string {
	if errors.Is(err, ErrUnknownTool) {
		return "unknown tool: " + name
	}

	msg := strings.TrimPrefix(err.Error(), ErrToolExecution.Error()+": ")
	msg = strings.TrimPrefix(msg, "tool "+name+": ")
	msg = strings.TrimPrefix(msg, "tool "+name+" ")

	return fmt.Sprintf("tool %s failed: %s", name, msg)
}
