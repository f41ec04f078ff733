// Package anthropic provides a Completer implementation for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/germanamz/sleuth/pkg/chats/chat"
	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/germanamz/sleuth/pkg/chats/message"
	"github.com/germanamz/sleuth/pkg/chats/role"
	"github.com/germanamz/sleuth/pkg/modeladapter"
	"github.com/germanamz/sleuth/pkg/modeladapter/usage"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
)

// DefaultBaseURL is used when New receives an empty base URL.
const DefaultBaseURL = "https://api.anthropic.com"

const messagesPath = "/v1/messages"

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter implements modeladapter.Completer for the Anthropic Messages API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter. An empty baseURL selects DefaultBaseURL.
func New(baseURL, apiKey, model string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{}
	a.BaseURL = strings.TrimRight(baseURL, "/")
	a.Auth = modeladapter.Auth{
		Key:    apiKey,
		Header: "x-api-key",
	}
	a.Name = model
	a.MaxTokens = 4096
	a.Headers = map[string]string{
		"anthropic-version": "2023-06-01",
	}
	a.HeaderParser = modeladapter.ParseAnthropicRateLimitHeaders

	return a
}

// Complete sends the conversation and returns the assistant's reply. System
// messages are lifted into the request's system field.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	req := a.buildRequest(c, tools)

	var resp apiResponse
	if err := a.PostJSON(ctx, messagesPath, req, &resp); err != nil {
		return message.Message{}, fmt.Errorf("anthropic: %w", err)
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	})

	return a.parseResponse(resp), nil
}

// --- request types ---

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	Tools       []apiToolDef `json:"tools,omitempty"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type apiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// --- response types ---

type apiResponse struct {
	Content    []apiContent `json:"content"`
	StopReason string       `json:"stop_reason"`
	Usage      apiUsage     `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(c *chat.Chat, tools []toolbox.Tool) apiRequest {
	req := apiRequest{
		Model:       a.Name,
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	}

	for _, t := range tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		req.Tools = append(req.Tools, apiToolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	var system []string
	c.Each(func(_ int, m message.Message) bool {
		if m.Role == role.System {
			system = append(system, m.TextContent())
			return true
		}
		req.Messages = appendMessage(req.Messages, m)
		return true
	})
	req.System = strings.Join(system, "\n\n")

	return req
}

// appendMessage converts m into content blocks, merging consecutive blocks
// of the same API role; the Messages API requires alternating roles and
// carries tool results in user turns.
func appendMessage(msgs []apiMessage, m message.Message) []apiMessage {
	msgRole := "user"
	if m.Role == role.Assistant {
		msgRole = "assistant"
	}

	for _, p := range m.Parts {
		block, ok := partToBlock(p)
		if !ok {
			continue
		}

		if n := len(msgs); n > 0 && msgs[n-1].Role == msgRole {
			msgs[n-1].Content = append(msgs[n-1].Content, block)
			continue
		}

		msgs = append(msgs, apiMessage{Role: msgRole, Content: []apiContent{block}})
	}

	return msgs
}

func partToBlock(p content.Part) (apiContent, bool) {
	switch v := p.(type) {
	case content.Text:
		if v.Text == "" {
			return apiContent{}, false
		}
		return apiContent{Type: "text", Text: v.Text}, true
	case content.ToolCall:
		input := json.RawMessage(v.Arguments)
		if strings.TrimSpace(v.Arguments) == "" {
			input = json.RawMessage(`{}`)
		}
		return apiContent{Type: "tool_use", ID: v.ID, Name: v.Name, Input: input}, true
	case content.ToolResult:
		text := v.Content
		if v.Failed {
			text = v.ErrorDetail
		}
		return apiContent{Type: "tool_result", ToolUseID: v.ToolCallID, Content: text, IsError: v.Failed}, true
	default:
		return apiContent{}, false
	}
}

func (a *Adapter) parseResponse(resp apiResponse) message.Message {
	var parts []content.Part

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			parts = append(parts, content.Text{Text: block.Text})
		case "tool_use":
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			parts = append(parts, content.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	return message.New(a.Name, role.Assistant, parts...)
}
