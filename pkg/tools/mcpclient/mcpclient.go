// Package mcpclient connects to external MCP servers and exposes their tools
// as toolbox tools.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/germanamz/sleuth/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP servers during initialization.
const Version = "0.1.0"

// Server describes how to reach one MCP tool source. Exactly one of Command
// or URL must be set.
type Server struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string
}

// MCPClient communicates with an MCP server using the official MCP Go SDK.
type MCPClient struct {
	name    string
	session *mcp.ClientSession
}

// Dial connects to the server described by srv, spawning a subprocess for
// stdio servers or opening an SSE stream for URL servers.
func Dial(ctx context.Context, srv Server) (*MCPClient, error) {
	var (
		c   *MCPClient
		err error
	)

	switch {
	case srv.Command != "" && srv.URL != "":
		return nil, fmt.Errorf("mcpclient: server %q: command and url are mutually exclusive", srv.Name)
	case srv.Command != "":
		cmd := exec.Command(srv.Command, srv.Args...) //nolint:gosec // command comes from the user's config
		if len(srv.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range srv.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		c, err = newFromTransport(ctx, &mcp.CommandTransport{Command: cmd})
	case srv.URL != "":
		c, err = NewSSE(ctx, srv.URL)
	default:
		return nil, fmt.Errorf("mcpclient: server %q: command or url is required", srv.Name)
	}
	if err != nil {
		return nil, err
	}

	c.name = srv.Name
	return c, nil
}

// New spawns an MCP server process and returns a connected client.
// The SDK handles initialization automatically during Connect.
func New(ctx context.Context, command string, args ...string) (*MCPClient, error) {
	return Dial(ctx, Server{Name: command, Command: command, Args: args})
}

// NewSSE connects to an SSE-based MCP server at the given URL.
func NewSSE(ctx context.Context, url string) (*MCPClient, error) {
	c, err := newFromTransport(ctx, &mcp.SSEClientTransport{Endpoint: url})
	if err != nil {
		return nil, err
	}
	c.name = url
	return c, nil
}

func newFromTransport(ctx context.Context, transport mcp.Transport) (*MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "sleuth",
		Version: Version,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: connect: %w", err)
	}

	return &MCPClient{session: session}, nil
}

// Name returns the configured server name.
func (c *MCPClient) Name() string { return c.name }

// ListTools fetches available tools from the server and returns them as
// toolbox.Tool instances. Each Tool's Handler calls back through CallTool.
func (c *MCPClient) ListTools(ctx context.Context) ([]toolbox.Tool, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: list tools: %w", err)
	}

	tools := make([]toolbox.Tool, 0, len(result.Tools))
	for _, sdkTool := range result.Tools {
		t, err := fromSDKTool(sdkTool, c)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: convert tool %q: %w", sdkTool.Name, err)
		}
		tools = append(tools, t)
	}

	return tools, nil
}

// ToolBox lists the server's tools and registers them in a new ToolBox.
func (c *MCPClient) ToolBox(ctx context.Context) (*toolbox.ToolBox, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	tb, err := toolbox.New(tools...)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: %w", c.name, err)
	}
	return tb, nil
}

// CallTool calls a named tool on the server with the given arguments. A
// result flagged as an error by the server is returned as an error carrying
// the server's text.
func (c *MCPClient) CallTool(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	args := map[string]any{}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("mcpclient: unmarshal arguments: %w", err)
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcpclient: call tool: %w", err)
	}

	text := extractText(result)

	if result.IsError {
		if text == "" {
			return "", errors.New("mcpclient: tool reported an error")
		}
		return "", errors.New(text)
	}

	return text, nil
}

// Close terminates the session. For stdio servers the SDK closes stdin, waits
// and escalates to SIGTERM/SIGKILL.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

func fromSDKTool(sdkTool *mcp.Tool, c *MCPClient) (toolbox.Tool, error) {
	schemaBytes, err := json.Marshal(sdkTool.InputSchema)
	if err != nil {
		return toolbox.Tool{}, fmt.Errorf("marshal input schema: %w", err)
	}

	name := sdkTool.Name

	return toolbox.Tool{
		Name:        sdkTool.Name,
		Description: sdkTool.Description,
		InputSchema: json.RawMessage(schemaBytes),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return c.CallTool(ctx, name, input)
		},
	}, nil
}

// extractText joins all TextContent items from a CallToolResult with newlines.
func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}
