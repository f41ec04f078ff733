// Package mcpserver publishes a ToolBox over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPServer serves the tools of a ToolBox over MCP using the official MCP Go SDK.
type MCPServer struct {
	server *mcp.Server
	tools  *toolbox.ToolBox
}

// New creates an MCPServer that exposes every tool in tb.
func New(name, version string, tb *toolbox.ToolBox) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, nil)

	s := &MCPServer{server: server, tools: tb}
	for _, t := range tb.Tools() {
		server.AddTool(toSDKTool(t), s.handler(t.Name))
	}

	return s
}

// ServeStdio serves MCP requests over the process's stdin and stdout.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads requests from in and writes responses to out. It blocks until
// ctx is cancelled or the transport closes.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	}

	return s.run(ctx, transport)
}

func (s *MCPServer) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func toSDKTool(t toolbox.Tool) *mcp.Tool {
	schema := t.InputSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// handler routes an MCP call through the ToolBox so failures and panics are
// reported as tool errors instead of protocol errors.
func (s *MCPServer) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args string
		if req.Params.Arguments != nil {
			args = string(req.Params.Arguments)
		}

		res := s.tools.Call(ctx, content.ToolCall{Name: name, Arguments: args})
		if res.Failed {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: res.ErrorDetail}},
				IsError: true,
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.Content}},
		}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
