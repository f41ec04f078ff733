package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/germanamz/sleuth/pkg/agent"
	"github.com/germanamz/sleuth/pkg/engine"
	"github.com/germanamz/sleuth/pkg/telemetry"
	"github.com/germanamz/sleuth/pkg/tools/mcpserver"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
)

const researchSchema = `{
  "type": "object",
  "properties": {
    "question": {"type": "string", "description": "The research question to answer"}
  },
  "required": ["question"]
}`

// runMCP serves the configured agent over stdio. Stdout carries the MCP
// protocol, so logs go to stderr.
func runMCP(configPath string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := engine.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Log, false)

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer flushTelemetry(shutdown, logger)

	eng, err := engine.New(ctx, cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	tb, err := toolbox.New(researchTool(eng.Agent(), logger))
	if err != nil {
		return err
	}

	srv := mcpserver.New(eng.Agent().Name(), telemetry.Version, tb)
	logger.InfoContext(ctx, "serving mcp over stdio", "agent", eng.Agent().Name())

	if err := srv.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// researchTool exposes one agent run as a tool. Quotas do not apply: the
// MCP host decides how often to ask.
func researchTool(r agent.Runner, log *slog.Logger) toolbox.Tool {
	return toolbox.Tool{
		Name:        "research",
		Description: "Answer a research question. The agent gathers facts with its own tools before answering.",
		InputSchema: json.RawMessage(researchSchema),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in struct {
				Question string `json:"question"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			q := strings.TrimSpace(in.Question)
			if q == "" {
				return "", errors.New("question is required")
			}

			res, err := r.Run(ctx, q)
			if err != nil {
				log.ErrorContext(ctx, "research failed", "error", err, "iterations", res.Iterations)
				return "", errors.New(engine.UserMessage(err))
			}
			return res.FinalText, nil
		},
	}
}
