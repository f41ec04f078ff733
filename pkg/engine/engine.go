package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/germanamz/sleuth/pkg/agent"
	"github.com/germanamz/sleuth/pkg/agentctx"
	"github.com/germanamz/sleuth/pkg/modeladapter"
	"github.com/germanamz/sleuth/pkg/tools/mcpclient"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
	"go.opentelemetry.io/otel/trace"
)

// Option customises an Engine.
type Option func(*options)

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
	tools  []*toolbox.ToolBox
}

// WithLogger sets the logger used by the engine and the agent.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer sets the tracer used for agent spans. The global tracer
// provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithToolBox adds in-process tools next to the ones taken from MCP servers.
func WithToolBox(tb *toolbox.ToolBox) Option {
	return func(o *options) { o.tools = append(o.tools, tb) }
}

// Engine is the composition root that assembles all framework components from
// configuration and exposes them through a frontend-agnostic API.
type Engine struct {
	cfg        Config
	log        *slog.Logger
	events     *EventBus
	completer  modeladapter.Completer
	tools      *toolbox.ToolBox
	agent      *agent.Agent
	mcpClients []*mcpclient.MCPClient

	mu       sync.Mutex
	sessions map[string]*Session
	nextID   int
}

// New creates an Engine from the given configuration. It applies defaults,
// validates the config, builds the provider adapter, connects MCP servers and
// builds the agent.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		cfg:      cfg,
		log:      o.logger,
		events:   NewEventBus(),
		sessions: make(map[string]*Session),
	}

	pc, ok := e.providerConfig(cfg.Agent.Provider)
	if !ok {
		return nil, fmt.Errorf("engine: agent %q: provider %q not found", cfg.Agent.Name, cfg.Agent.Provider)
	}

	completer, err := buildCompleter(pc)
	if err != nil {
		return nil, fmt.Errorf("engine: provider %q: %w", pc.Name, err)
	}
	e.completer = completer

	sources := append([]*toolbox.ToolBox(nil), o.tools...)
	for _, mc := range cfg.MCPServers {
		tb, err := e.connect(ctx, mc)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		sources = append(sources, tb)
	}

	all, err := (*toolbox.ToolBox)(nil).Merge(sources...)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	e.tools = all.Filter(cfg.Agent.Tools)
	for _, name := range cfg.Agent.Tools {
		if _, ok := all.Get(name); !ok {
			e.log.WarnContext(ctx, "configured tool not found", "tool", name)
		}
	}

	a, err := e.buildAgent(o.tracer)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.agent = a

	e.log.InfoContext(ctx, "engine ready",
		"agent", cfg.Agent.Name,
		"provider", pc.Name,
		"model", pc.Model,
		"tools", e.tools.Names(),
	)

	return e, nil
}

func (e *Engine) providerConfig(name string) (ProviderConfig, bool) {
	for _, p := range e.cfg.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func (e *Engine) connect(ctx context.Context, mc MCPConfig) (*toolbox.ToolBox, error) {
	client, err := mcpclient.Dial(ctx, mcpclient.Server{
		Name:    mc.Name,
		Command: mc.Command,
		Args:    mc.Args,
		Env:     mc.Env,
		URL:     mc.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: mcp %q: %w", mc.Name, err)
	}
	e.mcpClients = append(e.mcpClients, client)

	tb, err := client.ToolBox(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: mcp %q: list tools: %w", mc.Name, err)
	}

	e.log.InfoContext(ctx, "mcp server connected", "server", mc.Name, "tools", tb.Len())

	return tb, nil
}

func (e *Engine) buildAgent(tracer trace.Tracer) (*agent.Agent, error) {
	ac := e.cfg.Agent

	toolTimeout, err := parseDuration(ac.ToolTimeout)
	if err != nil {
		return nil, fmt.Errorf("engine: agent %q: tool_timeout: %w", ac.Name, err)
	}
	runTimeout, err := parseDuration(ac.RunTimeout)
	if err != nil {
		return nil, fmt.Errorf("engine: agent %q: run_timeout: %w", ac.Name, err)
	}
	baseDelay, err := parseDuration(ac.Retry.BaseDelay)
	if err != nil {
		return nil, fmt.Errorf("engine: agent %q: retry.base_delay: %w", ac.Name, err)
	}
	maxDelay, err := parseDuration(ac.Retry.MaxDelay)
	if err != nil {
		return nil, fmt.Errorf("engine: agent %q: retry.max_delay: %w", ac.Name, err)
	}

	middleware := []agent.Middleware{
		agent.Recovery(),
		agent.Logger(e.log, ac.Name),
	}
	if runTimeout > 0 {
		middleware = append(middleware, agent.Timeout(runTimeout))
	}

	return agent.New(ac.Name, e.completer, e.tools, agent.Options{
		Instructions:     ac.Instructions,
		MaxIterations:    ac.MaxIterations,
		MaxParallelTools: ac.MaxParallelTools,
		ToolTimeout:      toolTimeout,
		Retry: agent.RetryOptions{
			MaxAttempts: ac.Retry.MaxAttempts,
			BaseDelay:   baseDelay,
			MaxDelay:    maxDelay,
		},
		Middleware: middleware,
		Logger:     e.log,
		Tracer:     tracer,
		OnEvent:    e.forward,
	}), nil
}

// forward publishes agent loop events on the bus.
func (e *Engine) forward(ctx context.Context, ev agent.Event) {
	if out, ok := fromAgentEvent(agentctx.SessionIDFromContext(ctx), ev); ok {
		e.events.Publish(out)
	}
}

// Config returns the effective configuration, defaults applied.
func (e *Engine) Config() Config { return e.cfg }

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Agent returns the configured agent. It is safe for concurrent runs and
// bypasses session quotas.
func (e *Engine) Agent() *agent.Agent { return e.agent }

// Completer returns the provider adapter the agent reasons with. It
// implements modeladapter.UsageReporter for the built-in providers.
func (e *Engine) Completer() modeladapter.Completer { return e.completer }

// Tools returns the tools offered to the agent.
func (e *Engine) Tools() *toolbox.ToolBox { return e.tools }

// NewSession creates a new interactive session with the configured quota.
func (e *Engine) NewSession() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := fmt.Sprintf("session-%d", e.nextID)

	s := newSession(id, e.agent.Name(), e.agent, e.events, e.cfg.Session.Limit())
	e.sessions[id] = s

	e.log.Debug("session created", "session", id, "max_questions", s.Limit())

	return s
}

// Session returns an existing session by ID.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	return s, ok
}

// Close shuts down MCP clients and releases resources.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.mcpClients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.mcpClients = nil
	return errors.Join(errs...)
}
