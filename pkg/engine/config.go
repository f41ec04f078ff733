package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/germanamz/sleuth/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

// DefaultMaxQuestions is the per-session question quota when the config
// does not set one.
const DefaultMaxQuestions = 4

// Config is the top-level engine configuration.
type Config struct {
	Providers  []ProviderConfig `yaml:"providers"`
	MCPServers []MCPConfig      `yaml:"mcp_servers"`
	Agent      AgentConfig      `yaml:"agent"`
	Session    SessionConfig    `yaml:"session"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
}

// RateLimitConfig paces requests to a provider.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"` // 0 = no pacing.
	Burst             int `yaml:"burst"`               // Default 1.
}

// Enabled reports whether any pacing is configured.
func (r RateLimitConfig) Enabled() bool { return r.RequestsPerMinute > 0 }

// ProviderConfig describes an LLM provider instance.
type ProviderConfig struct {
	Name        string          `yaml:"name"`
	Kind        string          `yaml:"kind"`
	BaseURL     string          `yaml:"base_url"`
	APIKey      string          `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	Model       string          `yaml:"model"`
	Temperature float64         `yaml:"temperature"`
	MaxTokens   int             `yaml:"max_tokens"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// MCPConfig describes an MCP server to take tools from. Exactly one of
// Command or URL is set.
type MCPConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	URL     string            `yaml:"url"`
}

// RetryConfig controls retries of transient provider failures.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"` // Attempts per reasoning step; <= 1 disables retries.
	BaseDelay   string `yaml:"base_delay"`   // Duration string, e.g. "500ms".
	MaxDelay    string `yaml:"max_delay"`    // Duration string, e.g. "10s".
}

// AgentConfig describes the research agent.
type AgentConfig struct {
	Name             string      `yaml:"name"`
	Instructions     string      `yaml:"instructions"`
	Provider         string      `yaml:"provider"` // Defaults to the first provider.
	Tools            []string    `yaml:"tools"`    // Tool name filter; empty offers every tool.
	MaxIterations    int         `yaml:"max_iterations"`
	MaxParallelTools int         `yaml:"max_parallel_tools"`
	ToolTimeout      string      `yaml:"tool_timeout"` // Duration string; empty = none.
	RunTimeout       string      `yaml:"run_timeout"`  // Duration string; empty = none.
	Retry            RetryConfig `yaml:"retry"`
}

// SessionConfig controls interactive sessions.
type SessionConfig struct {
	// MaxQuestions is the number of questions one session may ask. Nil
	// selects DefaultMaxQuestions; 0 means unlimited.
	MaxQuestions *int `yaml:"max_questions"`
}

// Limit returns the effective question quota (0 = unlimited).
func (s SessionConfig) Limit() int {
	if s.MaxQuestions == nil {
		return DefaultMaxQuestions
	}
	return *s.MaxQuestions
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error.
	Format string `yaml:"format"` // text or json.
}

// SlogLevel maps Level to a slog.Level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig reads a YAML file and returns a Config with defaults applied.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so API keys can live in the environment (e.g. loaded from a
// .env file) rather than in the config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data, expanding environment
// variables first.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg.Defaults(), nil
}

// Defaults returns a copy of c with empty fields set to their defaults.
func (c Config) Defaults() Config {
	if c.Agent.Name == "" {
		c.Agent.Name = "sleuth"
	}
	if c.Agent.Provider == "" && len(c.Providers) > 0 {
		c.Agent.Provider = c.Providers[0].Name
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Session.MaxQuestions == nil {
		n := DefaultMaxQuestions
		c.Session.MaxQuestions = &n
	}
	return c
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("engine: config: at least one provider is required")
	}

	providerNames := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return errors.New("engine: config: provider name is required")
		}
		if p.Kind == "" {
			return fmt.Errorf("engine: config: provider %q: kind is required", p.Name)
		}
		if _, dup := providerNames[p.Name]; dup {
			return fmt.Errorf("engine: config: duplicate provider name %q", p.Name)
		}
		if p.RateLimit.RequestsPerMinute < 0 || p.RateLimit.Burst < 0 {
			return fmt.Errorf("engine: config: provider %q: rate_limit must not be negative", p.Name)
		}
		providerNames[p.Name] = struct{}{}
	}

	mcpNames := make(map[string]struct{}, len(c.MCPServers))
	for _, m := range c.MCPServers {
		if m.Name == "" {
			return errors.New("engine: config: mcp server name is required")
		}
		if m.Command == "" && m.URL == "" {
			return fmt.Errorf("engine: config: mcp server %q: command or url is required", m.Name)
		}
		if m.Command != "" && m.URL != "" {
			return fmt.Errorf("engine: config: mcp server %q: command and url are mutually exclusive", m.Name)
		}
		if _, dup := mcpNames[m.Name]; dup {
			return fmt.Errorf("engine: config: duplicate mcp server name %q", m.Name)
		}
		mcpNames[m.Name] = struct{}{}
	}

	a := c.Agent
	if _, ok := providerNames[a.Provider]; a.Provider != "" && !ok {
		return fmt.Errorf("engine: config: agent %q: unknown provider %q", a.Name, a.Provider)
	}
	if a.MaxIterations < 0 {
		return fmt.Errorf("engine: config: agent %q: max_iterations must not be negative", a.Name)
	}
	if a.MaxParallelTools < 0 {
		return fmt.Errorf("engine: config: agent %q: max_parallel_tools must not be negative", a.Name)
	}
	for field, v := range map[string]string{
		"tool_timeout":     a.ToolTimeout,
		"run_timeout":      a.RunTimeout,
		"retry.base_delay": a.Retry.BaseDelay,
		"retry.max_delay":  a.Retry.MaxDelay,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("engine: config: agent %q: invalid %s %q: %w", a.Name, field, v, err)
		}
	}

	if c.Session.MaxQuestions != nil && *c.Session.MaxQuestions < 0 {
		return errors.New("engine: config: session.max_questions must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("engine: config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("engine: config: unknown log format %q", c.Log.Format)
	}

	switch c.Telemetry.Protocol {
	case "", "http", "grpc":
	default:
		return fmt.Errorf("engine: config: unknown telemetry protocol %q", c.Telemetry.Protocol)
	}

	return nil
}

// parseDuration parses an optional duration string; empty means zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("must not be negative")
	}
	return d, nil
}
