package configwizard

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAML output types. They mirror engine.Config but omit empty fields so the
// generated file stays short.

type configYAML struct {
	Providers  []providerYAML `yaml:"providers"`
	MCPServers []mcpYAML      `yaml:"mcp_servers,omitempty"`
	Agent      agentYAML      `yaml:"agent"`
	Session    sessionYAML    `yaml:"session"`
}

type providerYAML struct {
	Name      string         `yaml:"name"`
	Kind      string         `yaml:"kind"`
	BaseURL   string         `yaml:"base_url,omitempty"`
	APIKey    string         `yaml:"api_key"` //nolint:gosec // env var reference, not a secret
	Model     string         `yaml:"model"`
	RateLimit *rateLimitYAML `yaml:"rate_limit,omitempty"`
}

type rateLimitYAML struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type mcpYAML struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	URL     string   `yaml:"url,omitempty"`
}

type agentYAML struct {
	Name          string `yaml:"name"`
	Instructions  string `yaml:"instructions,omitempty"`
	Provider      string `yaml:"provider"`
	MaxIterations int    `yaml:"max_iterations"`
	ToolTimeout   string `yaml:"tool_timeout,omitempty"`
}

type sessionYAML struct {
	MaxQuestions int `yaml:"max_questions"`
}

// Marshal renders the answers as a sleuth.yaml document.
func Marshal(a Answers) ([]byte, error) {
	maxIter, _ := strconv.Atoi(a.MaxIterations)
	maxQuestions, _ := strconv.Atoi(a.MaxQuestions)

	p := providerYAML{
		Name:    a.ProviderName,
		Kind:    a.ProviderKind,
		BaseURL: strings.TrimSpace(a.BaseURL),
		APIKey:  a.APIKey,
		Model:   a.Model,
	}
	if rpm, _ := strconv.Atoi(a.RPM); rpm > 0 {
		p.RateLimit = &rateLimitYAML{RequestsPerMinute: rpm}
	}

	yc := configYAML{
		Providers: []providerYAML{p},
		Agent: agentYAML{
			Name:          a.AgentName,
			Instructions:  a.Instructions,
			Provider:      a.ProviderName,
			MaxIterations: maxIter,
			ToolTimeout:   a.ToolTimeout,
		},
		Session: sessionYAML{MaxQuestions: maxQuestions},
	}

	switch {
	case a.MCPURL != "":
		yc.MCPServers = []mcpYAML{{Name: a.MCPName, URL: a.MCPURL}}
	case a.MCPCommand != "":
		yc.MCPServers = []mcpYAML{{Name: a.MCPName, Command: a.MCPCommand, Args: strings.Fields(a.MCPArgs)}}
	}

	return yaml.Marshal(yc)
}
