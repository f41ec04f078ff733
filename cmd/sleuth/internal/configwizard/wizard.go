// Package configwizard builds a sleuth.yaml interactively.
package configwizard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/sleuth/pkg/engine"
)

// Answers collects everything the wizard asks for. Numeric fields stay as
// strings until Marshal so they can be bound to huh inputs.
type Answers struct {
	ProviderKind string
	ProviderName string
	APIKey       string //nolint:gosec // env var reference, not a secret
	BaseURL      string
	Model        string
	RPM          string

	MCPName    string
	MCPCommand string
	MCPArgs    string
	MCPURL     string

	AgentName     string
	Instructions  string
	MaxIterations string
	ToolTimeout   string
	MaxQuestions  string
}

type providerDefault struct {
	APIKey string //nolint:gosec // env var reference template, not a secret
	Model  string
}

//nolint:gosec // env var reference templates, not hardcoded secrets
var providerDefaults = map[string]providerDefault{
	"anthropic": {APIKey: "${ANTHROPIC_API_KEY}", Model: "claude-sonnet-4-20250514"},
	"openai":    {APIKey: "${OPENAI_API_KEY}", Model: "gpt-4o-mini"},
}

// DefaultAnswers returns the answers the forms start from.
func DefaultAnswers() Answers {
	d := providerDefaults["anthropic"]
	return Answers{
		ProviderKind:  "anthropic",
		ProviderName:  "anthropic",
		APIKey:        d.APIKey,
		Model:         d.Model,
		RPM:           "0",
		AgentName:     "sleuth",
		Instructions:  "You are a careful research assistant. Use the available tools to gather facts, then answer concisely and cite what you found.",
		MaxIterations: "8",
		ToolTimeout:   "30s",
		MaxQuestions:  strconv.Itoa(engine.DefaultMaxQuestions),
	}
}

// Run walks the user through the forms and returns the config as YAML.
func Run() ([]byte, error) {
	a := DefaultAnswers()

	if err := promptProvider(&a); err != nil {
		return nil, err
	}
	if err := promptMCP(&a); err != nil {
		return nil, err
	}
	if err := promptAgent(&a); err != nil {
		return nil, err
	}

	return Marshal(a)
}

func promptProvider(a *Answers) error {
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Provider kind").
			Description("OpenAI-compatible endpoints (Grok, Ollama, ...) use openai with a base URL").
			Options(
				huh.NewOption("Anthropic", "anthropic"),
				huh.NewOption("OpenAI", "openai"),
			).
			Value(&a.ProviderKind),
	)).Run(); err != nil {
		return err
	}

	d := providerDefaults[a.ProviderKind]
	a.ProviderName = a.ProviderKind
	a.APIKey = d.APIKey
	a.Model = d.Model

	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Provider name").Value(&a.ProviderName).Validate(validateRequired),
		huh.NewInput().Title("API key env var").Value(&a.APIKey),
		huh.NewInput().Title("Base URL (empty = provider default)").Value(&a.BaseURL),
		huh.NewInput().Title("Model").Value(&a.Model).Validate(validateRequired),
		huh.NewInput().Title("Requests per minute (0 = no limit)").Value(&a.RPM).Validate(validateNonNegativeInt),
	)).Run()
}

func promptMCP(a *Answers) error {
	var transport string
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Where do the research tools come from?").
			Options(
				huh.NewOption("An MCP server started as a command", "command"),
				huh.NewOption("An MCP server at a URL", "url"),
				huh.NewOption("Skip for now", ""),
			).
			Value(&transport),
	)).Run(); err != nil {
		return err
	}

	if transport == "" {
		return nil
	}

	a.MCPName = "tools"
	fields := []huh.Field{huh.NewInput().Title("Server name").Value(&a.MCPName).Validate(validateRequired)}
	if transport == "url" {
		fields = append(fields, huh.NewInput().Title("Server URL").Value(&a.MCPURL).Validate(validateRequired))
	} else {
		fields = append(fields,
			huh.NewInput().Title("Command").Value(&a.MCPCommand).Validate(validateRequired),
			huh.NewInput().Title("Arguments (space separated)").Value(&a.MCPArgs),
		)
	}

	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func promptAgent(a *Answers) error {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Agent name").Value(&a.AgentName).Validate(validateRequired),
		huh.NewText().Title("Instructions").Value(&a.Instructions),
		huh.NewInput().Title("Max iterations").Value(&a.MaxIterations).Validate(validatePositiveInt),
		huh.NewInput().Title("Tool timeout (e.g. 30s, empty = none)").Value(&a.ToolTimeout).Validate(validateDuration),
		huh.NewInput().Title("Questions per session (0 = unlimited)").Value(&a.MaxQuestions).Validate(validateNonNegativeInt),
	)).Run()
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}

	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}

	return nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}

	return nil
}

func validateDuration(s string) error {
	if s == "" {
		return nil
	}

	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("must be a valid duration (e.g. 1s, 500ms)")
	}

	return nil
}
