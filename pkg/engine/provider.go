package engine

import (
	"fmt"
	"sync"

	"github.com/germanamz/sleuth/pkg/modeladapter"
	"github.com/germanamz/sleuth/pkg/providers/anthropic"
	"github.com/germanamz/sleuth/pkg/providers/openai"
)

// ProviderFactory creates a Completer from a ProviderConfig.
type ProviderFactory func(cfg ProviderConfig) (modeladapter.Completer, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factoryMu.Lock()
		defer factoryMu.Unlock()

		factories["anthropic"] = newAnthropic
		factories["openai"] = newOpenAI
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers.
// Any OpenAI-compatible endpoint (Ollama, Grok, vLLM) is reachable with kind
// "openai" and a base_url instead.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newAnthropic(cfg ProviderConfig) (modeladapter.Completer, error) {
	a := anthropic.New(cfg.BaseURL, cfg.APIKey, cfg.Model)
	applySampling(&a.ModelAdapter, cfg)
	return a, nil
}

func newOpenAI(cfg ProviderConfig) (modeladapter.Completer, error) {
	a := openai.New(cfg.BaseURL, cfg.APIKey, cfg.Model)
	applySampling(&a.ModelAdapter, cfg)
	return a, nil
}

func applySampling(a *modeladapter.ModelAdapter, cfg ProviderConfig) {
	a.Temperature = cfg.Temperature
	if cfg.MaxTokens > 0 {
		a.MaxTokens = cfg.MaxTokens
	}
}

// buildCompleter creates a Completer from a ProviderConfig using the registered
// factory for its Kind. If rate limiting is configured, the completer is
// wrapped with a ThrottledCompleter.
func buildCompleter(cfg ProviderConfig) (modeladapter.Completer, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider kind %q", cfg.Kind)
	}

	c, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit.Enabled() {
		c = modeladapter.NewThrottledCompleter(c, modeladapter.ThrottleOpts{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		})
	}

	return c, nil
}
