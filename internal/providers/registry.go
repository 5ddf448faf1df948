package providers

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sailsonlabs/pulse/internal/config"
)

// Registry holds references to LLM clients. It supports config-driven
// instantiation, hot-reload, and thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	llmClients map[string]LLMClient
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		llmClients: make(map[string]LLMClient),
		logger:     logger,
	}
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	r.logger.Info("registered LLM client", "name", name)
}

// UnregisterLLM removes an LLM client by name.
func (r *Registry) UnregisterLLM(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.llmClients, name)
	r.logger.Info("unregistered LLM client", "name", name)
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// ListLLM returns all registered LLM client names.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	return names
}

// ApplyConfig instantiates clients for every enabled provider in cfg,
// replacing the current set. Called at startup and on config reload.
func (r *Registry) ApplyConfig(cfg *config.Config) {
	next := make(map[string]LLMClient)
	for name, p := range cfg.EnabledLLMProviders() {
		switch p.Type {
		case "gemini":
			next[name] = NewGeminiClient(GeminiConfig{
				APIKey:    p.APIKey,
				Model:     p.Model,
				RateLimit: p.RateLimit,
			})
		case "openai":
			next[name] = NewOpenAIClient(OpenAIConfig{
				APIKey:    p.APIKey,
				Model:     p.Model,
				RateLimit: p.RateLimit,
			})
		case "mock":
			next[name] = NewMockClient()
		default:
			r.logger.Warn("unknown LLM provider type, skipping", "name", name, "type", p.Type)
			continue
		}
		r.logger.Info("configured LLM client", "name", name, "type", p.Type, "model", p.Model)
	}

	r.mu.Lock()
	r.llmClients = next
	r.mu.Unlock()
}
