package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/limelightai/limelight/internal/config"
)

// Registry maps provider IDs to task executors. The orchestration core
// dispatches through this uniform interface and stays provider-agnostic.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]TaskExecutor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]TaskExecutor)}
}

// NewRegistryFromConfig builds a registry with one executor per enabled
// provider in the configuration.
func NewRegistryFromConfig(cfg *config.ProvidersConfig) *Registry {
	r := NewRegistry()
	if cfg.OpenAI.Enabled {
		r.Register(NewOpenAIExecutor(&OpenAIConfig{
			ProviderID: "openai",
			Model:      cfg.OpenAI.Model,
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
		}))
	}
	if cfg.Anthropic.Enabled {
		r.Register(NewAnthropicExecutor(&AnthropicConfig{
			Model:   cfg.Anthropic.Model,
			APIKey:  cfg.Anthropic.APIKey,
			BaseURL: cfg.Anthropic.BaseURL,
		}))
	}
	if cfg.Perplexity.Enabled {
		r.Register(NewOpenAIExecutor(&OpenAIConfig{
			ProviderID: "perplexity",
			Model:      cfg.Perplexity.Model,
			APIKey:     cfg.Perplexity.APIKey,
			BaseURL:    cfg.Perplexity.BaseURL,
		}))
	}
	return r
}

// Register adds an executor, replacing any previous one with the same ID.
func (r *Registry) Register(e TaskExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.ProviderID()] = e
}

// Get returns the executor for a provider ID.
func (r *Registry) Get(providerID string) (TaskExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[providerID]
	if !ok {
		return nil, fmt.Errorf("no executor registered for provider %q", providerID)
	}
	return e, nil
}

// IDs returns the registered provider IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.executors))
	for id := range r.executors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
