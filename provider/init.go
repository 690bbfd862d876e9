package provider

import (
	"fmt"
	"log/slog"
	"sync"

	"toolchat/config"
	"toolchat/model"
)

type entry struct {
	info     model.ModelInfo
	provider model.Provider
	defaults model.ChatOptions
}

// Registry maps configured model ids to the provider serving them and the
// model's default generation options.
type Registry struct {
	mu           sync.RWMutex
	entries      map[string]entry
	order        []string
	defaultModel string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Add registers p under info.ID. The first model added becomes the default
// until SetDefault is called.
func (r *Registry) Add(info model.ModelInfo, p model.Provider, defaults model.ChatOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[info.ID]; !exists {
		r.order = append(r.order, info.ID)
	}
	r.entries[info.ID] = entry{info: info, provider: p, defaults: defaults}
	if r.defaultModel == "" {
		r.defaultModel = info.ID
	}
}

// SetDefault selects the model used when a request names none. Unknown ids
// are ignored.
func (r *Registry) SetDefault(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		r.defaultModel = id
	}
}

func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModel
}

// Resolve returns the provider for modelID ("" selects the default model)
// together with that model's default options.
func (r *Registry) Resolve(modelID string) (model.Provider, model.ChatOptions, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if modelID == "" {
		modelID = r.defaultModel
	}
	e, ok := r.entries[modelID]
	if !ok {
		return nil, model.ChatOptions{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return e.provider, e.defaults, nil
}

// Models lists registered models in registration order.
func (r *Registry) Models() []model.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ModelInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].info)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// InitializeProviders creates one provider per configured model. API keys
// are read through cfg.Secret. A model whose provider cannot be created is
// logged and skipped so the server can still start.
func InitializeProviders(cfg *config.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = config.Discard()
	}
	logger = logger.With("component", "provider")

	reg := NewRegistry()
	for _, m := range cfg.Models {
		providerType := MapProviderIDToType(m.Provider)

		p, err := NewProvider(Config{
			Type:    providerType,
			BaseURL: m.BaseURL,
			Model:   m.Model,
			APIKey:  cfg.Secret(m.Credential),
		})
		if err != nil {
			logger.Warn("skipping model", "model", m.ID, "provider", m.Provider, "error", err)
			continue
		}

		name := m.Name
		if name == "" && providerType == ProviderTypeOpenRouter {
			name = stripProviderPrefix(m.Model)
		}
		if name == "" {
			name = m.ID
		}
		reg.Add(model.ModelInfo{
			ID:       m.ID,
			Name:     name,
			Provider: string(providerType),
			Model:    m.Model,
		}, p, model.ChatOptions{
			Model:       m.Model,
			Temperature: m.Temperature,
			MaxTokens:   m.MaxTokens,
			TopP:        m.TopP,
		})
		logger.Debug("initialized model", "model", m.ID, "provider", providerType)
	}

	reg.SetDefault(cfg.DefaultModel)
	if cfg.DefaultModel != "" && reg.Default() != cfg.DefaultModel {
		logger.Warn("default model is not available", "model", cfg.DefaultModel, "using", reg.Default())
	}
	return reg
}
