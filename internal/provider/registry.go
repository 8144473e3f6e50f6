package provider

import (
	"fmt"

	"github.com/stellarlinkco/prompt-mini/internal/config"
)

// Registry holds the adapter set keyed by provider id.
type Registry struct {
	adapters map[ID]Adapter
}

// NewRegistry returns a registry with all supported adapters installed.
// Adapters are stateless; credentials arrive per call via Profile.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[ID]Adapter, 7)}
	r.Register(NewOpenAIAdapter())
	r.Register(NewAnthropicAdapter())
	r.Register(NewGoogleAdapter())
	r.Register(NewCohereAdapter())
	r.Register(NewHuggingFaceAdapter())
	r.Register(NewGroqAdapter())
	r.Register(NewOpenRouterAdapter())
	return r
}

func (r *Registry) Register(a Adapter) {
	if r == nil || a == nil {
		return
	}
	if r.adapters == nil {
		r.adapters = make(map[ID]Adapter)
	}
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(id ID) (Adapter, bool) {
	if r == nil || r.adapters == nil {
		return nil, false
	}
	a, ok := r.adapters[id]
	return a, ok
}

// ProfileFromConfig resolves a provider name (empty means the configured
// default) into a Profile carrying that vendor's credential and model.
func ProfileFromConfig(cfg *config.Config, name string) (Profile, error) {
	if cfg == nil {
		return Profile{}, fmt.Errorf("provider: nil config")
	}

	if name == "" {
		name = cfg.Providers.Default
	}
	id, err := ParseID(name)
	if err != nil {
		return Profile{}, err
	}

	pc := cfg.Providers.Profiles[string(id)]
	if pc.APIKey == "" {
		return Profile{}, fmt.Errorf("provider: %s: no api key configured", id)
	}

	return Profile{
		Provider: id,
		APIKey:   pc.APIKey,
		Model:    pc.Model,
		BaseURL:  pc.BaseURL,
		System:   pc.System,
	}, nil
}
