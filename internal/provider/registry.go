package provider

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"
)

// Registry resolves a model identifier to the adapter that serves it.
type Registry struct {
	byModel  map[string]Adapter
	adapters []Adapter
}

// NewRegistry indexes the given adapters by their supported models. A
// model claimed by two adapters keeps the first registration.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byModel: make(map[string]Adapter)}
	for _, a := range adapters {
		r.adapters = append(r.adapters, a)
		for _, m := range a.SupportedModels() {
			if _, ok := r.byModel[m]; !ok {
				r.byModel[m] = a
			}
		}
	}
	return r
}

// NewRegistryFromConfig wires the three built-in adapters.
func NewRegistryFromConfig(cfg *config.Config) *Registry {
	return NewRegistry(
		NewAnthropicAdapter(cfg.Providers.Anthropic, cfg.Pricing.Anthropic),
		NewGeminiAdapter(cfg.Providers.Gemini, cfg.Pricing.Gemini),
		NewOpenAIAdapter(cfg.Providers.OpenAI, cfg.Pricing.OpenAI),
	)
}

// Resolve returns the adapter serving modelID.
func (r *Registry) Resolve(modelID string) (Adapter, error) {
	a, ok := r.byModel[modelID]
	if !ok {
		return nil, eris.Errorf("provider: unsupported model %q", modelID)
	}
	return a, nil
}

// Models lists every supported model identifier, sorted.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.byModel))
	for m := range r.byModel {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}
