package orchestrator

import (
	"context"
	"errors"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/store"
)

// CredentialResolver picks the API key for a provider call: a credential
// stored for the requesting user wins, otherwise the configured service
// key applies.
type CredentialResolver struct {
	store    store.Store
	fallback map[string]string
}

// NewCredentialResolver builds a resolver with configured fallback keys.
func NewCredentialResolver(st store.Store, providers config.ProvidersConfig) *CredentialResolver {
	return &CredentialResolver{
		store: st,
		fallback: map[string]string{
			"anthropic": providers.Anthropic.Key,
			"gemini":    providers.Gemini.Key,
			"openai":    providers.OpenAI.Key,
		},
	}
}

// Resolve returns the credential for the given user and provider. A
// missing user credential falls back to the service key; an empty result
// means the provider is unusable for this call. Store failures other than
// not-found are returned so the orchestration can be retried.
func (r *CredentialResolver) Resolve(ctx context.Context, userID, providerName string) (string, error) {
	if userID != "" {
		key, err := r.store.GetCredential(ctx, userID, providerName)
		if err == nil && key != "" {
			return key, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}
	return r.fallback[providerName], nil
}
