package ai

import (
	"context"

	"stock-dashboard/internal/store"
	"stock-dashboard/internal/types"
)

// Request is one generation call: an optional system preamble plus the
// ordered conversation turns.
type Request struct {
	System      string
	Messages    []types.ChatMessage
	MaxTokens   int
	Temperature float32
}

// Provider is a single generative-text backend. Generate returns the raw
// model text; missing credentials surface as types.ErrCredentialsMissing
// so the chain can skip to the next provider.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// BuildChain resolves the configured provider order into instances.
// Unknown entries are ignored; config validation rejects them upstream.
func BuildChain(cfg *store.Config) []Provider {
	chain := make([]Provider, 0, len(cfg.LLM.Providers))
	for _, name := range cfg.LLM.Providers {
		switch name {
		case "GEMINI":
			chain = append(chain, NewGeminiProvider(cfg))
		case "OPENAI":
			chain = append(chain, NewOpenAIProvider(cfg))
		}
	}
	return chain
}
