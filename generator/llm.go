package generator

import (
	"context"
	"time"
)

// Provider is one language-model backend. Attempt makes exactly one call and either
// returns the generated text or an error; blank text is judged by the Router.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings carries what the concrete providers need from configuration.
type LLMSettings struct {
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

const defaultProviderTimeout = 60 * time.Second

func (s LLMSettings) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultProviderTimeout
	}
	return s.Timeout
}
