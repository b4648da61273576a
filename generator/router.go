package generator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"auto_newsletter_digest/models"
)

// ErrEmptyResponse marks a provider answer that was blank after trimming.
var ErrEmptyResponse = errors.New("provider returned empty text")

// Router sends one prompt to the primary provider and, only after it has failed,
// to the secondary. Either slot may be nil.
type Router struct {
	primary   Provider
	secondary Provider
	limits    PromptLimits
	logger    arbor.ILogger
}

func NewRouter(primary, secondary Provider, limits PromptLimits, logger arbor.ILogger) *Router {
	// A lone secondary is promoted so that "configured" always means primary first.
	if primary == nil && secondary != nil {
		primary, secondary = secondary, nil
	}
	return &Router{
		primary:   primary,
		secondary: secondary,
		limits:    limits,
		logger:    logger,
	}
}

// Configured reports whether at least one provider is available.
func (r *Router) Configured() bool { return r.primary != nil }

// Generate produces the newsletter text. It makes at most two provider calls, in
// order, and returns a ConfigurationError when no provider is configured or a
// GenerationError when every attempt failed.
func (r *Router) Generate(ctx context.Context, items []models.SourceResult, elapsedDays int) (models.GenerationOutcome, error) {
	if r.primary == nil {
		return models.GenerationOutcome{}, &models.ConfigurationError{
			Field:  "gemini.api_key / openai.api_key",
			Reason: "no generation provider configured",
		}
	}

	prompt := BuildPrompt(items, elapsedDays, r.limits)
	var attempts []*models.ProviderError

	text, err := r.attempt(ctx, r.primary, prompt)
	if err == nil {
		return models.GenerationOutcome{Text: text, Role: models.RolePrimary, Provider: r.primary.Name()}, nil
	}
	attempts = append(attempts, err)

	if r.secondary == nil {
		r.logger.Error().Err(err).Str("provider", r.primary.Name()).Msg("Generation failed and no fallback provider is configured")
		return models.GenerationOutcome{}, &models.GenerationError{Attempts: attempts}
	}

	r.logger.Warn().
		Str("provider", r.primary.Name()).
		Str("fallback", r.secondary.Name()).
		Err(err).
		Msg("Primary provider failed, falling back")

	text, err = r.attempt(ctx, r.secondary, prompt)
	if err == nil {
		return models.GenerationOutcome{Text: text, Role: models.RoleSecondary, Provider: r.secondary.Name()}, nil
	}
	attempts = append(attempts, err)

	r.logger.Error().Err(err).Str("provider", r.secondary.Name()).Msg("Fallback provider failed")
	return models.GenerationOutcome{}, &models.GenerationError{Attempts: attempts}
}

func (r *Router) attempt(ctx context.Context, p Provider, prompt Prompt) (string, *models.ProviderError) {
	start := time.Now()
	r.logger.Info().Str("provider", p.Name()).Int("prompt_len", len(prompt.User)).Msg("Calling generation provider")

	raw, err := p.Attempt(ctx, prompt)
	if err != nil {
		return "", &models.ProviderError{Provider: p.Name(), Err: err}
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", &models.ProviderError{Provider: p.Name(), Err: ErrEmptyResponse}
	}

	r.logger.Info().
		Str("provider", p.Name()).
		Int("text_len", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("Newsletter text generated")
	return text, nil
}
