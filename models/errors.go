package models

import (
	"fmt"
	"sort"
	"strings"
)

// ConfigurationError reports a missing or invalid setting. It is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// CollectionError is returned when no configured source could be fetched.
type CollectionError struct {
	Attempted int
	Failures  map[string]string
}

func (e *CollectionError) Error() string {
	urls := make([]string, 0, len(e.Failures))
	for u := range e.Failures {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	parts := make([]string, 0, len(urls))
	for _, u := range urls {
		parts = append(parts, u+": "+e.Failures[u])
	}
	return fmt.Sprintf("collection: 0/%d sources succeeded [%s]", e.Attempted, strings.Join(parts, "; "))
}

// ProviderError is one failed provider attempt.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// GenerationError is returned when every configured provider attempt failed.
type GenerationError struct {
	Attempts []*ProviderError
}

func (e *GenerationError) Error() string {
	if len(e.Attempts) == 0 {
		return "generation failed"
	}
	msgs := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		msgs = append(msgs, a.Error())
	}
	return "generation failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual attempts to errors.Is / errors.As.
func (e *GenerationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a)
	}
	return errs
}

// DeliveryError covers rendering and transport failures. Recipient is empty when
// the failure happened before any message was addressed.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Recipient == "" {
		return fmt.Sprintf("delivery: %v", e.Err)
	}
	return fmt.Sprintf("delivery to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
