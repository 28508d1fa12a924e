package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
)

// ProviderErrorKind is a stable, provider-agnostic error classification.
type ProviderErrorKind string

const (
	ProviderErrRateLimited ProviderErrorKind = "rate_limited"
	ProviderErrAuth        ProviderErrorKind = "auth"
	ProviderErrTimeout     ProviderErrorKind = "timeout"
	ProviderErrMalformed   ProviderErrorKind = "malformed"
	ProviderErrUnknown     ProviderErrorKind = "unknown"
)

// ProviderError is the normalized error shape shared by all provider
// adapters. Adapters translate provider-specific failures (HTTP status,
// malformed payloads, rate-limit signals) into this one type.
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Provider != "" {
		return fmt.Sprintf("provider %s: %s", e.Provider, msg)
	}
	return fmt.Sprintf("provider: %s", msg)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// AsProviderError unwraps err into a *ProviderError if one is present.
func AsProviderError(err error) (*ProviderError, bool) {
	var e *ProviderError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ProviderStream is a finite, non-restartable sequence of text increments
// produced by an active provider call.
//
// Recv yields increments in issue order and surfaces exactly one terminal
// state: either an increment with Final set, or a *ProviderError. Callers
// must stop calling Recv after either.
type ProviderStream interface {
	Recv() (model.TextIncrement, error)
	Close() error
}

// ProviderClient is the uniform capability implemented once per upstream
// LLM provider. A caller that wants another attempt must call Invoke again.
type ProviderClient interface {
	// Name returns the stable provider id ("openai", "anthropic", "google").
	Name() string

	// Model returns the model identifier requests are issued against.
	Model() string

	// Invoke starts a streaming completion for the prompt using the given
	// API key. Pre-flight failures are returned as *ProviderError.
	Invoke(ctx context.Context, apiKey, prompt string) (ProviderStream, error)
}

// ProviderRegistry resolves provider ids to clients. The set of providers
// is closed at construction; adding a provider means adding a client, not
// touching the coordinator.
type ProviderRegistry interface {
	// Lookup returns the client for a provider id.
	Lookup(name string) (ProviderClient, bool)

	// Names returns all known provider ids in sorted order.
	Names() []string
}
