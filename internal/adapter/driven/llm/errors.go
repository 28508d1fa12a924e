// Package llm contains the provider adapters that translate upstream LLM
// streaming APIs into the uniform ProviderClient capability.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// statusKind maps an HTTP status code to the shared error taxonomy.
func statusKind(status int) driven.ProviderErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return driven.ProviderErrAuth
	case http.StatusTooManyRequests:
		return driven.ProviderErrRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return driven.ProviderErrTimeout
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return driven.ProviderErrMalformed
	default:
		return driven.ProviderErrUnknown
	}
}

// classify wraps err as a *ProviderError for the given provider, using the
// HTTP status when one is known. Context deadline expiry always maps to
// the timeout kind, and payload decode failures to malformed.
func classify(provider string, status int, err error) *driven.ProviderError {
	if perr, ok := driven.AsProviderError(err); ok {
		return perr
	}

	kind := driven.ProviderErrUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = driven.ProviderErrTimeout
	case isDecodeError(err):
		kind = driven.ProviderErrMalformed
	case status != 0:
		kind = statusKind(status)
	}

	return &driven.ProviderError{
		Provider: provider,
		Kind:     kind,
		Message:  err.Error(),
		Cause:    err,
	}
}

// isDecodeError reports whether err stems from an unparseable payload.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
