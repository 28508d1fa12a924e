package model

import (
	"time"

	"github.com/google/uuid"
)

// ProviderResponse is one provider's answer to a prompt. A row is created
// as a placeholder when the provider is dispatched and mutated as chunks
// arrive; ResponseTimeMs is set when the stream reaches a terminal state.
// A response with ErrorMessage set is excluded from analysis.
type ProviderResponse struct {
	ID             uuid.UUID
	PromptID       uuid.UUID
	Provider       string
	ModelUsed      string
	Text           string
	ResponseTimeMs int64
	ErrorMessage   string
	CreatedAt      time.Time
}

// Succeeded reports whether the response reached a successful terminal state.
func (r ProviderResponse) Succeeded() bool {
	return r.ErrorMessage == "" && r.ResponseTimeMs > 0
}
