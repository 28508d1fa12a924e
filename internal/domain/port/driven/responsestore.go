package driven

import (
	"context"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
)

// ResponseStore defines the driven port for per-provider response rows.
// Rows are created as placeholders at dispatch time and mutated as the
// provider stream progresses. Callers must serialize writes per prompt;
// the fan-out coordinator's single writer lane guarantees this.
type ResponseStore interface {
	// Create inserts a placeholder response row for a dispatched provider.
	Create(ctx context.Context, resp model.ProviderResponse) error

	// UpdateText replaces the accumulated response text for an in-flight
	// response.
	UpdateText(ctx context.Context, id uuid.UUID, text string) error

	// Finalize records the full text and elapsed time for a successfully
	// completed response.
	Finalize(ctx context.Context, id uuid.UUID, text string, responseTimeMs int64) error

	// MarkError records a terminal failure for a response.
	MarkError(ctx context.Context, id uuid.UUID, message string) error

	// ListByPrompt returns all responses for a prompt, ordered by provider.
	ListByPrompt(ctx context.Context, promptID uuid.UUID) ([]model.ProviderResponse, error)
}
