package driven

import (
	"context"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
)

// PromptStore defines the driven port for prompt persistence.
type PromptStore interface {
	// Create inserts a new prompt row.
	Create(ctx context.Context, prompt model.Prompt) error

	// GetByID returns the prompt with the given id, or nil if it does not
	// exist or is not owned by userID.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*model.Prompt, error)

	// ListByUser returns one page of the user's prompts, newest first,
	// along with the total count.
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Prompt, int, error)
}
