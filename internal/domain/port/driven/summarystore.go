package driven

import (
	"context"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
)

// SummaryStore defines the driven port for analysis summaries. A summary
// is written exactly once per prompt and never updated.
type SummaryStore interface {
	// Create inserts the summary for a prompt.
	Create(ctx context.Context, summary model.Summary) error

	// GetByPrompt returns the summary for a prompt, or nil if analysis has
	// not run or was skipped.
	GetByPrompt(ctx context.Context, promptID uuid.UUID) (*model.Summary, error)
}
