package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ResponseStore = (*ResponseRepo)(nil)

// ResponseRepo is the SQLite implementation of the ResponseStore port.
type ResponseRepo struct {
	db *DB
}

// NewResponseRepo creates a new ResponseRepo backed by the given DB.
func NewResponseRepo(db *DB) *ResponseRepo {
	return &ResponseRepo{db: db}
}

// Create inserts a placeholder response row for a dispatched provider.
func (r *ResponseRepo) Create(ctx context.Context, resp model.ProviderResponse) error {
	const query = `
		INSERT INTO llm_responses (id, prompt_id, provider, model_used, response_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Writer.ExecContext(ctx, query,
		resp.ID.String(), resp.PromptID.String(), resp.Provider, resp.ModelUsed,
		resp.Text, resp.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert response %s for %q: %w", resp.ID, resp.Provider, err)
	}
	return nil
}

// UpdateText replaces the accumulated response text for an in-flight response.
func (r *ResponseRepo) UpdateText(ctx context.Context, id uuid.UUID, text string) error {
	const query = `UPDATE llm_responses SET response_text = ? WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, text, id.String()); err != nil {
		return fmt.Errorf("update response text %s: %w", id, err)
	}
	return nil
}

// Finalize records the full text and elapsed time for a completed response.
func (r *ResponseRepo) Finalize(ctx context.Context, id uuid.UUID, text string, responseTimeMs int64) error {
	const query = `UPDATE llm_responses SET response_text = ?, response_time_ms = ? WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, text, responseTimeMs, id.String()); err != nil {
		return fmt.Errorf("finalize response %s: %w", id, err)
	}
	return nil
}

// MarkError records a terminal failure for a response.
func (r *ResponseRepo) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	const query = `UPDATE llm_responses SET error_message = ? WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, message, id.String()); err != nil {
		return fmt.Errorf("mark response error %s: %w", id, err)
	}
	return nil
}

// ListByPrompt returns all responses for a prompt, ordered by provider.
func (r *ResponseRepo) ListByPrompt(ctx context.Context, promptID uuid.UUID) ([]model.ProviderResponse, error) {
	const query = `
		SELECT id, prompt_id, provider, model_used, response_text, response_time_ms, error_message, created_at
		FROM llm_responses
		WHERE prompt_id = ?
		ORDER BY provider
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, promptID.String())
	if err != nil {
		return nil, fmt.Errorf("list responses for prompt %s: %w", promptID, err)
	}
	defer rows.Close()

	var responses []model.ProviderResponse
	for rows.Next() {
		var (
			resp      model.ProviderResponse
			idStr     string
			promptStr string
			createdAt string
		)
		if err := rows.Scan(&idStr, &promptStr, &resp.Provider, &resp.ModelUsed,
			&resp.Text, &resp.ResponseTimeMs, &resp.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if resp.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parse response id: %w", err)
		}
		if resp.PromptID, err = uuid.Parse(promptStr); err != nil {
			return nil, fmt.Errorf("parse response prompt id: %w", err)
		}
		if resp.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for response %s: %w", resp.ID, err)
		}
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return responses, nil
}
