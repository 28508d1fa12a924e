package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SummaryStore = (*SummaryRepo)(nil)

// SummaryRepo is the SQLite implementation of the SummaryStore port.
// Overlap and outlier data are serialized as JSON in TEXT columns.
type SummaryRepo struct {
	db *DB
}

// NewSummaryRepo creates a new SummaryRepo backed by the given DB.
func NewSummaryRepo(db *DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

// Create inserts the summary for a prompt. The UNIQUE constraint on
// prompt_id enforces the one-summary-per-prompt invariant.
func (r *SummaryRepo) Create(ctx context.Context, summary model.Summary) error {
	overlapJSON, err := json.Marshal(summary.Overlap)
	if err != nil {
		return fmt.Errorf("marshal overlap data: %w", err)
	}
	outlierJSON, err := json.Marshal(summary.Outliers)
	if err != nil {
		return fmt.Errorf("marshal outlier data: %w", err)
	}

	const query = `
		INSERT INTO summaries (id, prompt_id, summary_text, overlap_data, outlier_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Writer.ExecContext(ctx, query,
		summary.ID.String(), summary.PromptID.String(), summary.SummaryText,
		string(overlapJSON), string(outlierJSON), summary.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert summary for prompt %s: %w", summary.PromptID, err)
	}
	return nil
}

// GetByPrompt returns the summary for a prompt, or nil if none exists.
func (r *SummaryRepo) GetByPrompt(ctx context.Context, promptID uuid.UUID) (*model.Summary, error) {
	const query = `
		SELECT id, prompt_id, summary_text, overlap_data, outlier_data, created_at
		FROM summaries
		WHERE prompt_id = ?
	`
	var (
		summary     model.Summary
		idStr       string
		promptStr   string
		overlapJSON string
		outlierJSON string
		createdAt   string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, promptID.String()).
		Scan(&idStr, &promptStr, &summary.SummaryText, &overlapJSON, &outlierJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary for prompt %s: %w", promptID, err)
	}

	if summary.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse summary id: %w", err)
	}
	if summary.PromptID, err = uuid.Parse(promptStr); err != nil {
		return nil, fmt.Errorf("parse summary prompt id: %w", err)
	}
	if err := json.Unmarshal([]byte(overlapJSON), &summary.Overlap); err != nil {
		return nil, fmt.Errorf("unmarshal overlap data: %w", err)
	}
	if err := json.Unmarshal([]byte(outlierJSON), &summary.Outliers); err != nil {
		return nil, fmt.Errorf("unmarshal outlier data: %w", err)
	}
	if summary.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for summary %s: %w", summary.ID, err)
	}
	return &summary, nil
}
