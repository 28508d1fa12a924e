package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PromptStore = (*PromptRepo)(nil)

// PromptRepo is the SQLite implementation of the PromptStore port.
type PromptRepo struct {
	db *DB
}

// NewPromptRepo creates a new PromptRepo backed by the given DB.
func NewPromptRepo(db *DB) *PromptRepo {
	return &PromptRepo{db: db}
}

// Create inserts a new prompt row.
func (r *PromptRepo) Create(ctx context.Context, prompt model.Prompt) error {
	const query = `INSERT INTO prompts (id, user_id, prompt_text, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		prompt.ID.String(), prompt.UserID.String(), prompt.Text, prompt.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert prompt %s: %w", prompt.ID, err)
	}
	return nil
}

// GetByID returns the prompt with the given id owned by userID, or nil.
func (r *PromptRepo) GetByID(ctx context.Context, id, userID uuid.UUID) (*model.Prompt, error) {
	const query = `SELECT id, user_id, prompt_text, created_at FROM prompts WHERE id = ? AND user_id = ?`

	var (
		prompt    model.Prompt
		idStr     string
		userStr   string
		createdAt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, id.String(), userID.String()).
		Scan(&idStr, &userStr, &prompt.Text, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt %s: %w", id, err)
	}

	if prompt.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse prompt id: %w", err)
	}
	if prompt.UserID, err = uuid.Parse(userStr); err != nil {
		return nil, fmt.Errorf("parse prompt user id: %w", err)
	}
	if prompt.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for prompt %s: %w", id, err)
	}
	return &prompt, nil
}

// ListByUser returns one page of the user's prompts, newest first, plus the
// total count.
func (r *PromptRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Prompt, int, error) {
	const countQuery = `SELECT COUNT(*) FROM prompts WHERE user_id = ?`
	var total int
	if err := r.db.Reader.QueryRowContext(ctx, countQuery, userID.String()).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prompts: %w", err)
	}

	const query = `
		SELECT id, user_id, prompt_text, created_at
		FROM prompts
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, userID.String(), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		var (
			prompt    model.Prompt
			idStr     string
			userStr   string
			createdAt string
		)
		if err := rows.Scan(&idStr, &userStr, &prompt.Text, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan prompt: %w", err)
		}
		if prompt.ID, err = uuid.Parse(idStr); err != nil {
			return nil, 0, fmt.Errorf("parse prompt id: %w", err)
		}
		if prompt.UserID, err = uuid.Parse(userStr); err != nil {
			return nil, 0, fmt.Errorf("parse prompt user id: %w", err)
		}
		if prompt.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, 0, fmt.Errorf("parse created_at: %w", err)
		}
		prompts = append(prompts, prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate prompts: %w", err)
	}
	return prompts, total, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
