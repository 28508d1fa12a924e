package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
)

func TestSummaryRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSummaryRepo(db)
	ctx := context.Background()
	promptID := createTestPrompt(t, db, uuid.New())

	summary := model.Summary{
		ID:          uuid.New(),
		PromptID:    promptID,
		SummaryText: "Compared 3 responses; mean pairwise similarity 0.72.",
		Overlap: model.OverlapData{
			Pairs: []model.PairScore{
				{A: "anthropic", B: "google", Score: 0.81},
				{A: "anthropic", B: "openai", Score: 0.75},
				{A: "google", B: "openai", Score: 0.60},
			},
			Mean: 0.72,
		},
		Outliers: model.OutlierData{
			Flagged:   []string{"openai"},
			Averages:  map[string]float64{"anthropic": 0.78, "google": 0.705, "openai": 0.675},
			Threshold: 0.70,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, summary))

	got, err := repo.GetByPrompt(ctx, promptID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, summary.ID, got.ID)
	assert.Equal(t, summary.PromptID, got.PromptID)
	assert.Equal(t, summary.SummaryText, got.SummaryText)
	assert.Equal(t, summary.Overlap, got.Overlap)
	assert.Equal(t, summary.Outliers, got.Outliers)
	assert.True(t, got.CreatedAt.Equal(summary.CreatedAt))
}

func TestSummaryRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSummaryRepo(db)
	ctx := context.Background()

	got, err := repo.GetByPrompt(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSummaryRepo_OnePerPrompt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSummaryRepo(db)
	ctx := context.Background()
	promptID := createTestPrompt(t, db, uuid.New())

	first := model.Summary{
		ID:          uuid.New(),
		PromptID:    promptID,
		SummaryText: "first",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, first))

	second := model.Summary{
		ID:          uuid.New(),
		PromptID:    promptID,
		SummaryText: "second",
		CreatedAt:   time.Now().UTC(),
	}
	assert.Error(t, repo.Create(ctx, second))
}
