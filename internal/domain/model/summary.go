package model

import (
	"time"

	"github.com/google/uuid"
)

// PairScore is the cosine similarity between two providers' final texts.
type PairScore struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

// OverlapData holds the pairwise similarity scores and their mean for one
// analysis run.
type OverlapData struct {
	Pairs []PairScore `json:"pairs"`
	Mean  float64     `json:"mean"`
}

// OutlierData records which providers were flagged as outliers and the
// per-provider average similarity that drove the classification.
type OutlierData struct {
	Flagged   []string           `json:"flagged"`
	Averages  map[string]float64 `json:"averages"`
	Threshold float64            `json:"threshold"`
}

// Summary is the post-hoc comparison for a prompt. Created exactly once,
// after every ProviderResponse for the prompt reaches a terminal state,
// and never mutated afterward.
type Summary struct {
	ID          uuid.UUID
	PromptID    uuid.UUID
	SummaryText string
	Overlap     OverlapData
	Outliers    OutlierData
	CreatedAt   time.Time
}
