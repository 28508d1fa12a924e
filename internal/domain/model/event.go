package model

import "github.com/google/uuid"

// EventType identifies a stream event emitted by the fan-out coordinator.
type EventType string

const (
	// EventChunk carries a partial text delta from one provider.
	EventChunk EventType = "chunk"
	// EventResponse is a provider's terminal success event with the full text.
	EventResponse EventType = "response"
	// EventError is a provider's terminal failure event.
	EventError EventType = "error"
	// EventComplete is the single final event of a run.
	EventComplete EventType = "complete"
)

// StreamEvent is one event in the merged, ordered output of a fan-out run.
// Fields are populated depending on Type: chunk carries Provider+Text (the
// delta), response carries Provider+Text (full accumulated text)+Done,
// error carries Provider+Kind+Message, complete carries PromptID and either
// Summary or SummaryOmitted.
type StreamEvent struct {
	Type           EventType
	Provider       string
	Text           string
	Done           bool
	Kind           string
	Message        string
	PromptID       uuid.UUID
	Summary        *Summary
	SummaryOmitted bool
}

// TextIncrement is a single partial delta produced by a provider stream.
// Final marks the stream's terminal increment; a final increment may carry
// an empty Delta.
type TextIncrement struct {
	Delta string
	Final bool
}
