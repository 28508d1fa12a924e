package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CreatePromptRequest is the body of POST /api/prompts.
type CreatePromptRequest struct {
	Prompt    string   `json:"prompt"`
	Providers []string `json:"providers"`
}

// streamEventDTO is the wire shape of one stream event. Fields are omitted
// when not meaningful for the event type; consumers treat the stream as
// append-only and must not assume fixed shapes.
type streamEventDTO struct {
	Type           string           `json:"type"`
	Provider       string           `json:"provider,omitempty"`
	Text           string           `json:"text,omitempty"`
	Done           bool             `json:"done,omitempty"`
	Kind           string           `json:"kind,omitempty"`
	Message        string           `json:"message,omitempty"`
	PromptID       string           `json:"prompt_id,omitempty"`
	Summary        *SummaryResponse `json:"summary,omitempty"`
	SummaryOmitted bool             `json:"summary_omitted,omitempty"`
}

// toStreamEventDTO converts a coordinator event to its wire shape.
func toStreamEventDTO(ev model.StreamEvent) streamEventDTO {
	dto := streamEventDTO{
		Type:     string(ev.Type),
		Provider: ev.Provider,
		Text:     ev.Text,
		Done:     ev.Done,
		Kind:     ev.Kind,
		Message:  ev.Message,
	}
	if ev.Type == model.EventComplete {
		dto.PromptID = ev.PromptID.String()
		dto.SummaryOmitted = ev.SummaryOmitted
		if ev.Summary != nil {
			summary := toSummaryResponse(*ev.Summary)
			dto.Summary = &summary
		}
	}
	return dto
}

// ProviderResponseBody is the JSON representation of one provider's response.
type ProviderResponseBody struct {
	ID             string `json:"id"`
	Provider       string `json:"provider"`
	ModelUsed      string `json:"model_used,omitempty"`
	ResponseText   string `json:"response_text"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toProviderResponseBody(resp model.ProviderResponse) ProviderResponseBody {
	return ProviderResponseBody{
		ID:             resp.ID.String(),
		Provider:       resp.Provider,
		ModelUsed:      resp.ModelUsed,
		ResponseText:   resp.Text,
		ResponseTimeMs: resp.ResponseTimeMs,
		ErrorMessage:   resp.ErrorMessage,
		CreatedAt:      resp.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SummaryResponse is the JSON representation of an analysis summary.
type SummaryResponse struct {
	SummaryText string            `json:"summary_text"`
	OverlapData model.OverlapData `json:"overlap_data"`
	OutlierData model.OutlierData `json:"outlier_data"`
	CreatedAt   string            `json:"created_at"`
}

func toSummaryResponse(summary model.Summary) SummaryResponse {
	return SummaryResponse{
		SummaryText: summary.SummaryText,
		OverlapData: summary.Overlap,
		OutlierData: summary.Outliers,
		CreatedAt:   summary.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// PromptDetailResponse is the JSON representation of a prompt with its
// responses and summary (if analysis ran).
type PromptDetailResponse struct {
	ID         string                 `json:"id"`
	PromptText string                 `json:"prompt_text"`
	CreatedAt  string                 `json:"created_at"`
	Responses  []ProviderResponseBody `json:"responses"`
	Summary    *SummaryResponse       `json:"summary,omitempty"`
}

// PromptListItem is one entry of the prompt history listing. Text is
// truncated for display.
type PromptListItem struct {
	ID         string `json:"id"`
	PromptText string `json:"prompt_text"`
	CreatedAt  string `json:"created_at"`
}

// PromptListResponse is the paginated prompt history.
type PromptListResponse struct {
	Prompts []PromptListItem `json:"prompts"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

// APIKeyRequest is the body of POST /api/keys.
type APIKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// APIKeyStatus reports whether a key is stored for a provider. The key
// itself is represented only by its one-way fingerprint.
type APIKeyStatus struct {
	Provider    string `json:"provider"`
	HasKey      bool   `json:"has_key"`
	Fingerprint string `json:"fingerprint,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// HealthResponse is the health check response body.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
