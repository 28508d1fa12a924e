// Package httphandler is the HTTP driving adapter that serves the REST API
// and the prompt event stream.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/application"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// promptPreviewLen caps the prompt text shown in history listings.
const promptPreviewLen = 100

// Handler serves the prompt fan-out API.
type Handler struct {
	fanout    *application.FanoutService
	prompts   driven.PromptStore
	responses driven.ResponseStore
	summaries driven.SummaryStore
	vault     driven.CredentialVault
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	fanout *application.FanoutService,
	prompts driven.PromptStore,
	responses driven.ResponseStore,
	summaries driven.SummaryStore,
	vault driven.CredentialVault,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		fanout:    fanout,
		prompts:   prompts,
		responses: responses,
		summaries: summaries,
		vault:     vault,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with auth, logging, and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/prompts", h.CreatePrompt)
	mux.HandleFunc("GET /api/prompts", h.ListPrompts)
	mux.HandleFunc("GET /api/prompts/{id}", h.GetPrompt)
	mux.HandleFunc("POST /api/keys", h.SaveAPIKey)
	mux.HandleFunc("GET /api/keys", h.ListAPIKeys)
	mux.HandleFunc("DELETE /api/keys/{provider}", h.DeleteAPIKey)

	// Health stays outside the auth boundary for container probes.
	authed := authMiddleware(mux)
	root := http.NewServeMux()
	root.Handle("/api/", authed)
	root.HandleFunc("GET /api/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, root)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// CreatePrompt accepts a prompt + provider selection and streams the merged
// fan-out events back to the client as they are produced.
func (h *Handler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req CreatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	promptID, events, err := h.fanout.Run(r.Context(), userID, req.Prompt, req.Providers)
	if err != nil {
		var verr *application.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Message)
			return
		}
		h.logger.Error("failed to start fan-out", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	encoder, err := newEventWriter(w)
	if err != nil {
		h.logger.Error("streaming unsupported", "error", err)
		// The run is already in flight; drain so persistence completes.
		for range events {
		}
		return
	}

	// A write failure means the client is gone. Keep draining so the
	// coordinator and persistence writer finish undisturbed.
	clientGone := false
	for ev := range events {
		if clientGone {
			continue
		}
		if err := encoder.WriteEvent(toStreamEventDTO(ev)); err != nil {
			clientGone = true
			h.logger.Info("client disconnected mid-stream", "prompt_id", promptID)
		}
	}
}

// GetPrompt returns a persisted prompt with its responses and summary, for
// retrieval after the stream has ended or for a disconnected client to
// recover final state.
func (h *Handler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	promptID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt id")
		return
	}

	prompt, err := h.prompts.GetByID(r.Context(), promptID, userID)
	if err != nil {
		h.logger.Error("failed to get prompt", "prompt_id", promptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if prompt == nil {
		writeError(w, http.StatusNotFound, "prompt not found")
		return
	}

	responses, err := h.responses.ListByPrompt(r.Context(), promptID)
	if err != nil {
		h.logger.Error("failed to list responses", "prompt_id", promptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	summary, err := h.summaries.GetByPrompt(r.Context(), promptID)
	if err != nil {
		h.logger.Error("failed to get summary", "prompt_id", promptID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := PromptDetailResponse{
		ID:         prompt.ID.String(),
		PromptText: prompt.Text,
		CreatedAt:  prompt.CreatedAt.UTC().Format(time.RFC3339),
		Responses:  make([]ProviderResponseBody, 0, len(responses)),
	}
	for _, pr := range responses {
		resp.Responses = append(resp.Responses, toProviderResponseBody(pr))
	}
	if summary != nil {
		s := toSummaryResponse(*summary)
		resp.Summary = &s
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListPrompts returns the user's prompt history, newest first.
func (h *Handler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			page = parsed
		}
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	prompts, total, err := h.prompts.ListByUser(r.Context(), userID, (page-1)*limit, limit)
	if err != nil {
		h.logger.Error("failed to list prompts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := PromptListResponse{
		Prompts: make([]PromptListItem, 0, len(prompts)),
		Total:   total,
		Page:    page,
		Limit:   limit,
	}
	for _, p := range prompts {
		resp.Prompts = append(resp.Prompts, PromptListItem{
			ID:         p.ID.String(),
			PromptText: previewText(p.Text),
			CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// SaveAPIKey stores or replaces a provider API key for the current user.
func (h *Handler) SaveAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req APIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}
	if !h.isKnownProvider(req.Provider) {
		writeError(w, http.StatusBadRequest, "unknown provider: "+req.Provider)
		return
	}

	fingerprint, err := h.vault.Store(r.Context(), userID, req.Provider, req.APIKey)
	if err != nil {
		if errors.Is(err, driven.ErrMasterKeyNotSet) {
			writeError(w, http.StatusServiceUnavailable, "credential vault is not configured")
			return
		}
		h.logger.Error("failed to store api key", "provider", req.Provider, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, APIKeyStatus{
		Provider:    req.Provider,
		HasKey:      true,
		Fingerprint: fingerprint,
	})
}

// ListAPIKeys reports key status for every known provider. Key material is
// never returned; stored keys are identified by fingerprint only.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	infos, err := h.vault.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list api keys", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stored := make(map[string]int, len(infos))
	for i, info := range infos {
		stored[info.Provider] = i
	}

	statuses := make([]APIKeyStatus, 0, len(h.fanout.Providers()))
	for _, provider := range h.fanout.Providers() {
		status := APIKeyStatus{Provider: provider}
		if i, ok := stored[provider]; ok {
			status.HasKey = true
			status.Fingerprint = infos[i].Fingerprint
			status.CreatedAt = infos[i].CreatedAt.UTC().Format(time.RFC3339)
		}
		statuses = append(statuses, status)
	}

	writeJSON(w, http.StatusOK, statuses)
}

// DeleteAPIKey removes a stored provider API key for the current user.
func (h *Handler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	provider := r.PathValue("provider")
	if !h.isKnownProvider(provider) {
		writeError(w, http.StatusBadRequest, "unknown provider: "+provider)
		return
	}

	if err := h.vault.Delete(r.Context(), userID, provider); err != nil {
		h.logger.Error("failed to delete api key", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// previewText truncates prompt text for history listings, backing off to a
// rune boundary so the result is always valid UTF-8.
func previewText(text string) string {
	if len(text) <= promptPreviewLen {
		return text
	}
	cut := promptPreviewLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// isKnownProvider checks the provider id against the closed registry set.
func (h *Handler) isKnownProvider(name string) bool {
	for _, p := range h.fanout.Providers() {
		if p == name {
			return true
		}
	}
	return false
}
