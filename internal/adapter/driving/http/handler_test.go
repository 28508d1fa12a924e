package httphandler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/promptpanel/internal/application"
	"github.com/ericfisherdev/promptpanel/internal/domain/model"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// --- fakes ---

type memVault struct {
	mu       sync.Mutex
	disabled bool
	keys     map[uuid.UUID]map[string]string
	stored   map[uuid.UUID]map[string]model.CredentialInfo
}

func newMemVault() *memVault {
	return &memVault{
		keys:   make(map[uuid.UUID]map[string]string),
		stored: make(map[uuid.UUID]map[string]model.CredentialInfo),
	}
}

func (v *memVault) Store(_ context.Context, userID uuid.UUID, provider, plaintext string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disabled {
		return "", driven.ErrMasterKeyNotSet
	}
	if v.keys[userID] == nil {
		v.keys[userID] = make(map[string]string)
		v.stored[userID] = make(map[string]model.CredentialInfo)
	}
	v.keys[userID][provider] = plaintext
	info := model.CredentialInfo{
		UserID:      userID,
		Provider:    provider,
		Fingerprint: "fp-" + provider,
		CreatedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	v.stored[userID][provider] = info
	return info.Fingerprint, nil
}

func (v *memVault) Decrypt(_ context.Context, userID uuid.UUID, provider string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key, ok := v.keys[userID][provider]
	if !ok {
		return "", driven.ErrCredentialNotFound
	}
	return key, nil
}

func (v *memVault) List(_ context.Context, userID uuid.UUID) ([]model.CredentialInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var infos []model.CredentialInfo
	for _, info := range v.stored[userID] {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Provider < infos[j].Provider })
	return infos, nil
}

func (v *memVault) Delete(_ context.Context, userID uuid.UUID, provider string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.keys[userID], provider)
	delete(v.stored[userID], provider)
	return nil
}

type memPromptStore struct {
	mu      sync.Mutex
	prompts []model.Prompt
}

func (s *memPromptStore) Create(_ context.Context, prompt model.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return nil
}

func (s *memPromptStore) GetByID(_ context.Context, id, userID uuid.UUID) (*model.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prompts {
		if p.ID == id && p.UserID == userID {
			prompt := p
			return &prompt, nil
		}
	}
	return nil, nil
}

func (s *memPromptStore) ListByUser(_ context.Context, userID uuid.UUID, offset, limit int) ([]model.Prompt, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []model.Prompt
	for _, p := range s.prompts {
		if p.UserID == userID {
			owned = append(owned, p)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })
	total := len(owned)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return owned[offset:end], total, nil
}

type memResponseStore struct {
	mu        sync.Mutex
	responses map[uuid.UUID]model.ProviderResponse
}

func newMemResponseStore() *memResponseStore {
	return &memResponseStore{responses: make(map[uuid.UUID]model.ProviderResponse)}
}

func (s *memResponseStore) Create(_ context.Context, resp model.ProviderResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[resp.ID] = resp
	return nil
}

func (s *memResponseStore) UpdateText(_ context.Context, id uuid.UUID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := s.responses[id]
	resp.Text = text
	s.responses[id] = resp
	return nil
}

func (s *memResponseStore) Finalize(_ context.Context, id uuid.UUID, text string, responseTimeMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := s.responses[id]
	resp.Text = text
	resp.ResponseTimeMs = responseTimeMs
	s.responses[id] = resp
	return nil
}

func (s *memResponseStore) MarkError(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := s.responses[id]
	resp.ErrorMessage = message
	s.responses[id] = resp
	return nil
}

func (s *memResponseStore) ListByPrompt(_ context.Context, promptID uuid.UUID) ([]model.ProviderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProviderResponse
	for _, resp := range s.responses {
		if resp.PromptID == promptID {
			out = append(out, resp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

type memSummaryStore struct {
	mu        sync.Mutex
	summaries map[uuid.UUID]model.Summary
}

func newMemSummaryStore() *memSummaryStore {
	return &memSummaryStore{summaries: make(map[uuid.UUID]model.Summary)}
}

func (s *memSummaryStore) Create(_ context.Context, summary model.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.PromptID] = summary
	return nil
}

func (s *memSummaryStore) GetByPrompt(_ context.Context, promptID uuid.UUID) (*model.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.summaries[promptID]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

type stubStream struct {
	incs []model.TextIncrement
	pos  int
}

func (s *stubStream) Recv() (model.TextIncrement, error) {
	inc := s.incs[s.pos]
	s.pos++
	return inc, nil
}

func (s *stubStream) Close() error { return nil }

type stubClient struct {
	name string
	text string
}

func (c *stubClient) Name() string  { return c.name }
func (c *stubClient) Model() string { return c.name + "-model" }

func (c *stubClient) Invoke(_ context.Context, _, _ string) (driven.ProviderStream, error) {
	return &stubStream{incs: []model.TextIncrement{
		{Delta: c.text[:len(c.text)/2]},
		{Delta: c.text[len(c.text)/2:]},
		{Final: true},
	}}, nil
}

type stubRegistry struct {
	clients map[string]driven.ProviderClient
}

func (r *stubRegistry) Lookup(name string) (driven.ProviderClient, bool) {
	c, ok := r.clients[name]
	return c, ok
}

func (r *stubRegistry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --- fixture ---

type fixture struct {
	handler   http.Handler
	vault     *memVault
	prompts   *memPromptStore
	responses *memResponseStore
	summaries *memSummaryStore
	userID    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		vault:     newMemVault(),
		prompts:   &memPromptStore{},
		responses: newMemResponseStore(),
		summaries: newMemSummaryStore(),
		userID:    uuid.New(),
	}
	registry := &stubRegistry{clients: map[string]driven.ProviderClient{
		"openai":    &stubClient{name: "openai", text: "The capital of France is Paris."},
		"anthropic": &stubClient{name: "anthropic", text: "The capital of France is Paris."},
		"google":    &stubClient{name: "google", text: "It is Paris, the French capital."},
	}}
	fanout := application.NewFanoutService(
		f.vault, registry, f.prompts, f.responses, f.summaries,
		application.NewAnalyzer(application.DefaultOutlierMargin),
		5*time.Second, logger,
	)
	h := NewHandler(fanout, f.prompts, f.responses, f.summaries, f.vault, logger)
	f.handler = NewServeMux(h, logger)
	return f
}

// seedKeys stores an API key for each given provider.
func (f *fixture) seedKeys(t *testing.T, providers ...string) {
	t.Helper()
	for _, provider := range providers {
		_, err := f.vault.Store(context.Background(), f.userID, provider, "sk-"+provider)
		require.NoError(t, err)
	}
}

func (f *fixture) request(method, target string, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("X-User-ID", f.userID.String())
	return req
}

// decodeSSE parses the event-stream body into its JSON event payloads.
func decodeSSE(t *testing.T, body string) []streamEventDTO {
	t.Helper()
	var events []streamEventDTO
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev streamEventDTO
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

// --- tests ---

func TestAuth_MissingHeader(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/prompts", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_MalformedUserID(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/prompts", nil)
	req.Header.Set("X-User-ID", "not-a-uuid")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth_NoAuthRequired(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
}

func TestCreatePrompt_StreamsEvents(t *testing.T) {
	f := newFixture(t)
	f.seedKeys(t, "openai", "anthropic", "google")

	req := f.request(http.MethodPost, "/api/prompts",
		`{"prompt": "What is the capital of France?", "providers": ["openai", "anthropic", "google"]}`)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := decodeSSE(t, rec.Body.String())
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, "complete", last.Type)
	assert.NotEmpty(t, last.PromptID)
	require.NotNil(t, last.Summary)
	assert.NotEmpty(t, last.Summary.SummaryText)
	assert.Len(t, last.Summary.OverlapData.Pairs, 3)

	terminal := make(map[string]int)
	var chunks int
	for _, ev := range events {
		switch ev.Type {
		case "chunk":
			chunks++
			assert.NotEmpty(t, ev.Provider)
			assert.NotEmpty(t, ev.Text)
		case "response":
			terminal[ev.Provider]++
			assert.True(t, ev.Done)
		case "error":
			terminal[ev.Provider]++
		}
	}
	assert.Equal(t, map[string]int{"openai": 1, "anthropic": 1, "google": 1}, terminal)
	assert.Equal(t, 6, chunks)
}

func TestCreatePrompt_MissingKeyBecomesErrorEvent(t *testing.T) {
	f := newFixture(t)
	f.seedKeys(t, "openai") // anthropic key intentionally absent

	req := f.request(http.MethodPost, "/api/prompts",
		`{"prompt": "hello", "providers": ["openai", "anthropic"]}`)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	events := decodeSSE(t, rec.Body.String())

	var sawAuthError bool
	for _, ev := range events {
		if ev.Type == "error" && ev.Provider == "anthropic" {
			sawAuthError = true
			assert.Equal(t, "auth", ev.Kind)
		}
	}
	assert.True(t, sawAuthError)

	// One success only: no analysis.
	last := events[len(events)-1]
	assert.Equal(t, "complete", last.Type)
	assert.Nil(t, last.Summary)
	assert.True(t, last.SummaryOmitted)
}

func TestCreatePrompt_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty prompt", `{"prompt": "", "providers": ["openai"]}`},
		{"no providers", `{"prompt": "hello", "providers": []}`},
		{"unknown provider", `{"prompt": "hello", "providers": ["mistral"]}`},
		{"duplicate provider", `{"prompt": "hello", "providers": ["openai", "openai"]}`},
		{"malformed body", `{"prompt": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.request(http.MethodPost, "/api/prompts", tc.body)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetPrompt_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.seedKeys(t, "openai", "anthropic", "google")

	req := f.request(http.MethodPost, "/api/prompts",
		`{"prompt": "What is the capital of France?", "providers": ["openai", "anthropic", "google"]}`)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	events := decodeSSE(t, rec.Body.String())
	promptID := events[len(events)-1].PromptID
	require.NotEmpty(t, promptID)

	req = f.request(http.MethodGet, "/api/prompts/"+promptID, "")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var detail PromptDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, promptID, detail.ID)
	assert.Equal(t, "What is the capital of France?", detail.PromptText)
	require.Len(t, detail.Responses, 3)
	assert.Equal(t, "anthropic", detail.Responses[0].Provider)
	assert.Equal(t, "The capital of France is Paris.", detail.Responses[0].ResponseText)
	assert.GreaterOrEqual(t, detail.Responses[0].ResponseTimeMs, int64(1))
	require.NotNil(t, detail.Summary)
	assert.Len(t, detail.Summary.OverlapData.Pairs, 3)
}

func TestGetPrompt_NotFound(t *testing.T) {
	f := newFixture(t)

	req := f.request(http.MethodGet, "/api/prompts/"+uuid.NewString(), "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPrompt_InvalidID(t *testing.T) {
	f := newFixture(t)

	req := f.request(http.MethodGet, "/api/prompts/not-a-uuid", "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPrompt_OtherUsersPromptHidden(t *testing.T) {
	f := newFixture(t)

	other := model.Prompt{
		ID:        uuid.New(),
		UserID:    uuid.New(), // not f.userID
		Text:      "secret",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.prompts.Create(context.Background(), other))

	req := f.request(http.MethodGet, "/api/prompts/"+other.ID.String(), "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPrompts_TruncatesPreview(t *testing.T) {
	f := newFixture(t)

	long := strings.Repeat("x", 150)
	require.NoError(t, f.prompts.Create(context.Background(), model.Prompt{
		ID: uuid.New(), UserID: f.userID, Text: long, CreatedAt: time.Now().UTC(),
	}))

	req := f.request(http.MethodGet, "/api/prompts", "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var list PromptListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Prompts, 1)
	assert.Equal(t, strings.Repeat("x", 100)+"...", list.Prompts[0].PromptText)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.Limit)
}

func TestListPrompts_PreviewKeepsRuneBoundary(t *testing.T) {
	f := newFixture(t)

	// 50 three-byte runes = 150 bytes; byte 100 falls mid-rune.
	long := strings.Repeat("日", 50)
	require.NoError(t, f.prompts.Create(context.Background(), model.Prompt{
		ID: uuid.New(), UserID: f.userID, Text: long, CreatedAt: time.Now().UTC(),
	}))

	req := f.request(http.MethodGet, "/api/prompts", "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var list PromptListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Prompts, 1)
	preview := list.Prompts[0].PromptText
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, strings.Repeat("日", 33)+"...", preview)
}

func TestListPrompts_Pagination(t *testing.T) {
	f := newFixture(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.prompts.Create(context.Background(), model.Prompt{
			ID:        uuid.New(),
			UserID:    f.userID,
			Text:      "prompt",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	req := f.request(http.MethodGet, "/api/prompts?page=2&limit=2", "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var list PromptListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Prompts, 2)
	assert.Equal(t, 5, list.Total)
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 2, list.Limit)
}

func TestSaveAPIKey(t *testing.T) {
	f := newFixture(t)

	req := f.request(http.MethodPost, "/api/keys", `{"provider": "openai", "api_key": "sk-secret-123"}`)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var status APIKeyStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "openai", status.Provider)
	assert.True(t, status.HasKey)
	assert.NotEmpty(t, status.Fingerprint)

	// The plaintext key never appears in the response.
	assert.NotContains(t, rec.Body.String(), "sk-secret-123")
}

func TestSaveAPIKey_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty key", `{"provider": "openai", "api_key": ""}`, http.StatusBadRequest},
		{"unknown provider", `{"provider": "mistral", "api_key": "sk-1"}`, http.StatusBadRequest},
		{"malformed body", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.request(http.MethodPost, "/api/keys", tc.body)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestSaveAPIKey_VaultDisabled(t *testing.T) {
	f := newFixture(t)
	f.vault.disabled = true

	req := f.request(http.MethodPost, "/api/keys", `{"provider": "openai", "api_key": "sk-1"}`)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListAPIKeys(t *testing.T) {
	f := newFixture(t)
	f.seedKeys(t, "openai")

	req := f.request(http.MethodGet, "/api/keys", "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []APIKeyStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 3)
	assert.Equal(t, "anthropic", statuses[0].Provider)
	assert.False(t, statuses[0].HasKey)
	assert.Equal(t, "google", statuses[1].Provider)
	assert.False(t, statuses[1].HasKey)
	assert.Equal(t, "openai", statuses[2].Provider)
	assert.True(t, statuses[2].HasKey)
	assert.NotEmpty(t, statuses[2].Fingerprint)

	// Stored plaintext never leaves the vault.
	assert.NotContains(t, rec.Body.String(), "sk-openai")
}

func TestDeleteAPIKey(t *testing.T) {
	f := newFixture(t)
	f.seedKeys(t, "openai")

	req := f.request(http.MethodDelete, "/api/keys/openai", "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = f.request(http.MethodGet, "/api/keys", "")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	var statuses []APIKeyStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	for _, status := range statuses {
		assert.False(t, status.HasKey, "provider %s", status.Provider)
	}
}

func TestDeleteAPIKey_UnknownProvider(t *testing.T) {
	f := newFixture(t)

	req := f.request(http.MethodDelete, "/api/keys/mistral", "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
