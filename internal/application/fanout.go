package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// ValidationError rejects a malformed fan-out request before any dispatch.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// mergedEvent is what provider units send into the merge point: the
// client-facing event plus the bookkeeping the writer lane needs.
type mergedEvent struct {
	ev          model.StreamEvent
	responseID  uuid.UUID
	accumulated string
	elapsedMs   int64
}

// FanoutService is the fan-out coordinator. Run dispatches one prompt to N
// providers concurrently, merges their streams into one ordered event
// sequence, persists results incrementally, and triggers analysis when
// every provider reaches a terminal state.
type FanoutService struct {
	vault     driven.CredentialVault
	registry  driven.ProviderRegistry
	prompts   driven.PromptStore
	responses driven.ResponseStore
	summaries driven.SummaryStore
	analyzer  *Analyzer
	timeout   time.Duration
	logger    *slog.Logger
}

// NewFanoutService creates a FanoutService with all required dependencies.
// timeout is the per-provider call deadline.
func NewFanoutService(
	vault driven.CredentialVault,
	registry driven.ProviderRegistry,
	prompts driven.PromptStore,
	responses driven.ResponseStore,
	summaries driven.SummaryStore,
	analyzer *Analyzer,
	timeout time.Duration,
	logger *slog.Logger,
) *FanoutService {
	return &FanoutService{
		vault:     vault,
		registry:  registry,
		prompts:   prompts,
		responses: responses,
		summaries: summaries,
		analyzer:  analyzer,
		timeout:   timeout,
		logger:    logger,
	}
}

// Providers returns the known provider ids.
func (s *FanoutService) Providers() []string {
	return s.registry.Names()
}

// Run validates the request, persists the prompt, and starts the fan-out.
// The returned channel yields chunk/response/error events in arrival order
// followed by exactly one complete event, then closes.
//
// ctx is the client's cancellation token: it stops event delivery only.
// In-flight provider calls and persistence continue on a detached context
// so a disconnected client can still recover final state later.
func (s *FanoutService) Run(ctx context.Context, userID uuid.UUID, promptText string, providerNames []string) (uuid.UUID, <-chan model.StreamEvent, error) {
	if strings.TrimSpace(promptText) == "" {
		return uuid.Nil, nil, &ValidationError{Message: "prompt text is required"}
	}
	if len(providerNames) == 0 {
		return uuid.Nil, nil, &ValidationError{Message: "at least one provider must be selected"}
	}
	clients := make([]driven.ProviderClient, 0, len(providerNames))
	seen := make(map[string]bool, len(providerNames))
	for _, name := range providerNames {
		if seen[name] {
			return uuid.Nil, nil, &ValidationError{Message: fmt.Sprintf("duplicate provider: %s", name)}
		}
		seen[name] = true
		client, ok := s.registry.Lookup(name)
		if !ok {
			return uuid.Nil, nil, &ValidationError{Message: fmt.Sprintf("unknown provider: %s", name)}
		}
		clients = append(clients, client)
	}

	// The run must survive a client disconnect; only event delivery is
	// tied to the caller's context.
	runCtx := context.WithoutCancel(ctx)

	prompt := model.Prompt{
		ID:        uuid.New(),
		UserID:    userID,
		Text:      promptText,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.prompts.Create(runCtx, prompt); err != nil {
		return uuid.Nil, nil, fmt.Errorf("persist prompt: %w", err)
	}

	merged := make(chan mergedEvent, 32)
	out := make(chan model.StreamEvent, 32)

	go s.dispatch(runCtx, prompt, userID, clients, merged)
	go s.forward(runCtx, ctx, prompt.ID, merged, out)

	return prompt.ID, out, nil
}

// dispatch resolves a key per provider, launches provider units, and
// closes the merge channel once all units finish.
func (s *FanoutService) dispatch(ctx context.Context, prompt model.Prompt, userID uuid.UUID, clients []driven.ProviderClient, merged chan<- mergedEvent) {
	var wg sync.WaitGroup
	for _, client := range clients {
		resp := model.ProviderResponse{
			ID:        uuid.New(),
			PromptID:  prompt.ID,
			Provider:  client.Name(),
			ModelUsed: client.Model(),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.responses.Create(ctx, resp); err != nil {
			// Degraded storage must not block emission to the client.
			s.logger.Error("create response row failed", "provider", client.Name(), "prompt_id", prompt.ID, "error", err)
		}

		apiKey, err := s.vault.Decrypt(ctx, userID, client.Name())
		if err != nil {
			merged <- mergedEvent{
				ev: model.StreamEvent{
					Type:     model.EventError,
					Provider: client.Name(),
					Kind:     vaultErrorKind(err),
					Message:  vaultErrorMessage(client.Name(), err),
				},
				responseID: resp.ID,
			}
			continue
		}

		wg.Add(1)
		go func(client driven.ProviderClient, respID uuid.UUID) {
			defer wg.Done()
			s.runProvider(ctx, client, apiKey, prompt.Text, respID, merged)
		}(client, resp.ID)
	}
	wg.Wait()
	close(merged)
}

// runProvider is one unit of work: a single provider call streaming into
// the merge point. It emits exactly one terminal event.
func (s *FanoutService) runProvider(ctx context.Context, client driven.ProviderClient, apiKey, prompt string, respID uuid.UUID, merged chan<- mergedEvent) {
	start := time.Now()
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := client.Name()
	fail := func(err error) {
		perr, ok := driven.AsProviderError(err)
		if !ok {
			perr = &driven.ProviderError{Provider: name, Kind: driven.ProviderErrUnknown, Message: err.Error(), Cause: err}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			perr.Kind = driven.ProviderErrTimeout
		}
		merged <- mergedEvent{
			ev: model.StreamEvent{
				Type:     model.EventError,
				Provider: name,
				Kind:     string(perr.Kind),
				Message:  perr.Message,
			},
			responseID: respID,
		}
	}

	stream, err := client.Invoke(pctx, apiKey, prompt)
	if err != nil {
		fail(err)
		return
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			s.logger.Debug("provider stream close failed", "provider", name, "error", cerr)
		}
	}()

	var buf strings.Builder
	for {
		inc, err := stream.Recv()
		if err != nil {
			fail(err)
			return
		}
		if inc.Delta != "" {
			buf.WriteString(inc.Delta)
			merged <- mergedEvent{
				ev:          model.StreamEvent{Type: model.EventChunk, Provider: name, Text: inc.Delta},
				responseID:  respID,
				accumulated: buf.String(),
			}
		}
		if inc.Final {
			elapsed := time.Since(start).Milliseconds()
			if elapsed < 1 {
				elapsed = 1
			}
			merged <- mergedEvent{
				ev: model.StreamEvent{
					Type:     model.EventResponse,
					Provider: name,
					Text:     buf.String(),
					Done:     true,
				},
				responseID:  respID,
				accumulated: buf.String(),
				elapsedMs:   elapsed,
			}
			return
		}
	}
}

// forward is the single writer lane per prompt: it persists every merged
// event in arrival order and forwards it to the client channel. A client
// disconnect (clientCtx done) stops forwarding but never persistence.
func (s *FanoutService) forward(runCtx, clientCtx context.Context, promptID uuid.UUID, merged <-chan mergedEvent, out chan<- model.StreamEvent) {
	defer close(out)

	clientGone := false
	emit := func(ev model.StreamEvent) {
		if clientGone {
			return
		}
		select {
		case out <- ev:
		case <-clientCtx.Done():
			clientGone = true
			s.logger.Info("client disconnected, continuing run for persistence", "prompt_id", promptID)
		}
	}

	var succeeded []ProviderText

	for me := range merged {
		switch me.ev.Type {
		case model.EventChunk:
			if err := s.responses.UpdateText(runCtx, me.responseID, me.accumulated); err != nil {
				s.logger.Error("persist chunk failed", "prompt_id", promptID, "provider", me.ev.Provider, "error", err)
			}
		case model.EventResponse:
			if err := s.responses.Finalize(runCtx, me.responseID, me.ev.Text, me.elapsedMs); err != nil {
				s.logger.Error("finalize response failed", "prompt_id", promptID, "provider", me.ev.Provider, "error", err)
			}
			succeeded = append(succeeded, ProviderText{Provider: me.ev.Provider, Text: me.ev.Text})
		case model.EventError:
			if err := s.responses.MarkError(runCtx, me.responseID, me.ev.Message); err != nil {
				s.logger.Error("persist error failed", "prompt_id", promptID, "provider", me.ev.Provider, "error", err)
			}
		}
		emit(me.ev)
	}

	complete := model.StreamEvent{Type: model.EventComplete, PromptID: promptID}
	if result := s.analyzer.Analyze(succeeded); result != nil {
		summary := model.Summary{
			ID:          uuid.New(),
			PromptID:    promptID,
			SummaryText: result.SummaryText,
			Overlap:     result.Overlap,
			Outliers:    result.Outliers,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.summaries.Create(runCtx, summary); err != nil {
			s.logger.Error("persist summary failed", "prompt_id", promptID, "error", err)
		}
		complete.Summary = &summary
	} else {
		complete.SummaryOmitted = true
	}
	emit(complete)
}

// vaultErrorKind maps vault failures onto the provider error taxonomy so
// the client sees one consistent error shape.
func vaultErrorKind(err error) string {
	if errors.Is(err, driven.ErrCredentialNotFound) {
		return string(driven.ProviderErrAuth)
	}
	if errors.Is(err, driven.ErrDecryptFailure) || errors.Is(err, driven.ErrMasterKeyNotSet) {
		return string(driven.ProviderErrAuth)
	}
	return string(driven.ProviderErrUnknown)
}

// vaultErrorMessage renders a user-facing message for a vault failure
// without leaking key material.
func vaultErrorMessage(provider string, err error) string {
	switch {
	case errors.Is(err, driven.ErrCredentialNotFound):
		return fmt.Sprintf("no API key configured for %s", provider)
	case errors.Is(err, driven.ErrDecryptFailure):
		return fmt.Sprintf("failed to decrypt API key for %s", provider)
	case errors.Is(err, driven.ErrMasterKeyNotSet):
		return "credential vault is not configured"
	default:
		return fmt.Sprintf("credential lookup failed for %s", provider)
	}
}
