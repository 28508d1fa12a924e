package llm

import (
	"context"
	"errors"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProviderClient = (*GoogleClient)(nil)

// GoogleClient streams generated content from the Gemini API.
type GoogleClient struct {
	model string
}

// NewGoogleClient creates a GoogleClient issuing requests against the
// given model.
func NewGoogleClient(model string) *GoogleClient {
	return &GoogleClient{model: model}
}

func (c *GoogleClient) Name() string  { return "google" }
func (c *GoogleClient) Model() string { return c.model }

// Invoke starts a streaming generation. The genai client is constructed
// per call because keys are per-user.
func (c *GoogleClient) Invoke(ctx context.Context, apiKey, prompt string) (driven.ProviderStream, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, classify("google", 0, err)
	}

	contents := []*genai.Content{
		{Parts: []*genai.Part{{Text: prompt}}, Role: "user"},
	}
	seq := client.Models.GenerateContentStream(ctx, c.model, contents, nil)
	next, stop := iter.Pull2(seq)
	return &googleStream{next: next, stop: stop}, nil
}

type googleStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
	done bool
}

func (s *googleStream) Recv() (model.TextIncrement, error) {
	if s.done {
		return model.TextIncrement{Final: true}, nil
	}
	for {
		chunk, err, ok := s.next()
		if !ok {
			s.done = true
			return model.TextIncrement{Final: true}, nil
		}
		if err != nil {
			status := 0
			var apierr genai.APIError
			if errors.As(err, &apierr) {
				status = apierr.Code
			}
			return model.TextIncrement{}, classify("google", status, err)
		}
		if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range chunk.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		if sb.Len() == 0 {
			continue
		}
		return model.TextIncrement{Delta: sb.String()}, nil
	}
}

func (s *googleStream) Close() error {
	s.stop()
	return nil
}
