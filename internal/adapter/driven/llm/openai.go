package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProviderClient = (*OpenAIClient)(nil)

// OpenAIClient streams chat completions from the OpenAI API.
type OpenAIClient struct {
	model string
}

// NewOpenAIClient creates an OpenAIClient issuing requests against the
// given model.
func NewOpenAIClient(model string) *OpenAIClient {
	return &OpenAIClient{model: model}
}

func (c *OpenAIClient) Name() string  { return "openai" }
func (c *OpenAIClient) Model() string { return c.model }

// Invoke starts a streaming chat completion. The SDK client is constructed
// per call because keys are per-user.
func (c *OpenAIClient) Invoke(ctx context.Context, apiKey, prompt string) (driven.ProviderStream, error) {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	stream := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	return &openaiStream{stream: stream}, nil
}

type openaiStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	done   bool
}

func (s *openaiStream) Recv() (model.TextIncrement, error) {
	if s.done {
		return model.TextIncrement{Final: true}, nil
	}
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		final := choice.FinishReason != ""
		if final {
			s.done = true
		}
		if choice.Delta.Content == "" && !final {
			continue
		}
		return model.TextIncrement{Delta: choice.Delta.Content, Final: final}, nil
	}
	if err := s.stream.Err(); err != nil {
		var apierr *openai.Error
		status := 0
		if errors.As(err, &apierr) {
			status = apierr.StatusCode
		}
		return model.TextIncrement{}, classify("openai", status, err)
	}
	// Stream ended without an explicit finish reason; treat as final.
	s.done = true
	return model.TextIncrement{Final: true}, nil
}

func (s *openaiStream) Close() error { return s.stream.Close() }
