package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/ericfisherdev/promptpanel/internal/domain/model"
	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// anthropicMaxTokens caps completion length for comparison runs.
const anthropicMaxTokens = 1024

// Compile-time interface satisfaction check.
var _ driven.ProviderClient = (*AnthropicClient)(nil)

// AnthropicClient streams messages from the Anthropic API.
type AnthropicClient struct {
	model string
}

// NewAnthropicClient creates an AnthropicClient issuing requests against
// the given model.
func NewAnthropicClient(model string) *AnthropicClient {
	return &AnthropicClient{model: model}
}

func (c *AnthropicClient) Name() string  { return "anthropic" }
func (c *AnthropicClient) Model() string { return c.model }

// Invoke starts a streaming message. The SDK client is constructed per
// call because keys are per-user.
func (c *AnthropicClient) Invoke(ctx context.Context, apiKey, prompt string) (driven.ProviderStream, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	stream := client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	return &anthropicStream{stream: stream}, nil
}

type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	done   bool
}

func (s *anthropicStream) Recv() (model.TextIncrement, error) {
	if s.done {
		return model.TextIncrement{Final: true}, nil
	}
	for s.stream.Next() {
		event := s.stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				return model.TextIncrement{Delta: delta.Text}, nil
			}
		case anthropic.MessageStopEvent:
			s.done = true
			return model.TextIncrement{Final: true}, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		var apierr *anthropic.Error
		status := 0
		if errors.As(err, &apierr) {
			status = apierr.StatusCode
		}
		return model.TextIncrement{}, classify("anthropic", status, err)
	}
	// Connection closed without a message_stop event; treat as final.
	s.done = true
	return model.TextIncrement{Final: true}, nil
}

func (s *anthropicStream) Close() error { return s.stream.Close() }
