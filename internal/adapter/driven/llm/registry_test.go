package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry("gpt-4o-mini", "claude-3-5-haiku-latest", "gemini-2.0-flash")

	assert.Equal(t, []string{"anthropic", "google", "openai"}, r.Names())
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry("gpt-4o-mini", "claude-3-5-haiku-latest", "gemini-2.0-flash")

	client, ok := r.Lookup("openai")
	require.True(t, ok)
	assert.Equal(t, "openai", client.Name())
	assert.Equal(t, "gpt-4o-mini", client.Model())

	client, ok = r.Lookup("anthropic")
	require.True(t, ok)
	assert.Equal(t, "claude-3-5-haiku-latest", client.Model())

	client, ok = r.Lookup("google")
	require.True(t, ok)
	assert.Equal(t, "gemini-2.0-flash", client.Model())

	_, ok = r.Lookup("mistral")
	assert.False(t, ok)
}
