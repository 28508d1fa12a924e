package config

import (
	"crypto/sha256"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every PROMPTPANEL_ env var that Load() reads.
var allConfigKeys = []string{
	"PROMPTPANEL_LISTEN_ADDR",
	"PROMPTPANEL_DB_PATH",
	"PROMPTPANEL_MASTER_KEY",
	"PROMPTPANEL_PROVIDER_TIMEOUT",
	"PROMPTPANEL_OUTLIER_MARGIN",
	"PROMPTPANEL_OPENAI_MODEL",
	"PROMPTPANEL_ANTHROPIC_MODEL",
	"PROMPTPANEL_GOOGLE_MODEL",
}

// isolateConfigEnv saves and unsets all PROMPTPANEL_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PROMPTPANEL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("PROMPTPANEL_DB_PATH", "/tmp/test.db")
	t.Setenv("PROMPTPANEL_MASTER_KEY", "swordfish")
	t.Setenv("PROMPTPANEL_PROVIDER_TIMEOUT", "30s")
	t.Setenv("PROMPTPANEL_OUTLIER_MARGIN", "0.4")
	t.Setenv("PROMPTPANEL_OPENAI_MODEL", "gpt-4o")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 0.4, cfg.OutlierMargin)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "promptpanel.db", cfg.DBPath)
	assert.Equal(t, 120*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 0.25, cfg.OutlierMargin)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.AnthropicModel)
	assert.Equal(t, "gemini-2.0-flash", cfg.GoogleModel)
}

// TestLoad_MasterKey_Absent verifies that a missing master key does not cause
// an error; the vault is simply disabled.
func TestLoad_MasterKey_Absent(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Nil(t, cfg.MasterKey)
	assert.False(t, cfg.HasMasterKey())
}

func TestLoad_MasterKey_Derived(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PROMPTPANEL_MASTER_KEY", "correct horse battery staple")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Len(t, cfg.MasterKey, 32)
	assert.True(t, cfg.HasMasterKey())

	want := sha256.Sum256([]byte("correct horse battery staple"))
	assert.Equal(t, want[:], cfg.MasterKey)
}

func TestLoad_InvalidProviderTimeout(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PROMPTPANEL_PROVIDER_TIMEOUT", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROMPTPANEL_PROVIDER_TIMEOUT")
}

func TestLoad_OutlierMargin_OutOfRange(t *testing.T) {
	isolateConfigEnv(t)

	for _, bad := range []string{"0", "1", "-0.3", "1.5", "banana"} {
		t.Setenv("PROMPTPANEL_OUTLIER_MARGIN", bad)

		cfg, err := Load()

		assert.Nil(t, cfg, "margin %q should be rejected", bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PROMPTPANEL_OUTLIER_MARGIN")
	}
}
