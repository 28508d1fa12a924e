// Package config loads application configuration from environment variables.
package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	// MasterKey is the 32-byte AES-256 key protecting stored provider API
	// keys, derived from PROMPTPANEL_MASTER_KEY. Nil when unset; the vault
	// is then disabled and key storage endpoints return an error.
	MasterKey []byte

	// ProviderTimeout is the per-provider call deadline. Expiry surfaces
	// to the client as a timeout error for that provider only.
	ProviderTimeout time.Duration

	// OutlierMargin is how far below the overlap mean a provider's average
	// similarity must fall to be flagged as an outlier.
	OutlierMargin float64

	OpenAIModel    string
	AnthropicModel string
	GoogleModel    string
}

// HasMasterKey returns true when a vault master key is configured.
func (c *Config) HasMasterKey() bool {
	return c.MasterKey != nil
}

// Load reads configuration from environment variables and returns a validated
// Config. PROMPTPANEL_MASTER_KEY is optional; if absent, the app starts but
// credential storage and provider dispatch fail until it is set. Optional
// variables with defaults: PROMPTPANEL_LISTEN_ADDR (127.0.0.1:8080),
// PROMPTPANEL_DB_PATH (promptpanel.db), PROMPTPANEL_PROVIDER_TIMEOUT (120s),
// PROMPTPANEL_OUTLIER_MARGIN (0.25), and the per-provider model overrides.
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("PROMPTPANEL_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "promptpanel.db"
	if v, ok := os.LookupEnv("PROMPTPANEL_DB_PATH"); ok {
		dbPath = v
	}

	// The raw secret can be any non-empty string; it is hashed down to a
	// uniform 32-byte AES key.
	var masterKey []byte
	if v := os.Getenv("PROMPTPANEL_MASTER_KEY"); v != "" {
		sum := sha256.Sum256([]byte(v))
		masterKey = sum[:]
	}

	providerTimeout := 120 * time.Second
	if v, ok := os.LookupEnv("PROMPTPANEL_PROVIDER_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PROMPTPANEL_PROVIDER_TIMEOUT has invalid duration %q: %w", v, err)
		}
		providerTimeout = parsed
	}

	outlierMargin := 0.25
	if v, ok := os.LookupEnv("PROMPTPANEL_OUTLIER_MARGIN"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed >= 1 {
			return nil, fmt.Errorf("PROMPTPANEL_OUTLIER_MARGIN must be a float in (0, 1), got %q", v)
		}
		outlierMargin = parsed
	}

	openaiModel := "gpt-4o-mini"
	if v, ok := os.LookupEnv("PROMPTPANEL_OPENAI_MODEL"); ok {
		openaiModel = v
	}

	anthropicModel := "claude-3-5-haiku-latest"
	if v, ok := os.LookupEnv("PROMPTPANEL_ANTHROPIC_MODEL"); ok {
		anthropicModel = v
	}

	googleModel := "gemini-2.0-flash"
	if v, ok := os.LookupEnv("PROMPTPANEL_GOOGLE_MODEL"); ok {
		googleModel = v
	}

	return &Config{
		ListenAddr:      listenAddr,
		DBPath:          dbPath,
		MasterKey:       masterKey,
		ProviderTimeout: providerTimeout,
		OutlierMargin:   outlierMargin,
		OpenAIModel:     openaiModel,
		AnthropicModel:  anthropicModel,
		GoogleModel:     googleModel,
	}, nil
}
