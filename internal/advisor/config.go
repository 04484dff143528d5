package advisor

import (
	"fmt"
	"time"
)

// Config configures the LLM advisor.
type Config struct {
	// BaseURL is the OpenAI-compatible chat endpoint.
	BaseURL string `koanf:"base_url"`

	// Model is the model identifier sent with each request.
	Model string `koanf:"model"`

	// APIKey authenticates against the endpoint. Optional for local
	// OpenAI-compatible servers.
	APIKey string `koanf:"api_key"`

	// MaxRetries bounds retry attempts for transient provider failures
	// (default: 3).
	MaxRetries int `koanf:"max_retries"`

	// RetryBaseDelay is the initial backoff delay (default: 500ms).
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// FallbackToRules degrades to the deterministic rules table when the
	// provider fails or returns an unparseable plan.
	FallbackToRules bool `koanf:"fallback_to_rules"`
}

// DefaultConfig returns the default advisor configuration.
func DefaultConfig() Config {
	return Config{
		Model:           "gpt-4o-mini",
		MaxRetries:      3,
		RetryBaseDelay:  500 * time.Millisecond,
		FallbackToRules: true,
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}
