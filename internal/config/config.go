// Package config provides configuration loading for sentineld.
//
// Configuration is loaded from a YAML file, then overridden with environment
// variables. Every section has sensible defaults so a bare binary starts with
// the in-memory control plane and the rules advisor.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete sentineld configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Recovery      RecoveryConfig      `koanf:"recovery"`
	Advisor       AdvisorConfig       `koanf:"advisor"`
	Audit         AuditConfig         `koanf:"audit"`
	Automation    AutomationConfig    `koanf:"automation"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
}

// RecoveryConfig holds the error-recovery engine configuration.
type RecoveryConfig struct {
	// DefaultThreshold applies to error classes with no explicit entry.
	DefaultThreshold int `koanf:"default_threshold"`

	// Thresholds maps error classes to explicit occurrence limits.
	Thresholds map[string]int `koanf:"thresholds"`

	// ResetInterval is the width of the global counter window.
	ResetInterval time.Duration `koanf:"reset_interval"`

	// CollaboratorTimeout bounds each advisory and control-plane call.
	CollaboratorTimeout time.Duration `koanf:"collaborator_timeout"`

	// RecentErrorsLimit caps per-service report history in snapshots.
	RecentErrorsLimit int `koanf:"recent_errors_limit"`
}

// AdvisorConfig holds the LLM advisor configuration.
type AdvisorConfig struct {
	// Enabled switches between the LLM advisor and the rules table.
	Enabled bool `koanf:"enabled"`

	BaseURL         string        `koanf:"base_url"`
	Model           string        `koanf:"model"`
	APIKey          string        `koanf:"api_key"`
	MaxRetries      int           `koanf:"max_retries"`
	RetryBaseDelay  time.Duration `koanf:"retry_base_delay"`
	FallbackToRules bool          `koanf:"fallback_to_rules"`
}

// AuditConfig holds the audit trail configuration. An empty URL selects the
// log-backed trail.
type AuditConfig struct {
	NATSURL string `koanf:"nats_url"`
}

// AutomationConfig holds the Temporal automation configuration.
type AutomationConfig struct {
	Enabled   bool   `koanf:"enabled"`
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if c.Recovery.DefaultThreshold <= 0 {
		return errors.New("recovery default threshold must be positive")
	}
	for class, limit := range c.Recovery.Thresholds {
		if class == "" {
			return errors.New("recovery threshold error class cannot be empty")
		}
		if limit <= 0 {
			return fmt.Errorf("recovery threshold for %q must be positive, got %d", class, limit)
		}
	}
	if c.Recovery.ResetInterval <= 0 {
		return errors.New("recovery reset interval must be positive")
	}
	if c.Recovery.CollaboratorTimeout <= 0 {
		return errors.New("recovery collaborator timeout must be positive")
	}

	if c.Advisor.Enabled {
		if c.Advisor.BaseURL == "" {
			return errors.New("advisor base_url required when advisor is enabled")
		}
		if c.Advisor.Model == "" {
			return errors.New("advisor model required when advisor is enabled")
		}
	}

	if c.Automation.Enabled && c.Automation.HostPort == "" {
		return errors.New("automation host_port required when automation is enabled")
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "sentineld"
	}

	if cfg.Recovery.DefaultThreshold == 0 {
		cfg.Recovery.DefaultThreshold = 10
	}
	if cfg.Recovery.ResetInterval == 0 {
		cfg.Recovery.ResetInterval = 5 * time.Minute
	}
	if cfg.Recovery.CollaboratorTimeout == 0 {
		cfg.Recovery.CollaboratorTimeout = 30 * time.Second
	}
	if cfg.Recovery.RecentErrorsLimit == 0 {
		cfg.Recovery.RecentErrorsLimit = 20
	}

	if cfg.Advisor.Model == "" {
		cfg.Advisor.Model = "gpt-4o-mini"
	}
	if cfg.Advisor.MaxRetries == 0 {
		cfg.Advisor.MaxRetries = 3
	}
	if cfg.Advisor.RetryBaseDelay == 0 {
		cfg.Advisor.RetryBaseDelay = 500 * time.Millisecond
	}

	if cfg.Automation.Namespace == "" {
		cfg.Automation.Namespace = "default"
	}
	if cfg.Automation.TaskQueue == "" {
		cfg.Automation.TaskQueue = "sentineld-remediation"
	}
}
