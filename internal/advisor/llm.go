package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sentineld/internal/recovery"
)

const systemPrompt = `You are a site-reliability remediation planner. Given a service's
error report and a system snapshot, respond with exactly one JSON object and
nothing else:

{"action": "<one of: token_refresh, security_lockdown, endpoint_discovery,
service_migration, service_restart, service_failover, apply_rate_limiting>",
"target_service": "<optional, for service_migration>",
"failover_target": "<optional, for service_failover>",
"rate_limits": {"requests_per_second": 0, "burst": 0},
"reason": "<one sentence>"}

Omit optional fields you do not need. Prefer the least disruptive action that
addresses the failure.`

// LLM is a recovery advisor backed by an OpenAI-compatible chat model.
type LLM struct {
	model    llms.Model
	config   Config
	fallback recovery.Advisor
	logger   *zap.Logger
}

// NewLLM creates an LLM advisor from configuration.
func NewLLM(cfg Config, logger *zap.Logger) (*LLM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for local endpoints.
		apiKey = "placeholder"
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	return NewLLMWithModel(model, cfg, logger), nil
}

// NewLLMWithModel creates an LLM advisor around an existing model, which lets
// tests substitute a fake.
func NewLLMWithModel(model llms.Model, cfg Config, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultConfig().RetryBaseDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	l := &LLM{
		model:  model,
		config: cfg,
		logger: logger,
	}
	if cfg.FallbackToRules {
		l.fallback = NewRules()
	}
	return l
}

// Suggest asks the model for a plan, retrying transient failures. With
// FallbackToRules enabled a dead or incoherent model degrades to the rules
// table instead of failing the remediation sequence.
func (l *LLM) Suggest(ctx context.Context, snapshot *recovery.SystemSnapshot, report *recovery.ErrorReport) (*recovery.RecoveryPlan, error) {
	prompt, err := buildPrompt(snapshot, report)
	if err != nil {
		return nil, fmt.Errorf("building prompt: %w", err)
	}

	plan, err := l.consult(ctx, prompt)
	if err != nil {
		if l.fallback != nil {
			l.logger.Warn("model consultation failed, falling back to rules",
				zap.String("service_id", report.ServiceID),
				zap.Error(err),
			)
			return l.fallback.Suggest(ctx, snapshot, report)
		}
		return nil, err
	}
	return plan, nil
}

func (l *LLM) consult(ctx context.Context, prompt string) (*recovery.RecoveryPlan, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(l.config.RetryBaseDelay)),
		uint64(l.config.MaxRetries),
	), ctx)

	var plan *recovery.RecoveryPlan
	operation := func() error {
		response, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt,
			llms.WithTemperature(0),
		)
		if err != nil {
			return fmt.Errorf("generating plan: %w", err)
		}
		parsed, err := parsePlan(response)
		if err != nil {
			// An unparseable response is a model problem worth one retry,
			// not a permanent condition.
			return err
		}
		plan = parsed
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return plan, nil
}

func buildPrompt(snapshot *recovery.SystemSnapshot, report *recovery.ErrorReport) (string, error) {
	payload := map[string]any{
		"report":   report,
		"snapshot": snapshot,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nIncident:\n")
	b.Write(encoded)
	return b.String(), nil
}

// parsePlan extracts and validates the JSON plan from a model response,
// tolerating markdown code fences and surrounding prose.
func parsePlan(response string) (*recovery.RecoveryPlan, error) {
	text := stripCodeFence(response)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var plan recovery.RecoveryPlan
	if err := json.Unmarshal([]byte(text[start:end+1]), &plan); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if !plan.Action.Valid() {
		return nil, fmt.Errorf("model suggested unknown action %q", plan.Action)
	}
	return &plan, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
