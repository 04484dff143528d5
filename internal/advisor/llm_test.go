package advisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sentineld/internal/recovery"
)

// fakeModel replays canned responses or errors in call order. The last entry
// repeats once the script runs out.
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (f *fakeModel) step() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	text, err := f.step()
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}, nil
}

func (f *fakeModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return f.step()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://localhost:1234/v1"
	cfg.MaxRetries = 2
	cfg.RetryBaseDelay = time.Millisecond
	cfg.FallbackToRules = false
	return cfg
}

func testReport() *recovery.ErrorReport {
	return &recovery.ErrorReport{ServiceID: "payments", ErrorClass: "503"}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "base_url required")

	cfg.BaseURL = "http://localhost:1234/v1"
	require.NoError(t, cfg.Validate())

	cfg.Model = ""
	require.Error(t, cfg.Validate(), "model required")
}

func TestLLM_Suggest(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{"action": "service_failover", "failover_target": "payments-backup", "reason": "primary unhealthy"}`,
	}}
	l := NewLLMWithModel(model, testConfig(), zap.NewNop())

	plan, err := l.Suggest(context.Background(), &recovery.SystemSnapshot{ServiceID: "payments"}, testReport())

	require.NoError(t, err)
	assert.Equal(t, recovery.ActionServiceFailover, plan.Action)
	assert.Equal(t, "payments-backup", plan.FailoverTarget)
	assert.Equal(t, 1, model.callCount())
}

func TestLLM_Suggest_RetriesTransientFailure(t *testing.T) {
	model := &fakeModel{
		errs: []error{errors.New("rate limited"), nil},
		responses: []string{
			"",
			`{"action": "service_restart", "reason": "upstream fault"}`,
		},
	}
	l := NewLLMWithModel(model, testConfig(), zap.NewNop())

	plan, err := l.Suggest(context.Background(), nil, testReport())

	require.NoError(t, err)
	assert.Equal(t, recovery.ActionServiceRestart, plan.Action)
	assert.Equal(t, 2, model.callCount())
}

func TestLLM_Suggest_ExhaustedRetriesError(t *testing.T) {
	model := &fakeModel{errs: []error{
		errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	l := NewLLMWithModel(model, testConfig(), zap.NewNop())

	plan, err := l.Suggest(context.Background(), nil, testReport())

	require.Error(t, err)
	assert.Nil(t, plan)
	assert.Equal(t, 3, model.callCount(), "initial attempt plus two retries")
}

func TestLLM_Suggest_FallsBackToRules(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackToRules = true
	model := &fakeModel{errs: []error{
		errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	l := NewLLMWithModel(model, cfg, zap.NewNop())

	plan, err := l.Suggest(context.Background(), nil, testReport())

	require.NoError(t, err)
	assert.Equal(t, recovery.ActionServiceRestart, plan.Action, "503 maps to restart in the rules table")
}

func TestLLM_Suggest_RetriesUnknownAction(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{"action": "summon_oncall", "reason": "??"}`,
		`{"action": "token_refresh", "reason": "expired"}`,
	}}
	l := NewLLMWithModel(model, testConfig(), zap.NewNop())

	plan, err := l.Suggest(context.Background(), nil, testReport())

	require.NoError(t, err)
	assert.Equal(t, recovery.ActionTokenRefresh, plan.Action)
	assert.Equal(t, 2, model.callCount())
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantAction recovery.PlanAction
		wantErr    bool
	}{
		{
			name:       "bare JSON",
			response:   `{"action": "service_restart", "reason": "fault"}`,
			wantAction: recovery.ActionServiceRestart,
		},
		{
			name:       "fenced JSON",
			response:   "```json\n{\"action\": \"token_refresh\"}\n```",
			wantAction: recovery.ActionTokenRefresh,
		},
		{
			name:       "fence without language tag",
			response:   "```\n{\"action\": \"endpoint_discovery\"}\n```",
			wantAction: recovery.ActionEndpointDiscovery,
		},
		{
			name:       "prose around the object",
			response:   `Here is my recommendation: {"action": "service_failover", "failover_target": "b"} Hope that helps!`,
			wantAction: recovery.ActionServiceFailover,
		},
		{
			name: "rate limit payload",
			response: `{"action": "apply_rate_limiting",
				"rate_limits": {"requests_per_second": 50, "burst": 10}}`,
			wantAction: recovery.ActionApplyRateLimiting,
		},
		{
			name:     "no JSON at all",
			response: "I cannot help with that.",
			wantErr:  true,
		},
		{
			name:     "malformed JSON",
			response: `{"action": "service_restart"`,
			wantErr:  true,
		},
		{
			name:     "unknown action",
			response: `{"action": "page_human"}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := parsePlan(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, plan.Action)
		})
	}
}

func TestRules_Suggest(t *testing.T) {
	tests := []struct {
		errorClass string
		wantAction recovery.PlanAction
	}{
		{"401", recovery.ActionTokenRefresh},
		{"unauthorized", recovery.ActionTokenRefresh},
		{"404", recovery.ActionEndpointDiscovery},
		{"503", recovery.ActionServiceRestart},
		{"quota_exceeded", recovery.ActionServiceRestart},
	}

	rules := NewRules()
	for _, tt := range tests {
		t.Run(tt.errorClass, func(t *testing.T) {
			plan, err := rules.Suggest(context.Background(), nil, &recovery.ErrorReport{
				ServiceID:  "svcA",
				ErrorClass: tt.errorClass,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, plan.Action)
			assert.NotEmpty(t, plan.Reason)
		})
	}
}
