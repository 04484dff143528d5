package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testHarness struct {
	svc        Service
	advisor    *fakeAdvisor
	creds      *fakeCredentials
	registry   *fakeRegistry
	automation *fakeAutomation
	audit      *fakeAudit
}

func newTestService(t *testing.T, cfg *Config, advisor *fakeAdvisor) *testHarness {
	t.Helper()

	h := &testHarness{
		advisor:    advisor,
		creds:      &fakeCredentials{},
		registry:   &fakeRegistry{},
		automation: &fakeAutomation{},
		audit:      &fakeAudit{},
	}
	svc, err := NewService(cfg, Collaborators{
		Advisor:     h.advisor,
		Credentials: h.creds,
		Registry:    h.registry,
		Automation:  h.automation,
		Audit:       h.audit,
		Snapshots:   &fakeSnapshots{connected: []string{"gateway"}, credential: "active"},
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	h.svc = svc
	return h
}

func TestNewService_RequiresAdvisor(t *testing.T) {
	_, err := NewService(nil, Collaborators{}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorContains(t, err, "advisor")
}

func TestNewService_RejectsBadSeedThreshold(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": -1}

	_, err := NewService(cfg, Collaborators{Advisor: &fakeAdvisor{}}, zap.NewNop())
	require.Error(t, err)
}

func TestService_Report_ValidatesInput(t *testing.T) {
	h := newTestService(t, nil, &fakeAdvisor{})

	tests := []struct {
		name   string
		report *ErrorReport
	}{
		{name: "nil report", report: nil},
		{name: "missing service id", report: &ErrorReport{ErrorClass: "503"}},
		{name: "missing error class", report: &ErrorReport{ServiceID: "svcA"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := h.svc.Report(context.Background(), tt.report)
			require.NotNil(t, out)
			assert.Equal(t, OutcomeNoAction, out.Action)
			assert.False(t, out.Recovered)
		})
	}
	assert.Zero(t, h.advisor.callCount())
}

func TestService_Report_BelowThresholdOnlyLogs(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 3}
	h := newTestService(t, cfg, &fakeAdvisor{plan: &RecoveryPlan{Action: ActionServiceRestart}})

	report := &ErrorReport{ServiceID: "svcA", ErrorClass: "503"}
	for i := 0; i < 2; i++ {
		out := h.svc.Report(context.Background(), report)
		assert.Equal(t, OutcomeLogged, out.Action)
		assert.False(t, out.Recovered)
	}

	assert.Zero(t, h.advisor.callCount(), "advisor consulted only on crossing")
	assert.Empty(t, h.registry.calledWith())
	assert.Empty(t, h.audit.recorded())
}

func TestService_Report_ThresholdCrossingTriggersRecovery(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"401": 3}
	h := newTestService(t, cfg, &fakeAdvisor{
		plan: &RecoveryPlan{Action: ActionTokenRefresh, Reason: "token expired"},
	})

	report := &ErrorReport{ServiceID: "payments", ErrorClass: "401"}
	h.svc.Report(context.Background(), report)
	h.svc.Report(context.Background(), report)
	out := h.svc.Report(context.Background(), report)

	assert.True(t, out.Recovered)
	assert.Equal(t, "token_refreshed", out.Action)
	assert.Equal(t, 1, h.advisor.callCount())
	assert.Equal(t, []string{"payments"}, h.creds.rotations())
	assert.Equal(t, []string{AuditInitiated, AuditSuccess}, h.audit.statuses())
}

func TestService_Report_CounterResetsOnCrossing(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"401": 3}
	h := newTestService(t, cfg, &fakeAdvisor{
		plan: &RecoveryPlan{Action: ActionTokenRefresh},
	})

	// Seven reports against a threshold of three yield exactly two
	// remediation sequences: crossings at the third and sixth report.
	report := &ErrorReport{ServiceID: "payments", ErrorClass: "401"}
	for i := 0; i < 7; i++ {
		h.svc.Report(context.Background(), report)
	}

	assert.Equal(t, 2, h.advisor.callCount())
	assert.Equal(t, []string{"payments", "payments"}, h.creds.rotations())

	status := h.svc.Status(context.Background())
	assert.Equal(t, uint64(1), status.Counters["payments:401"], "seventh report opens a new window")
}

func TestService_Report_Failover(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 1}
	h := newTestService(t, cfg, &fakeAdvisor{
		plan: &RecoveryPlan{Action: ActionServiceFailover, FailoverTarget: "svcB-backup"},
	})

	out := h.svc.Report(context.Background(), &ErrorReport{ServiceID: "svcB", ErrorClass: "503"})

	assert.True(t, out.Recovered)
	assert.Equal(t, string(ActionServiceFailover), out.Action)
	assert.Equal(t, []string{"failover:svcB->svcB-backup"}, h.registry.calledWith())
}

func TestService_Report_AdvisorFailure(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 1}
	h := newTestService(t, cfg, &fakeAdvisor{err: errors.New("model unavailable")})

	out := h.svc.Report(context.Background(), &ErrorReport{ServiceID: "svcA", ErrorClass: "503"})

	assert.False(t, out.Recovered)
	assert.Equal(t, OutcomeRecoveryFailed, out.Action)
	assert.Contains(t, out.Message, "model unavailable")
	assert.Empty(t, h.registry.calledWith(), "no control-plane calls without a plan")
	assert.Equal(t, []string{AuditFailure}, h.audit.statuses())
}

func TestService_Report_AdvisorTimeoutBounded(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 1}
	cfg.CollaboratorTimeout = 50 * time.Millisecond

	// Advisor that never answers on its own; it only returns once the
	// deadline handed to it fires.
	advisor := &fakeAdvisor{
		fn: func(ctx context.Context, _ *SystemSnapshot, _ *ErrorReport) (*RecoveryPlan, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	h := newTestService(t, cfg, advisor)
	report := &ErrorReport{ServiceID: "svcA", ErrorClass: "503"}

	start := time.Now()
	out := h.svc.Report(context.Background(), report)

	assert.Equal(t, OutcomeRecoveryFailed, out.Action)
	assert.Contains(t, out.Message, context.DeadlineExceeded.Error())
	assert.Less(t, time.Since(start), 5*time.Second, "report returns once the advisor deadline fires")
	assert.Equal(t, []string{AuditFailure}, h.audit.statuses())
	assert.Empty(t, h.svc.Status(context.Background()).InFlight, "lock released after timeout")

	// The next crossing must reach the advisor again; a leaked lock would
	// report in_progress instead.
	out = h.svc.Report(context.Background(), report)
	assert.Equal(t, OutcomeRecoveryFailed, out.Action)
	assert.Equal(t, 2, advisor.callCount())
}

func TestService_Report_NilPlanIsFailure(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 1}
	h := newTestService(t, cfg, &fakeAdvisor{})

	out := h.svc.Report(context.Background(), &ErrorReport{ServiceID: "svcA", ErrorClass: "503"})

	assert.Equal(t, OutcomeRecoveryFailed, out.Action)
	assert.Contains(t, out.Message, "no plan")
}

func TestService_Report_UnknownActionIsNoAction(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 1}
	h := newTestService(t, cfg, &fakeAdvisor{
		plan: &RecoveryPlan{Action: PlanAction("reboot_universe")},
	})

	out := h.svc.Report(context.Background(), &ErrorReport{ServiceID: "svcA", ErrorClass: "503"})

	assert.False(t, out.Recovered)
	assert.Equal(t, OutcomeNoAction, out.Action)
	assert.Empty(t, h.registry.calledWith())
	assert.Empty(t, h.creds.rotations())
}

func TestService_Report_HandlerFailureAudited(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 1}
	h := newTestService(t, cfg, &fakeAdvisor{
		plan: &RecoveryPlan{Action: ActionServiceRestart},
	})
	h.registry.err = errors.New("control plane down")

	out := h.svc.Report(context.Background(), &ErrorReport{ServiceID: "svcA", ErrorClass: "503"})

	assert.Equal(t, OutcomeRecoveryFailed, out.Action)
	assert.Equal(t, []string{AuditInitiated, AuditFailure}, h.audit.statuses())
}

func TestService_Report_AuditOutageDoesNotBlock(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"401": 1}
	h := newTestService(t, cfg, &fakeAdvisor{
		plan: &RecoveryPlan{Action: ActionTokenRefresh},
	})
	h.audit.err = errors.New("broker unreachable")

	out := h.svc.Report(context.Background(), &ErrorReport{ServiceID: "payments", ErrorClass: "401"})

	assert.True(t, out.Recovered)
	assert.Equal(t, "token_refreshed", out.Action)
}

func TestService_Report_SameKeyDefersWhileInFlight(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 1}

	entered := make(chan struct{})
	proceed := make(chan struct{})
	advisor := &fakeAdvisor{
		fn: func(_ context.Context, _ *SystemSnapshot, _ *ErrorReport) (*RecoveryPlan, error) {
			close(entered)
			<-proceed
			return &RecoveryPlan{Action: ActionServiceRestart}, nil
		},
	}
	h := newTestService(t, cfg, advisor)
	report := &ErrorReport{ServiceID: "svcA", ErrorClass: "503"}

	done := make(chan *Outcome, 1)
	go func() {
		done <- h.svc.Report(context.Background(), report)
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first report never reached the advisor")
	}

	out := h.svc.Report(context.Background(), report)
	assert.Equal(t, OutcomeInProgress, out.Action)
	assert.False(t, out.Recovered)

	status := h.svc.Status(context.Background())
	assert.Equal(t, []string{"svcA:503"}, status.InFlight)

	close(proceed)
	select {
	case first := <-done:
		assert.True(t, first.Recovered)
		assert.Equal(t, string(ActionServiceRestart), first.Action)
	case <-time.After(5 * time.Second):
		t.Fatal("first report never finished")
	}

	assert.Empty(t, h.svc.Status(context.Background()).InFlight, "lock released after sequence")
}

func TestService_Report_DistinctKeysRunInParallel(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 1}

	var mu sync.Mutex
	entered := 0
	bothIn := make(chan struct{})
	advisor := &fakeAdvisor{
		fn: func(_ context.Context, _ *SystemSnapshot, _ *ErrorReport) (*RecoveryPlan, error) {
			mu.Lock()
			entered++
			if entered == 2 {
				close(bothIn)
			}
			mu.Unlock()
			<-bothIn
			return &RecoveryPlan{Action: ActionServiceRestart}, nil
		},
	}
	h := newTestService(t, cfg, advisor)

	outcomes := make(chan *Outcome, 2)
	for _, svc := range []string{"svcA", "svcB"} {
		svc := svc
		go func() {
			outcomes <- h.svc.Report(context.Background(), &ErrorReport{ServiceID: svc, ErrorClass: "503"})
		}()
	}

	// Both sequences must be inside the advisor concurrently; a shared lock
	// would deadlock this rendezvous.
	for i := 0; i < 2; i++ {
		select {
		case out := <-outcomes:
			assert.True(t, out.Recovered)
		case <-time.After(5 * time.Second):
			t.Fatal("sequences did not run in parallel")
		}
	}
}

func TestService_Report_PanicInSequenceIsContained(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 1}
	advisor := &fakeAdvisor{
		fn: func(_ context.Context, _ *SystemSnapshot, _ *ErrorReport) (*RecoveryPlan, error) {
			panic("advisor bug")
		},
	}
	h := newTestService(t, cfg, advisor)
	report := &ErrorReport{ServiceID: "svcA", ErrorClass: "503"}

	out := h.svc.Report(context.Background(), report)
	assert.Equal(t, OutcomeRecoveryFailed, out.Action)
	assert.Contains(t, out.Message, "advisor bug")

	// The key lock must not leak: the next crossing runs a fresh sequence.
	out = h.svc.Report(context.Background(), report)
	assert.Equal(t, OutcomeRecoveryFailed, out.Action, "lock released after panic")
}

func TestService_StatusAndThresholds(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.Thresholds = map[string]int{"503": 5}
	h := newTestService(t, cfg, &fakeAdvisor{})

	h.svc.Report(context.Background(), &ErrorReport{ServiceID: "svcA", ErrorClass: "503"})
	h.svc.Report(context.Background(), &ErrorReport{ServiceID: "svcA", ErrorClass: "503"})

	status := h.svc.Status(context.Background())
	assert.Equal(t, uint64(2), status.Counters["svcA:503"])
	assert.Equal(t, map[string]int{"503": 5}, status.Thresholds)
	assert.Equal(t, DefaultThreshold, status.DefaultThreshold)
	assert.Empty(t, status.InFlight)

	require.NoError(t, h.svc.SetThreshold("503", 2))
	assert.Equal(t, 2, h.svc.Status(context.Background()).Thresholds["503"])
	require.Error(t, h.svc.SetThreshold("503", 0))

	h.svc.ResetCounters()
	assert.Empty(t, h.svc.Status(context.Background()).Counters)
}

func TestService_SweepResetsCounters(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.ResetInterval = 20 * time.Millisecond
	h := newTestService(t, cfg, &fakeAdvisor{})

	h.svc.Report(context.Background(), &ErrorReport{ServiceID: "svcA", ErrorClass: "503"})
	require.Equal(t, uint64(1), h.svc.Status(context.Background()).Counters["svcA:503"])

	assert.Eventually(t, func() bool {
		return len(h.svc.Status(context.Background()).Counters) == 0
	}, 2*time.Second, 10*time.Millisecond, "sweep clears counters")
}

func TestService_Close(t *testing.T) {
	h := newTestService(t, nil, &fakeAdvisor{})

	require.NoError(t, h.svc.Close())
	require.NoError(t, h.svc.Close(), "close is idempotent")

	out := h.svc.Report(context.Background(), &ErrorReport{ServiceID: "svcA", ErrorClass: "503"})
	assert.Equal(t, OutcomeNoAction, out.Action)
	assert.Contains(t, out.Message, "closed")
}
