package recovery

import (
	"context"
	"sync"
)

// fakeAdvisor returns a fixed plan or delegates to fn when set.
type fakeAdvisor struct {
	mu    sync.Mutex
	plan  *RecoveryPlan
	err   error
	fn    func(ctx context.Context, snapshot *SystemSnapshot, report *ErrorReport) (*RecoveryPlan, error)
	calls int
}

func (f *fakeAdvisor) Suggest(ctx context.Context, snapshot *SystemSnapshot, report *ErrorReport) (*RecoveryPlan, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, snapshot, report)
	}
	return f.plan, f.err
}

func (f *fakeAdvisor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCredentials struct {
	mu      sync.Mutex
	rotated []string
	err     error
}

func (f *fakeCredentials) RotateCredentials(_ context.Context, serviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rotated = append(f.rotated, serviceID)
	return nil
}

func (f *fakeCredentials) rotations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rotated...)
}

// fakeRegistry records every control-plane call by name.
type fakeRegistry struct {
	mu        sync.Mutex
	calls     []string
	endpoints []string
	err       error
}

func (f *fakeRegistry) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeRegistry) DiscoverEndpoints(_ context.Context, serviceID string) ([]string, error) {
	if err := f.record("discover:" + serviceID); err != nil {
		return nil, err
	}
	return f.endpoints, nil
}

func (f *fakeRegistry) UpdateEndpoints(_ context.Context, serviceID string, _ []string) error {
	return f.record("update:" + serviceID)
}

func (f *fakeRegistry) MigrateTraffic(_ context.Context, from, to string) error {
	return f.record("migrate:" + from + "->" + to)
}

func (f *fakeRegistry) Restart(_ context.Context, serviceID string) error {
	return f.record("restart:" + serviceID)
}

func (f *fakeRegistry) Failover(_ context.Context, serviceID, target string) error {
	return f.record("failover:" + serviceID + "->" + target)
}

func (f *fakeRegistry) ApplyRateLimiting(_ context.Context, serviceID string, _ *RateLimitPolicy) error {
	return f.record("ratelimit:" + serviceID)
}

func (f *fakeRegistry) Disable(_ context.Context, serviceID string) error {
	return f.record("disable:" + serviceID)
}

func (f *fakeRegistry) calledWith() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeAutomation struct {
	mu        sync.Mutex
	workflows []string
	err       error
}

func (f *fakeAutomation) InitiateWorkflow(_ context.Context, workflowType string, _ map[string]any) (*AutomationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.workflows = append(f.workflows, workflowType)
	return &AutomationRun{AutomationID: "run-1"}, nil
}

func (f *fakeAutomation) started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.workflows...)
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*AuditEntry
	err     error
}

func (f *fakeAudit) Record(_ context.Context, entry *AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) recorded() []*AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*AuditEntry(nil), f.entries...)
}

func (f *fakeAudit) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Status)
	}
	return out
}

type fakeSnapshots struct {
	connected  []string
	credential string
}

func (f *fakeSnapshots) ConnectedServices(_ context.Context, _ string) []string {
	return f.connected
}

func (f *fakeSnapshots) CredentialStatus(_ context.Context, _ string) string {
	return f.credential
}
