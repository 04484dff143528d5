package recovery

import "context"

// Advisor is the external recovery-strategy collaborator. A failed or empty
// suggestion is treated as "no plan available", never as a crash.
type Advisor interface {
	Suggest(ctx context.Context, snapshot *SystemSnapshot, report *ErrorReport) (*RecoveryPlan, error)
}

// CredentialManager rotates a service's credentials.
type CredentialManager interface {
	RotateCredentials(ctx context.Context, serviceID string) error
}

// ServiceRegistry is the control-plane collaborator remediation handlers use
// to change routing and lifecycle state.
type ServiceRegistry interface {
	DiscoverEndpoints(ctx context.Context, serviceID string) ([]string, error)
	UpdateEndpoints(ctx context.Context, serviceID string, endpoints []string) error
	MigrateTraffic(ctx context.Context, fromService, toService string) error
	Restart(ctx context.Context, serviceID string) error
	Failover(ctx context.Context, serviceID, target string) error
	ApplyRateLimiting(ctx context.Context, serviceID string, policy *RateLimitPolicy) error
	Disable(ctx context.Context, serviceID string) error
}

// AutomationService starts remediation workflows (e.g. a security lockdown
// review) on external automation infrastructure.
type AutomationService interface {
	InitiateWorkflow(ctx context.Context, workflowType string, payload map[string]any) (*AutomationRun, error)
}

// AuditTrail records remediation attempts durably. Implementations should not
// block remediation on failure; the engine logs and swallows Record errors.
type AuditTrail interface {
	Record(ctx context.Context, entry *AuditEntry) error
}

// SnapshotSource optionally enriches snapshots with topology and credential
// state. Deployments without one get snapshots with those fields empty.
type SnapshotSource interface {
	ConnectedServices(ctx context.Context, serviceID string) []string
	CredentialStatus(ctx context.Context, serviceID string) string
}

// Collaborators bundles the external collaborators the engine dispatches to.
// Advisor is required; the rest may be nil, in which case the handlers that
// need them report a configuration gap instead of acting.
type Collaborators struct {
	Advisor     Advisor
	Credentials CredentialManager
	Registry    ServiceRegistry
	Automation  AutomationService
	Audit       AuditTrail
	Snapshots   SnapshotSource
}
