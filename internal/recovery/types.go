package recovery

import (
	"strings"
	"time"
)

// ErrorKey indexes the counter store. It is derived from a report's service
// identifier and error class and is collision-free for distinct pairs as long
// as service identifiers contain no ":".
type ErrorKey string

// NewErrorKey builds the counter-store key for a (service, error class) pair.
func NewErrorKey(serviceID, errorClass string) ErrorKey {
	return ErrorKey(serviceID + ":" + errorClass)
}

// ErrorReport describes one operational failure reported by a service.
// Reports are immutable; the engine copies them into local scope on intake.
type ErrorReport struct {
	// ServiceID identifies the reporting service.
	ServiceID string `json:"service_id"`

	// ErrorClass is a normalized status or category, e.g. "401" or "timeout".
	ErrorClass string `json:"error_class"`

	// OperationID identifies the failed operation (optional).
	OperationID string `json:"operation_id,omitempty"`

	// Detail is the opaque error payload.
	Detail string `json:"detail,omitempty"`

	// Context carries opaque request context for the advisory collaborator.
	Context map[string]any `json:"context,omitempty"`

	// ReportedAt is when the failure was observed. Zero means "now".
	ReportedAt time.Time `json:"reported_at,omitempty"`
}

// Key returns the counter-store key for this report.
func (r *ErrorReport) Key() ErrorKey {
	return NewErrorKey(r.ServiceID, r.ErrorClass)
}

// Category is a coarse classification of error classes used to select a
// remediation handler.
type Category string

const (
	// CategoryAuthorization covers credential and permission failures.
	CategoryAuthorization Category = "authorization"
	// CategoryNotFound covers missing resources and endpoints.
	CategoryNotFound Category = "not_found"
	// CategoryServerFault covers upstream server failures.
	CategoryServerFault Category = "server_fault"
	// CategoryGeneric covers everything unrecognized.
	CategoryGeneric Category = "generic"
)

// Classify maps an error class onto a handler category.
func Classify(errorClass string) Category {
	switch strings.ToLower(errorClass) {
	case "401", "403", "unauthorized", "forbidden", "permission_denied", "invalid_token":
		return CategoryAuthorization
	case "404", "not_found", "no_such_endpoint", "gone", "410":
		return CategoryNotFound
	case "500", "502", "503", "504", "server_error", "timeout", "unavailable", "connection_refused":
		return CategoryServerFault
	default:
		return CategoryGeneric
	}
}

// PlanAction is an advisory-supplied remediation action. Plans are untrusted
// input; actions are validated against this vocabulary before dispatch.
type PlanAction string

const (
	ActionTokenRefresh      PlanAction = "token_refresh"
	ActionSecurityLockdown  PlanAction = "security_lockdown"
	ActionEndpointDiscovery PlanAction = "endpoint_discovery"
	ActionServiceMigration  PlanAction = "service_migration"
	ActionServiceRestart    PlanAction = "service_restart"
	ActionServiceFailover   PlanAction = "service_failover"
	ActionApplyRateLimiting PlanAction = "apply_rate_limiting"
)

// Valid reports whether the action belongs to the known vocabulary.
func (a PlanAction) Valid() bool {
	switch a {
	case ActionTokenRefresh, ActionSecurityLockdown, ActionEndpointDiscovery,
		ActionServiceMigration, ActionServiceRestart, ActionServiceFailover,
		ActionApplyRateLimiting:
		return true
	}
	return false
}

// RateLimitPolicy is the structured policy applied by apply_rate_limiting.
type RateLimitPolicy struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// RecoveryPlan is the advisory collaborator's recommended remediation.
type RecoveryPlan struct {
	Action         PlanAction       `json:"action"`
	TargetService  string           `json:"target_service,omitempty"`
	FailoverTarget string           `json:"failover_target,omitempty"`
	RateLimits     *RateLimitPolicy `json:"rate_limits,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// Outcome action tags returned by Report for paths that never reach a handler.
const (
	// OutcomeLogged is the steady-state result below the threshold.
	OutcomeLogged = "logged"
	// OutcomeInProgress means a sequence is already running for the key.
	OutcomeInProgress = "in_progress"
	// OutcomeNoAction means no suitable handler or plan action was found.
	OutcomeNoAction = "no_action"
	// OutcomeRecoveryFailed covers advisory and handler failures.
	OutcomeRecoveryFailed = "recovery_failed"
)

// Outcome is the terminal value of one Report call. It is never mutated after
// construction.
type Outcome struct {
	Recovered bool   `json:"recovered"`
	Action    string `json:"action"`
	Message   string `json:"message,omitempty"`
}

// LoadMetrics is a coarse point-in-time view of engine load.
type LoadMetrics struct {
	Goroutines           int    `json:"goroutines"`
	HeapAllocBytes       uint64 `json:"heap_alloc_bytes"`
	InFlightRemediations int    `json:"in_flight_remediations"`
}

// SystemSnapshot is a fresh point-in-time description of a service's state,
// built on every threshold crossing and never cached.
type SystemSnapshot struct {
	ServiceID         string         `json:"service_id"`
	TakenAt           time.Time      `json:"taken_at"`
	RecentErrors      []*ErrorReport `json:"recent_errors,omitempty"`
	Load              LoadMetrics    `json:"load"`
	ConnectedServices []string       `json:"connected_services,omitempty"`
	CredentialStatus  string         `json:"credential_status,omitempty"`
}

// Audit entry statuses.
const (
	AuditInitiated = "initiated"
	AuditSuccess   = "success"
	AuditCompleted = "completed"
	AuditFailure   = "failure"
)

// AuditEntry is one durable record of a remediation decision or action.
type AuditEntry struct {
	Action     string         `json:"action"`
	ResourceID string         `json:"resource_id"`
	Status     string         `json:"status"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// AutomationRun identifies a workflow started by the automation service.
type AutomationRun struct {
	AutomationID string `json:"automation_id"`
}

// Status is the operational introspection view exposed by the engine.
type Status struct {
	// Counters maps error keys to current occurrence counts.
	Counters map[string]uint64 `json:"counters"`

	// Thresholds maps error classes to explicit limits.
	Thresholds map[string]int `json:"thresholds"`

	// DefaultThreshold applies to classes with no explicit entry.
	DefaultThreshold int `json:"default_threshold"`

	// InFlight lists keys with a remediation sequence currently running.
	InFlight []string `json:"in_flight,omitempty"`
}
