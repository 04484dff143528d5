package advisor

import (
	"context"

	"github.com/fyrsmithlabs/sentineld/internal/recovery"
)

// Rules is a deterministic advisor keyed on the error category. It never
// fails; unknown categories yield a restart plan, the least specific action
// the control plane supports.
type Rules struct{}

// NewRules creates the rules advisor.
func NewRules() *Rules {
	return &Rules{}
}

// Suggest maps the report's category onto a fixed plan.
func (r *Rules) Suggest(_ context.Context, _ *recovery.SystemSnapshot, report *recovery.ErrorReport) (*recovery.RecoveryPlan, error) {
	switch recovery.Classify(report.ErrorClass) {
	case recovery.CategoryAuthorization:
		return &recovery.RecoveryPlan{
			Action: recovery.ActionTokenRefresh,
			Reason: "authorization failure, refreshing credentials",
		}, nil
	case recovery.CategoryNotFound:
		return &recovery.RecoveryPlan{
			Action: recovery.ActionEndpointDiscovery,
			Reason: "resource missing, rediscovering endpoints",
		}, nil
	default:
		return &recovery.RecoveryPlan{
			Action: recovery.ActionServiceRestart,
			Reason: "server fault or unknown class, requesting restart",
		}, nil
	}
}
