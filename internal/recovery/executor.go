package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// WorkflowSecurityLockdown is the automation workflow started when an
// authorization failure escalates to a lockdown.
const WorkflowSecurityLockdown = "security_lockdown"

// Handler executes a recovery plan for one category. A nil error with
// Recovered=false is a deliberate outcome (e.g. lockdown); a non-nil error
// means the chosen collaborator call itself failed.
type Handler func(ctx context.Context, plan *RecoveryPlan, report *ErrorReport) (*Outcome, error)

// Executor dispatches validated recovery plans to registered category
// handlers. The builtin table covers authorization, not_found, server_fault
// and generic; Register adds categories without touching the orchestrator.
type Executor struct {
	mu       sync.RWMutex
	handlers map[Category]Handler
	collab   Collaborators
	logger   *zap.Logger
}

// NewExecutor creates an executor with the builtin handler table.
func NewExecutor(collab Collaborators, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		handlers: make(map[Category]Handler),
		collab:   collab,
		logger:   logger,
	}
	e.Register(CategoryAuthorization, e.handleAuthorization)
	e.Register(CategoryNotFound, e.handleNotFound)
	e.Register(CategoryServerFault, e.handleServerFault)
	e.Register(CategoryGeneric, e.handleGeneric)
	return e
}

// Register installs or replaces the handler for a category.
func (e *Executor) Register(category Category, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[category] = handler
}

// Validate checks at startup that the collaborators required by the builtin
// handler table are configured. A missing collaborator is a configuration
// error and should surface before traffic arrives, not at dispatch time.
func (e *Executor) Validate() error {
	var errs []error
	if e.collab.Credentials == nil {
		errs = append(errs, errors.New("credential manager not configured (token_refresh unavailable)"))
	}
	if e.collab.Registry == nil {
		errs = append(errs, errors.New("service registry not configured (discovery/restart/failover unavailable)"))
	}
	if e.collab.Automation == nil {
		errs = append(errs, errors.New("automation service not configured (security_lockdown unavailable)"))
	}
	return errors.Join(errs...)
}

// Execute dispatches a plan to the handler registered for category. Unknown
// actions and missing collaborators resolve to a no_action outcome with no
// control-plane calls; handler failures return an error for the orchestrator
// to convert into a recovery_failed outcome.
func (e *Executor) Execute(ctx context.Context, category Category, plan *RecoveryPlan, report *ErrorReport) (out *Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("panic in %s handler: %v", category, rec)
		}
	}()

	if plan == nil || !plan.Action.Valid() {
		action := PlanAction("")
		if plan != nil {
			action = plan.Action
		}
		e.logger.Warn("plan action outside known vocabulary",
			zap.String("action", string(action)),
			zap.String("service_id", report.ServiceID),
		)
		return noSuitableAction(action), nil
	}

	e.mu.RLock()
	handler, ok := e.handlers[category]
	if !ok {
		handler = e.handlers[CategoryGeneric]
	}
	e.mu.RUnlock()

	if handler == nil {
		return noSuitableAction(plan.Action), nil
	}
	return handler(ctx, plan, report)
}

func (e *Executor) handleAuthorization(ctx context.Context, plan *RecoveryPlan, report *ErrorReport) (*Outcome, error) {
	switch plan.Action {
	case ActionTokenRefresh:
		if e.collab.Credentials == nil {
			return collaboratorMissing("credential manager"), nil
		}
		if err := e.collab.Credentials.RotateCredentials(ctx, report.ServiceID); err != nil {
			return nil, fmt.Errorf("rotate credentials for %s: %w", report.ServiceID, err)
		}
		return &Outcome{
			Recovered: true,
			Action:    "token_refreshed",
			Message:   fmt.Sprintf("credentials rotated for %s", report.ServiceID),
		}, nil

	case ActionSecurityLockdown:
		if e.collab.Automation == nil {
			return collaboratorMissing("automation service"), nil
		}
		if e.collab.Registry == nil {
			return collaboratorMissing("service registry"), nil
		}
		run, err := e.collab.Automation.InitiateWorkflow(ctx, WorkflowSecurityLockdown, map[string]any{
			"service_id":  report.ServiceID,
			"error_class": report.ErrorClass,
			"severity":    "high",
			"reason":      plan.Reason,
		})
		if err != nil {
			return nil, fmt.Errorf("initiate security lockdown for %s: %w", report.ServiceID, err)
		}
		if err := e.collab.Registry.Disable(ctx, report.ServiceID); err != nil {
			return nil, fmt.Errorf("disable %s: %w", report.ServiceID, err)
		}
		// Service is intentionally offline pending review, so not recovered.
		return &Outcome{
			Recovered: false,
			Action:    string(ActionSecurityLockdown),
			Message:   fmt.Sprintf("service %s disabled pending review (automation %s)", report.ServiceID, run.AutomationID),
		}, nil

	default:
		return noSuitableAction(plan.Action), nil
	}
}

func (e *Executor) handleNotFound(ctx context.Context, plan *RecoveryPlan, report *ErrorReport) (*Outcome, error) {
	if e.collab.Registry == nil {
		return collaboratorMissing("service registry"), nil
	}

	switch plan.Action {
	case ActionEndpointDiscovery:
		endpoints, err := e.collab.Registry.DiscoverEndpoints(ctx, report.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("discover endpoints for %s: %w", report.ServiceID, err)
		}
		if len(endpoints) == 0 {
			return &Outcome{
				Recovered: false,
				Action:    string(ActionEndpointDiscovery),
				Message:   fmt.Sprintf("no endpoints discovered for %s", report.ServiceID),
			}, nil
		}
		if err := e.collab.Registry.UpdateEndpoints(ctx, report.ServiceID, endpoints); err != nil {
			return nil, fmt.Errorf("update endpoints for %s: %w", report.ServiceID, err)
		}
		return &Outcome{
			Recovered: true,
			Action:    string(ActionEndpointDiscovery),
			Message:   fmt.Sprintf("rediscovered %d endpoints for %s", len(endpoints), report.ServiceID),
		}, nil

	case ActionServiceMigration:
		if plan.TargetService == "" {
			return noSuitableAction(plan.Action), nil
		}
		if err := e.collab.Registry.MigrateTraffic(ctx, report.ServiceID, plan.TargetService); err != nil {
			return nil, fmt.Errorf("migrate traffic %s -> %s: %w", report.ServiceID, plan.TargetService, err)
		}
		return &Outcome{
			Recovered: true,
			Action:    string(ActionServiceMigration),
			Message:   fmt.Sprintf("traffic migrated from %s to %s", report.ServiceID, plan.TargetService),
		}, nil

	default:
		return noSuitableAction(plan.Action), nil
	}
}

func (e *Executor) handleServerFault(ctx context.Context, plan *RecoveryPlan, report *ErrorReport) (*Outcome, error) {
	if e.collab.Registry == nil {
		return collaboratorMissing("service registry"), nil
	}

	switch plan.Action {
	case ActionServiceRestart:
		if err := e.collab.Registry.Restart(ctx, report.ServiceID); err != nil {
			return nil, fmt.Errorf("restart %s: %w", report.ServiceID, err)
		}
		return &Outcome{
			Recovered: true,
			Action:    string(ActionServiceRestart),
			Message:   fmt.Sprintf("restart requested for %s", report.ServiceID),
		}, nil

	case ActionServiceFailover:
		if plan.FailoverTarget == "" {
			return noSuitableAction(plan.Action), nil
		}
		if err := e.collab.Registry.Failover(ctx, report.ServiceID, plan.FailoverTarget); err != nil {
			return nil, fmt.Errorf("failover %s -> %s: %w", report.ServiceID, plan.FailoverTarget, err)
		}
		return &Outcome{
			Recovered: true,
			Action:    string(ActionServiceFailover),
			Message:   fmt.Sprintf("traffic redirected from %s to %s", report.ServiceID, plan.FailoverTarget),
		}, nil

	case ActionApplyRateLimiting:
		if plan.RateLimits == nil {
			return noSuitableAction(plan.Action), nil
		}
		if err := e.collab.Registry.ApplyRateLimiting(ctx, report.ServiceID, plan.RateLimits); err != nil {
			return nil, fmt.Errorf("apply rate limits to %s: %w", report.ServiceID, err)
		}
		return &Outcome{
			Recovered: true,
			Action:    string(ActionApplyRateLimiting),
			Message:   fmt.Sprintf("rate limits applied to %s", report.ServiceID),
		}, nil

	default:
		return noSuitableAction(plan.Action), nil
	}
}

// handleGeneric is the fallthrough for unrecognized error classes. No plan
// action applies safely without knowing more about the failure.
func (e *Executor) handleGeneric(_ context.Context, plan *RecoveryPlan, report *ErrorReport) (*Outcome, error) {
	e.logger.Info("no handler for generic error class",
		zap.String("service_id", report.ServiceID),
		zap.String("error_class", report.ErrorClass),
		zap.String("plan_action", string(plan.Action)),
	)
	return noSuitableAction(plan.Action), nil
}

func noSuitableAction(action PlanAction) *Outcome {
	msg := "no suitable action"
	if action != "" {
		msg = fmt.Sprintf("no suitable handler for action %q", action)
	}
	return &Outcome{Recovered: false, Action: OutcomeNoAction, Message: msg}
}

func collaboratorMissing(name string) *Outcome {
	return &Outcome{
		Recovered: false,
		Action:    OutcomeNoAction,
		Message:   fmt.Sprintf("configuration error: %s not configured", name),
	}
}
