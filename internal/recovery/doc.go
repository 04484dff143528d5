// Package recovery implements the adaptive self-healing error-recovery engine.
//
// The engine watches error reports flowing in from independent services,
// counts occurrences per (service, error class) key, and when a key crosses
// its configured threshold it runs a remediation sequence: collect a system
// snapshot, ask the advisory collaborator for a recovery plan, dispatch the
// plan to a category handler, and record the attempt in the audit trail.
//
// # Safety
//
// The engine guarantees:
//   - Report never panics or returns an error; every path resolves to an Outcome.
//   - At most one remediation sequence runs per error key at a time. Concurrent
//     crossings for the same key are answered with an "in_progress" outcome.
//   - Sequences for distinct keys never block one another.
//   - Every collaborator call is bounded by a configured timeout.
//   - Audit failures are logged and swallowed; an audit outage never blocks
//     remediation.
//
// # Usage
//
//	svc, err := recovery.NewService(cfg, recovery.Collaborators{
//	    Advisor:     advisor,
//	    Credentials: vault,
//	    Registry:    registry,
//	    Automation:  automation,
//	    Audit:       audit,
//	}, logger)
//
//	outcome := svc.Report(ctx, &recovery.ErrorReport{
//	    ServiceID:  "payments",
//	    ErrorClass: "401",
//	})
//
// Categories map error classes onto remediation handlers. Handlers are
// registered, not hard-coded: Executor.Register adds new categories without
// touching the orchestrator.
//
// # Counter windows
//
// Counters use a global fixed-interval window: a background sweep clears all
// counters at once. A key's counter is also reset when a crossing is accepted
// for processing, so N reports at threshold T trigger at most floor(N/T)
// sequences between sweeps.
package recovery
