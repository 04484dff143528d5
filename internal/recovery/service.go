package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/sentineld/internal/recovery"

// Service is the error-recovery orchestrator façade.
type Service interface {
	// Report ingests one error report and returns a terminal outcome.
	// It never returns an error; internal failures become outcomes with
	// Recovered=false and a descriptive action tag.
	Report(ctx context.Context, report *ErrorReport) *Outcome

	// Status returns counters and thresholds for operational introspection.
	Status(ctx context.Context) *Status

	// SetThreshold reconfigures the limit for one error class.
	SetThreshold(errorClass string, limit int) error

	// ResetCounters clears all counters, as the periodic sweep does.
	ResetCounters()

	// Close stops the reset sweep and rejects further reports. In-flight
	// remediation sequences run to completion; their side effects are not
	// safely abortable mid-way.
	Close() error
}

// Config configures the recovery engine.
type Config struct {
	// DefaultThreshold applies to error classes with no explicit entry
	// (default: 10).
	DefaultThreshold int

	// Thresholds seeds explicit per-class limits at startup.
	Thresholds map[string]int

	// ResetInterval is the fixed width of the global counter window
	// (default: 5m).
	ResetInterval time.Duration

	// CollaboratorTimeout bounds each advisory and control-plane call
	// (default: 30s).
	CollaboratorTimeout time.Duration

	// RecentErrorsLimit caps the per-service report history kept for
	// snapshots (default: 20).
	RecentErrorsLimit int
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() *Config {
	return &Config{
		DefaultThreshold:    DefaultThreshold,
		ResetInterval:       5 * time.Minute,
		CollaboratorTimeout: 30 * time.Second,
		RecentErrorsLimit:   20,
	}
}

// service implements the Service interface.
type service struct {
	config     *Config
	collab     Collaborators
	counters   *CounterStore
	thresholds *ThresholdRegistry
	locks      *lockTable
	collector  *Collector
	executor   *Executor
	logger     *zap.Logger

	// Telemetry
	tracer             trace.Tracer
	meter              metric.Meter
	reportCounter      metric.Int64Counter
	remediationCounter metric.Int64Counter
	inFlightGauge      metric.Int64UpDownCounter

	stopSweep chan struct{}
	sweepDone chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewService creates the recovery engine and starts its reset sweep.
// The advisor collaborator is required; missing control-plane collaborators
// are surfaced as a startup warning via Executor.Validate and degrade the
// affected actions to no_action outcomes.
func NewService(cfg *Config, collab Collaborators, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	if collab.Advisor == nil {
		return nil, errors.New("advisor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = 5 * time.Minute
	}
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = 30 * time.Second
	}

	thresholds := NewThresholdRegistry(cfg.DefaultThreshold)
	for class, limit := range cfg.Thresholds {
		if err := thresholds.Set(class, limit); err != nil {
			return nil, fmt.Errorf("seed threshold: %w", err)
		}
	}

	locks := newLockTable()
	s := &service{
		config:     cfg,
		collab:     collab,
		counters:   NewCounterStore(),
		thresholds: thresholds,
		locks:      locks,
		collector:  NewCollector(collab.Snapshots, cfg.RecentErrorsLimit, locks.count),
		executor:   NewExecutor(collab, logger),
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
		stopSweep:  make(chan struct{}),
		sweepDone:  make(chan struct{}),
	}
	s.initMetrics()

	if err := s.executor.Validate(); err != nil {
		s.logger.Warn("collaborator configuration incomplete", zap.Error(err))
	}

	go s.sweep()

	return s, nil
}

// Executor exposes the handler registry so deployments can add categories.
func ExecutorOf(s Service) *Executor {
	if impl, ok := s.(*service); ok {
		return impl.executor
	}
	return nil
}

func (s *service) initMetrics() {
	var err error

	s.reportCounter, err = s.meter.Int64Counter(
		"sentineld.recovery.reports_total",
		metric.WithDescription("Total error reports ingested, labeled by outcome action"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		s.logger.Warn("failed to create report counter", zap.Error(err))
	}

	s.remediationCounter, err = s.meter.Int64Counter(
		"sentineld.recovery.remediations_total",
		metric.WithDescription("Total remediation sequences, labeled by category, action and recovered flag"),
		metric.WithUnit("{sequence}"),
	)
	if err != nil {
		s.logger.Warn("failed to create remediation counter", zap.Error(err))
	}

	s.inFlightGauge, err = s.meter.Int64UpDownCounter(
		"sentineld.recovery.in_flight_sequences",
		metric.WithDescription("Remediation sequences currently holding a key lock"),
		metric.WithUnit("{sequence}"),
	)
	if err != nil {
		s.logger.Warn("failed to create in-flight gauge", zap.Error(err))
	}
}

// Report implements the intake path described in the package documentation.
// The below-threshold branch is the hot path: one mutex-guarded increment,
// one threshold read, no snapshot, no advisory call.
func (s *service) Report(ctx context.Context, report *ErrorReport) *Outcome {
	if report == nil || report.ServiceID == "" || report.ErrorClass == "" {
		return &Outcome{
			Recovered: false,
			Action:    OutcomeNoAction,
			Message:   "service_id and error_class are required",
		}
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return &Outcome{Recovered: false, Action: OutcomeNoAction, Message: "engine is closed"}
	}
	s.mu.RUnlock()

	// Copy into local handling scope; the caller keeps ownership of its value.
	r := *report
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now().UTC()
	}

	ctx, span := s.tracer.Start(ctx, "recovery.report")
	defer span.End()
	span.SetAttributes(
		attribute.String("service_id", r.ServiceID),
		attribute.String("error_class", r.ErrorClass),
	)

	key := r.Key()
	s.collector.Observe(&r)
	count := s.counters.Incr(key)
	limit := s.thresholds.Limit(r.ErrorClass)
	span.SetAttributes(
		attribute.Int64("count", int64(count)),
		attribute.Int("threshold", limit),
	)

	if count < uint64(limit) {
		s.logger.Debug("error observed below threshold",
			zap.String("key", string(key)),
			zap.Uint64("count", count),
			zap.Int("threshold", limit),
		)
		return s.finish(ctx, span, &Outcome{
			Recovered: false,
			Action:    OutcomeLogged,
			Message:   "threshold not reached",
		})
	}

	if !s.locks.TryAcquire(key) {
		s.logger.Info("remediation already in flight, deferring",
			zap.String("key", string(key)),
		)
		return s.finish(ctx, span, &Outcome{
			Recovered: false,
			Action:    OutcomeInProgress,
			Message:   fmt.Sprintf("remediation already in flight for %s", key),
		})
	}

	// Crossing accepted: open a fresh window for this key so follow-up
	// reports count toward the next crossing, not this one.
	s.counters.Reset(key)
	if s.inFlightGauge != nil {
		s.inFlightGauge.Add(ctx, 1)
	}
	defer func() {
		s.locks.Release(key)
		if s.inFlightGauge != nil {
			s.inFlightGauge.Add(ctx, -1)
		}
	}()

	s.logger.Warn("threshold crossed, starting remediation sequence",
		zap.String("key", string(key)),
		zap.Uint64("count", count),
		zap.Int("threshold", limit),
	)

	outcome := s.remediate(ctx, &r)
	return s.finish(ctx, span, outcome)
}

// finish records metrics and span status for a terminal outcome.
func (s *service) finish(ctx context.Context, span trace.Span, outcome *Outcome) *Outcome {
	if s.reportCounter != nil {
		s.reportCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", outcome.Action),
		))
	}
	span.SetAttributes(
		attribute.String("outcome.action", outcome.Action),
		attribute.Bool("outcome.recovered", outcome.Recovered),
	)
	if outcome.Action == OutcomeRecoveryFailed {
		span.SetStatus(codes.Error, outcome.Message)
	}
	return outcome
}

// remediate runs one remediation sequence with the key lock held. Anything
// unexpected is caught here and converted into a recovery_failed outcome so
// the lock release in Report always runs.
func (s *service) remediate(ctx context.Context, report *ErrorReport) (out *Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic during remediation sequence",
				zap.String("service_id", report.ServiceID),
				zap.Any("panic", rec),
			)
			out = &Outcome{
				Recovered: false,
				Action:    OutcomeRecoveryFailed,
				Message:   fmt.Sprintf("remediation panic: %v", rec),
			}
			s.audit(ctx, &AuditEntry{
				Action:     OutcomeRecoveryFailed,
				ResourceID: report.ServiceID,
				Status:     AuditFailure,
				Details:    map[string]any{"error": fmt.Sprint(rec), "error_class": report.ErrorClass},
			})
		}
	}()

	snapshot := s.collector.Collect(ctx, report.ServiceID)

	advisoryCtx, cancel := context.WithTimeout(ctx, s.config.CollaboratorTimeout)
	plan, err := s.collab.Advisor.Suggest(advisoryCtx, snapshot, report)
	cancel()
	if err != nil || plan == nil {
		if err == nil {
			err = errors.New("advisor returned no plan")
		}
		s.logger.Error("advisory consultation failed",
			zap.String("service_id", report.ServiceID),
			zap.String("error_class", report.ErrorClass),
			zap.Error(err),
		)
		s.audit(ctx, &AuditEntry{
			Action:     "advisory_consultation",
			ResourceID: report.ServiceID,
			Status:     AuditFailure,
			Details:    map[string]any{"error": err.Error(), "error_class": report.ErrorClass},
		})
		return &Outcome{
			Recovered: false,
			Action:    OutcomeRecoveryFailed,
			Message:   "no plan available: " + err.Error(),
		}
	}

	category := Classify(report.ErrorClass)
	s.audit(ctx, &AuditEntry{
		Action:     string(plan.Action),
		ResourceID: report.ServiceID,
		Status:     AuditInitiated,
		Details: map[string]any{
			"error_class": report.ErrorClass,
			"category":    string(category),
			"reason":      plan.Reason,
		},
	})

	execCtx, cancel := context.WithTimeout(ctx, s.config.CollaboratorTimeout)
	outcome, err := s.executor.Execute(execCtx, category, plan, report)
	cancel()
	if err != nil {
		s.logger.Error("remediation dispatch failed",
			zap.String("service_id", report.ServiceID),
			zap.String("action", string(plan.Action)),
			zap.Error(err),
		)
		s.audit(ctx, &AuditEntry{
			Action:     string(plan.Action),
			ResourceID: report.ServiceID,
			Status:     AuditFailure,
			Details:    map[string]any{"error": err.Error(), "category": string(category)},
		})
		s.countRemediation(ctx, category, string(plan.Action), false)
		return &Outcome{
			Recovered: false,
			Action:    OutcomeRecoveryFailed,
			Message:   err.Error(),
		}
	}

	status := AuditCompleted
	if outcome.Recovered {
		status = AuditSuccess
	}
	s.audit(ctx, &AuditEntry{
		Action:     outcome.Action,
		ResourceID: report.ServiceID,
		Status:     status,
		Details: map[string]any{
			"recovered": outcome.Recovered,
			"message":   outcome.Message,
			"category":  string(category),
		},
	})
	s.countRemediation(ctx, category, outcome.Action, outcome.Recovered)

	s.logger.Info("remediation sequence finished",
		zap.String("service_id", report.ServiceID),
		zap.String("action", outcome.Action),
		zap.Bool("recovered", outcome.Recovered),
	)
	return outcome
}

func (s *service) countRemediation(ctx context.Context, category Category, action string, recovered bool) {
	if s.remediationCounter == nil {
		return
	}
	s.remediationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", string(category)),
		attribute.String("action", action),
		attribute.Bool("recovered", recovered),
	))
}

// audit writes one trail entry. Failures are local-only: logged, never
// propagated, so an audit outage cannot block remediation.
func (s *service) audit(ctx context.Context, entry *AuditEntry) {
	if s.collab.Audit == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := s.collab.Audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed",
			zap.String("action", entry.Action),
			zap.String("resource_id", entry.ResourceID),
			zap.Error(err),
		)
	}
}

// Status returns exact counter values and threshold configuration.
func (s *service) Status(ctx context.Context) *Status {
	_, span := s.tracer.Start(ctx, "recovery.status")
	defer span.End()

	return &Status{
		Counters:         s.counters.Snapshot(),
		Thresholds:       s.thresholds.Snapshot(),
		DefaultThreshold: s.thresholds.Default(),
		InFlight:         s.locks.active(),
	}
}

// SetThreshold is the explicit administrative reconfiguration operation.
func (s *service) SetThreshold(errorClass string, limit int) error {
	if err := s.thresholds.Set(errorClass, limit); err != nil {
		return err
	}
	s.logger.Info("threshold reconfigured",
		zap.String("error_class", errorClass),
		zap.Int("limit", limit),
	)
	return nil
}

// ResetCounters clears all counters at once.
func (s *service) ResetCounters() {
	s.counters.ResetAll()
}

// sweep clears all counters on the fixed interval until Close.
func (s *service) sweep() {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.config.ResetInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.counters.ResetAll()
			s.logger.Debug("counter window reset")
		case <-s.stopSweep:
			return
		}
	}
}

// Close stops the sweep and marks the engine closed.
func (s *service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopSweep)
	<-s.sweepDone
	return nil
}
