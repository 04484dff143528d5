package controlplane

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/sentineld/internal/recovery"
)

// serviceState is everything the registry tracks for one service.
type serviceState struct {
	endpoints []string
	routedTo  string
	disabled  bool
	restarts  int
	limiter   *rate.Limiter
	links     []string
}

// Registry is an in-memory service registry. It satisfies both the
// remediation control-plane interface and the snapshot topology source.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*serviceState
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		services: make(map[string]*serviceState),
		logger:   logger,
	}
}

// Seed registers a service with its endpoints and topology links. Intended
// for startup wiring and tests.
func (r *Registry) Seed(serviceID string, endpoints, links []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.state(serviceID)
	s.endpoints = append([]string(nil), endpoints...)
	s.links = append([]string(nil), links...)
}

// state returns the entry for serviceID, creating it if absent.
// Callers must hold r.mu.
func (r *Registry) state(serviceID string) *serviceState {
	s, ok := r.services[serviceID]
	if !ok {
		s = &serviceState{}
		r.services[serviceID] = s
	}
	return s
}

// DiscoverEndpoints returns the currently registered endpoints. A real
// deployment would query the mesh here; the in-memory registry reflects what
// Seed and UpdateEndpoints installed.
func (r *Registry) DiscoverEndpoints(_ context.Context, serviceID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.services[serviceID]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), s.endpoints...), nil
}

// UpdateEndpoints replaces the endpoint set for serviceID.
func (r *Registry) UpdateEndpoints(_ context.Context, serviceID string, endpoints []string) error {
	if serviceID == "" {
		return fmt.Errorf("service id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(serviceID).endpoints = append([]string(nil), endpoints...)

	r.logger.Info("endpoints updated",
		zap.String("service_id", serviceID),
		zap.Int("count", len(endpoints)),
	)
	return nil
}

// MigrateTraffic repoints fromService at toService.
func (r *Registry) MigrateTraffic(ctx context.Context, fromService, toService string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fromService == "" || toService == "" {
		return fmt.Errorf("both services must be named")
	}
	if fromService == toService {
		return fmt.Errorf("cannot migrate %s onto itself", fromService)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(fromService).routedTo = toService

	r.logger.Info("traffic migrated",
		zap.String("from", fromService),
		zap.String("to", toService),
	)
	return nil
}

// Restart records a restart request. The in-memory registry counts them;
// a mesh-backed one would bounce the workload.
func (r *Registry) Restart(_ context.Context, serviceID string) error {
	if serviceID == "" {
		return fmt.Errorf("service id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state(serviceID)
	s.restarts++
	s.disabled = false

	r.logger.Info("restart requested",
		zap.String("service_id", serviceID),
		zap.Int("restart_count", s.restarts),
	)
	return nil
}

// Failover redirects traffic to the named standby.
func (r *Registry) Failover(ctx context.Context, serviceID, target string) error {
	if target == "" {
		return fmt.Errorf("failover target cannot be empty")
	}
	return r.MigrateTraffic(ctx, serviceID, target)
}

// ApplyRateLimiting installs a token-bucket limiter for serviceID.
func (r *Registry) ApplyRateLimiting(_ context.Context, serviceID string, policy *recovery.RateLimitPolicy) error {
	if policy == nil {
		return fmt.Errorf("rate limit policy cannot be nil")
	}
	if policy.RequestsPerSecond <= 0 || policy.Burst <= 0 {
		return fmt.Errorf("rate limit policy must have positive rate and burst")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(serviceID).limiter = rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), policy.Burst)

	r.logger.Info("rate limit applied",
		zap.String("service_id", serviceID),
		zap.Float64("requests_per_second", policy.RequestsPerSecond),
		zap.Int("burst", policy.Burst),
	)
	return nil
}

// Disable takes serviceID out of rotation.
func (r *Registry) Disable(_ context.Context, serviceID string) error {
	if serviceID == "" {
		return fmt.Errorf("service id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(serviceID).disabled = true

	r.logger.Warn("service disabled", zap.String("service_id", serviceID))
	return nil
}

// Allow reports whether one request for serviceID passes its limiter.
// Services without a limiter, and disabled services, answer true and false
// respectively.
func (r *Registry) Allow(serviceID string) bool {
	r.mu.RLock()
	s, ok := r.services[serviceID]
	r.mu.RUnlock()

	if !ok {
		return true
	}
	if s.disabled {
		return false
	}
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Disabled reports whether serviceID has been taken out of rotation.
func (r *Registry) Disabled(serviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.services[serviceID]
	return ok && s.disabled
}

// Restarts returns the number of restart requests recorded for serviceID.
func (r *Registry) Restarts(serviceID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.services[serviceID]; ok {
		return s.restarts
	}
	return 0
}

// RoutedTo returns the service currently receiving serviceID's traffic, or
// empty when traffic is not redirected.
func (r *Registry) RoutedTo(serviceID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.services[serviceID]; ok {
		return s.routedTo
	}
	return ""
}

// Links returns the topology neighbors registered for serviceID, sorted.
func (r *Registry) Links(serviceID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.services[serviceID]
	if !ok {
		return nil
	}
	out := append([]string(nil), s.links...)
	sort.Strings(out)
	return out
}
