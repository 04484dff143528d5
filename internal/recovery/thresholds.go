package recovery

import (
	"fmt"
	"sync"
)

// DefaultThreshold is the occurrence limit for error classes with no explicit
// configuration entry.
const DefaultThreshold = 10

// ThresholdRegistry maps error classes to the occurrence count that triggers
// remediation. Read-only after configuration load except through Set, the
// explicit reconfiguration operation.
type ThresholdRegistry struct {
	mu     sync.RWMutex
	limits map[string]int
	def    int
}

// NewThresholdRegistry creates a registry with the given default limit.
// A non-positive default falls back to DefaultThreshold.
func NewThresholdRegistry(def int) *ThresholdRegistry {
	if def <= 0 {
		def = DefaultThreshold
	}
	return &ThresholdRegistry{
		limits: make(map[string]int),
		def:    def,
	}
}

// Limit returns the threshold for an error class, falling back to the default.
func (r *ThresholdRegistry) Limit(errorClass string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit, ok := r.limits[errorClass]; ok {
		return limit
	}
	return r.def
}

// Set installs an explicit threshold for an error class. This is the only
// mutation path; limits must be positive.
func (r *ThresholdRegistry) Set(errorClass string, limit int) error {
	if errorClass == "" {
		return fmt.Errorf("error class cannot be empty")
	}
	if limit <= 0 {
		return fmt.Errorf("threshold for %q must be positive, got %d", errorClass, limit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits[errorClass] = limit
	return nil
}

// Default returns the fallback limit.
func (r *ThresholdRegistry) Default() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// Snapshot returns a copy of all explicit thresholds.
func (r *ThresholdRegistry) Snapshot() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.limits))
	for class, limit := range r.limits {
		out[class] = limit
	}
	return out
}
