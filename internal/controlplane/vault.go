package controlplane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Credential status values reported to snapshot collection.
const (
	CredentialActive  = "active"
	CredentialStale   = "stale"
	CredentialUnknown = "unknown"
)

// DefaultCredentialTTL is how long a rotated credential counts as active.
const DefaultCredentialTTL = 12 * time.Hour

type credential struct {
	token     string
	rotatedAt time.Time
}

// Vault is an in-memory credential manager. Rotation mints a fresh opaque
// token per service; status degrades to stale once the TTL passes.
type Vault struct {
	mu     sync.RWMutex
	creds  map[string]*credential
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewVault creates a vault with the given TTL. Non-positive TTLs fall back to
// DefaultCredentialTTL.
func NewVault(ttl time.Duration, logger *zap.Logger) *Vault {
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{
		creds:  make(map[string]*credential),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// RotateCredentials mints a new token for serviceID, replacing any previous
// one.
func (v *Vault) RotateCredentials(_ context.Context, serviceID string) error {
	if serviceID == "" {
		return fmt.Errorf("service id cannot be empty")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.creds[serviceID] = &credential{
		token:     uuid.NewString(),
		rotatedAt: v.now(),
	}

	v.logger.Info("credentials rotated", zap.String("service_id", serviceID))
	return nil
}

// Token returns the current token for serviceID, or empty if none exists.
func (v *Vault) Token(serviceID string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if c, ok := v.creds[serviceID]; ok {
		return c.token
	}
	return ""
}

// Status reports the credential state for serviceID.
func (v *Vault) Status(serviceID string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	c, ok := v.creds[serviceID]
	if !ok {
		return CredentialUnknown
	}
	if v.now().Sub(c.rotatedAt) > v.ttl {
		return CredentialStale
	}
	return CredentialActive
}
