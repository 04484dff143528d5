package controlplane

import "context"

// SnapshotAdapter composes the registry and vault into the snapshot source
// the recovery engine enriches snapshots from.
type SnapshotAdapter struct {
	registry *Registry
	vault    *Vault
}

// NewSnapshotAdapter creates a snapshot source over the control plane.
func NewSnapshotAdapter(registry *Registry, vault *Vault) *SnapshotAdapter {
	return &SnapshotAdapter{registry: registry, vault: vault}
}

// ConnectedServices returns the topology neighbors of serviceID.
func (a *SnapshotAdapter) ConnectedServices(_ context.Context, serviceID string) []string {
	if a.registry == nil {
		return nil
	}
	return a.registry.Links(serviceID)
}

// CredentialStatus returns the vault's view of serviceID's credentials.
func (a *SnapshotAdapter) CredentialStatus(_ context.Context, serviceID string) string {
	if a.vault == nil {
		return ""
	}
	return a.vault.Status(serviceID)
}
