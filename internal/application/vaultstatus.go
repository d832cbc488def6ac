package application

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
)

// VaultStatusCache reports the vault lock state for the dashboard and API,
// caching the answer briefly so page refreshes do not spawn a process each.
type VaultStatusCache struct {
	vault driven.VaultClient
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	status  model.VaultStatus
	checked time.Time
}

// NewVaultStatusCache creates a cache holding results for ttl.
func NewVaultStatusCache(vault driven.VaultClient, ttl time.Duration) *VaultStatusCache {
	return &VaultStatusCache{vault: vault, ttl: ttl, now: time.Now}
}

// Status returns the cached status, refreshing it once it is older than ttl.
func (p *VaultStatusCache) Status(ctx context.Context) model.VaultStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checked.IsZero() && p.now().Sub(p.checked) < p.ttl {
		return p.status
	}

	p.status = p.vault.Status(ctx, model.VaultSession{})
	p.checked = p.now()
	return p.status
}

// Invalidate forces the next Status call to query the vault.
func (p *VaultStatusCache) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checked = time.Time{}
}
