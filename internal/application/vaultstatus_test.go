package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

func TestVaultStatusCache_CachesWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	vault := &mockVault{status: model.VaultStatusLocked}
	p := NewVaultStatusCache(vault, 5*time.Second)
	p.now = func() time.Time { return now }

	assert.Equal(t, model.VaultStatusLocked, p.Status(context.Background()))
	vault.status = model.VaultStatusUnlocked
	assert.Equal(t, model.VaultStatusLocked, p.Status(context.Background()))
	assert.Equal(t, 1, vault.statusN)

	now = now.Add(5 * time.Second)
	assert.Equal(t, model.VaultStatusUnlocked, p.Status(context.Background()))
	assert.Equal(t, 2, vault.statusN)
}

func TestVaultStatusCache_Invalidate(t *testing.T) {
	vault := &mockVault{status: model.VaultStatusUnauthenticated}
	p := NewVaultStatusCache(vault, time.Hour)

	p.Status(context.Background())
	p.Invalidate()
	p.Status(context.Background())

	assert.Equal(t, 2, vault.statusN)
}
