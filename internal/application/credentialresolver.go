package application

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
	"github.com/ericfisherdev/autopunch/internal/metrics"
)

// CredentialResolver looks credentials up in the local cache first and falls
// back to the vault, populating the cache on success.
type CredentialResolver struct {
	cache  driven.CredentialCache
	logger *slog.Logger
}

// NewCredentialResolver creates a CredentialResolver over cache.
func NewCredentialResolver(cache driven.CredentialCache, logger *slog.Logger) *CredentialResolver {
	return &CredentialResolver{cache: cache, logger: logger}
}

// IsCached reports whether itemName has a usable cached credential.
func (r *CredentialResolver) IsCached(itemName string) bool {
	_, ok := r.cache.Lookup(itemName)
	return ok
}

// GetCredentials returns the credential for itemName. newSource is only
// called on a cache miss. Vault errors are returned unchanged; a failure to
// write the cache is logged and does not fail the call.
func (r *CredentialResolver) GetCredentials(ctx context.Context, itemName string, newSource driven.CredentialSourceFactory) (model.Credential, error) {
	if cred, ok := r.cache.Lookup(itemName); ok {
		metrics.CredentialCacheTotal.WithLabelValues("hit").Inc()
		r.logger.Info("credential loaded from cache", "item", itemName)
		return cred, nil
	}
	metrics.CredentialCacheTotal.WithLabelValues("miss").Inc()
	r.logger.Info("credential cache miss, reading from vault", "item", itemName)

	cred, err := newSource().GetLoginItem(ctx, itemName)
	if err != nil {
		return model.Credential{}, err
	}

	if err := r.cache.Store(itemName, cred); err != nil {
		r.logger.Warn("credential cache write failed", "item", itemName, "error", err)
	} else {
		r.logger.Info("credential cached", "item", itemName)
	}
	return cred, nil
}

// ClearCache removes every cached credential.
func (r *CredentialResolver) ClearCache() error {
	if err := r.cache.Clear(); err != nil {
		return err
	}
	r.logger.Info("credential cache cleared")
	return nil
}
