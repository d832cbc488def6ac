package driven

import (
	"context"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

// VaultClient defines the driven port for the external password-vault CLI.
// Every method spawns one external process; no retries happen inside.
type VaultClient interface {
	// Status reports the vault lock state. It never fails: process or parse
	// errors map to model.VaultStatusError.
	Status(ctx context.Context, session model.VaultSession) model.VaultStatus

	// Unlock exchanges the master secret for a session. A rejected secret
	// returns *model.VaultUnlockError.
	Unlock(ctx context.Context, masterSecret string) (model.VaultSession, error)

	// GetLoginItem fetches the login fields of the named vault item.
	// Returns *model.VaultCommandError on a non-zero exit and
	// *model.CredentialNotFoundError when the login fields are unusable.
	GetLoginItem(ctx context.Context, session model.VaultSession, itemName string) (model.Credential, error)

	// Sync refreshes the local vault copy. Failure is logged and reported as
	// false; it never fails the caller.
	Sync(ctx context.Context, session model.VaultSession) bool
}

// CredentialSource is a session-bound view of the vault used on the
// credential-cache miss path.
type CredentialSource interface {
	GetLoginItem(ctx context.Context, itemName string) (model.Credential, error)
}

// CredentialSourceFactory builds a CredentialSource on demand. It must only be
// invoked when the cache misses.
type CredentialSourceFactory func() CredentialSource
