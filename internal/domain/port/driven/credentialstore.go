package driven

import (
	"errors"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

// ErrInvalidCacheKey is returned when the configured cache sealing key is not
// a 32-byte AES-256 key.
var ErrInvalidCacheKey = errors.New("credential cache key must be 32 bytes (64 hex characters)")

// CredentialCache defines the driven port for the local credential cache file.
// Entries are keyed by vault item name and survive process restarts.
type CredentialCache interface {
	// Lookup returns the cached credential for itemName. A missing file, a
	// missing key or a corrupt file all report ok=false; corruption is never
	// an error.
	Lookup(itemName string) (cred model.Credential, ok bool)

	// Store merges cred under itemName into the cache, preserving other
	// entries, and restricts the file to owner read/write.
	Store(itemName string, cred model.Credential) error

	// Clear removes the cache file. Removing an absent file is not an error.
	Clear() error
}
