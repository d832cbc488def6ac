package model

// VaultStatus represents the lock state reported by the vault CLI.
type VaultStatus string

const (
	VaultStatusUnlocked        VaultStatus = "unlocked"
	VaultStatusLocked          VaultStatus = "locked"
	VaultStatusUnauthenticated VaultStatus = "unauthenticated"
	VaultStatusUnknown         VaultStatus = "unknown"
	VaultStatusError           VaultStatus = "error"
)

// ParseVaultStatus maps the raw "status" field of the vault CLI output onto a
// VaultStatus. Unrecognized values map to VaultStatusUnknown.
func ParseVaultStatus(raw string) VaultStatus {
	switch VaultStatus(raw) {
	case VaultStatusUnlocked, VaultStatusLocked, VaultStatusUnauthenticated:
		return VaultStatus(raw)
	default:
		return VaultStatusUnknown
	}
}

// NeedsMasterSecret reports whether the UI must ask for the master secret
// before vault reads can succeed.
func (s VaultStatus) NeedsMasterSecret() bool {
	return s != VaultStatusUnlocked
}

// VaultSession is the opaque key returned by a successful unlock. It is passed
// by value into every vault call and is never logged.
type VaultSession struct {
	key string
}

// NewVaultSession wraps a raw session key.
func NewVaultSession(key string) VaultSession {
	return VaultSession{key: key}
}

// Key returns the raw session key for injection into the vault process env.
func (s VaultSession) Key() string {
	return s.key
}

// IsZero reports whether the session carries no key.
func (s VaultSession) IsZero() bool {
	return s.key == ""
}

// String never exposes the key.
func (s VaultSession) String() string {
	if s.IsZero() {
		return "VaultSession{}"
	}
	return "VaultSession{[redacted]}"
}
