package model

// Credential holds the portal login resolved from the vault or the local cache.
// It lives in memory for the duration of one job only.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// IsComplete reports whether both login fields are present.
func (c Credential) IsComplete() bool {
	return c.Username != "" && c.Password != ""
}

// String redacts the password so a Credential can be passed to a logger safely.
func (c Credential) String() string {
	return "Credential{Username: " + c.Username + ", Password: [redacted]}"
}
