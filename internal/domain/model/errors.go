package model

import (
	"errors"
	"fmt"
)

// ErrMasterSecretRequired is returned by JobService when the credential cache
// misses and no master secret was supplied.
var ErrMasterSecretRequired = errors.New("no cached credential and no master secret supplied: unlock the vault first")

// ErrEmptySessionKey is returned when the vault reports a successful unlock
// but prints no session key.
var ErrEmptySessionKey = errors.New("vault unlock returned an empty session key")

// VaultUnlockError means the vault rejected the master secret. Stderr is the
// vault's own message; the secret is never part of it.
type VaultUnlockError struct {
	Stderr string
}

func (e *VaultUnlockError) Error() string {
	if e.Stderr == "" {
		return "vault unlock failed"
	}
	return "vault unlock failed: " + e.Stderr
}

// VaultCommandError is a non-zero exit from status, get or sync.
type VaultCommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *VaultCommandError) Error() string {
	return fmt.Sprintf("vault %s failed (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
}

// CredentialNotFoundError means the vault item exists but its login fields are
// missing, or the vault output could not be parsed.
type CredentialNotFoundError struct {
	Item   string
	Reason string
}

func (e *CredentialNotFoundError) Error() string {
	return fmt.Sprintf("credential %q not usable: %s", e.Item, e.Reason)
}

// BrowserLaunchError means no browser session could be started. There is no
// browser-less fallback.
type BrowserLaunchError struct {
	Err error
}

func (e *BrowserLaunchError) Error() string {
	return "browser launch failed: " + e.Err.Error()
}

func (e *BrowserLaunchError) Unwrap() error { return e.Err }

// ElementTimeoutError means an expected portal element never reached the
// awaited state within its window.
type ElementTimeoutError struct {
	Phase    string // diagnostics key, e.g. "login_timeout", "clock-in_not_found"
	Selector string
	Err      error
}

func (e *ElementTimeoutError) Error() string {
	return fmt.Sprintf("element %s not ready (%s): %v", e.Selector, e.Phase, e.Err)
}

func (e *ElementTimeoutError) Unwrap() error { return e.Err }

// ClickInterceptedError means another element received the click. The punch
// routine recovers from one of these with a script click.
type ClickInterceptedError struct {
	Selector string
}

func (e *ClickInterceptedError) Error() string {
	return "click on " + e.Selector + " was intercepted by another element"
}
