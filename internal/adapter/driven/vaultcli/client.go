// Package vaultcli implements the VaultClient port by shelling out to the
// password-vault command-line binary.
package vaultcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
	"github.com/ericfisherdev/autopunch/internal/metrics"
)

const (
	// SessionEnvVar carries the session key into every vault process.
	SessionEnvVar = "BW_SESSION"

	defaultBinaryName  = "bw"
	fallbackBinaryPath = "bin/bw_native"
)

// Compile-time interface satisfaction check.
var _ driven.VaultClient = (*Client)(nil)

// Client implements driven.VaultClient. It holds no session state; the
// binary path is resolved once at construction.
type Client struct {
	binary  string
	logger  *slog.Logger
	environ func() []string
}

// NewClient resolves the vault binary and returns a Client. override wins
// when non-empty; otherwise PATH is searched for "bw", falling back to
// bin/bw_native relative to the working directory.
func NewClient(override string, logger *slog.Logger) *Client {
	return &Client{
		binary:  ResolveBinaryPath(override),
		logger:  logger,
		environ: os.Environ,
	}
}

// ResolveBinaryPath applies the override → PATH → fallback lookup order.
func ResolveBinaryPath(override string) string {
	if override != "" {
		return override
	}
	if p, err := exec.LookPath(defaultBinaryName); err == nil {
		return p
	}
	return fallbackBinaryPath
}

// BinaryPath returns the resolved vault executable.
func (c *Client) BinaryPath() string {
	return c.binary
}

// Status runs `status` and maps the JSON "status" field. Any failure maps to
// model.VaultStatusError.
func (c *Client) Status(ctx context.Context, session model.VaultSession) model.VaultStatus {
	res, err := c.run(ctx, session, nil, "status")
	if err != nil || res.exitCode != 0 {
		metrics.VaultCommandsTotal.WithLabelValues("status", "error").Inc()
		c.logger.Error("vault status check failed", "exit_code", res.exitCode, "stderr", res.stderrText(), "error", err)
		return model.VaultStatusError
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(res.stdout, &payload); err != nil {
		metrics.VaultCommandsTotal.WithLabelValues("status", "error").Inc()
		c.logger.Error("vault status output is not JSON", "error", err)
		return model.VaultStatusError
	}

	metrics.VaultCommandsTotal.WithLabelValues("status", "ok").Inc()
	return model.ParseVaultStatus(payload.Status)
}

// Unlock runs `unlock --raw` with the master secret on stdin. The secret is
// never passed as an argument, so it cannot show up in process listings or
// in the returned error.
func (c *Client) Unlock(ctx context.Context, masterSecret string) (model.VaultSession, error) {
	input := masterSecret
	if !strings.HasSuffix(input, "\n") {
		input += "\n"
	}

	res, err := c.run(ctx, model.VaultSession{}, strings.NewReader(input), "unlock", "--raw")
	if err != nil {
		metrics.VaultCommandsTotal.WithLabelValues("unlock", "error").Inc()
		return model.VaultSession{}, &model.VaultCommandError{Command: "unlock", ExitCode: -1, Stderr: err.Error()}
	}
	if res.exitCode != 0 {
		metrics.VaultCommandsTotal.WithLabelValues("unlock", "error").Inc()
		stderr := scrub(res.stderrText(), masterSecret)
		c.logger.Error("vault unlock failed", "exit_code", res.exitCode, "stderr", stderr)
		return model.VaultSession{}, &model.VaultUnlockError{Stderr: stderr}
	}

	metrics.VaultCommandsTotal.WithLabelValues("unlock", "ok").Inc()
	c.logger.Info("vault unlocked")
	return model.NewVaultSession(strings.TrimSpace(string(res.stdout))), nil
}

// GetLoginItem runs `get item <name>` and extracts login.username and
// login.password.
func (c *Client) GetLoginItem(ctx context.Context, session model.VaultSession, itemName string) (model.Credential, error) {
	c.logger.Info("fetching vault item", "item", itemName)

	res, err := c.run(ctx, session, nil, "get", "item", itemName)
	if err != nil {
		metrics.VaultCommandsTotal.WithLabelValues("get", "error").Inc()
		return model.Credential{}, &model.VaultCommandError{Command: "get item", ExitCode: -1, Stderr: err.Error()}
	}
	if res.exitCode != 0 {
		metrics.VaultCommandsTotal.WithLabelValues("get", "error").Inc()
		c.logger.Error("vault get item failed", "item", itemName, "exit_code", res.exitCode, "stderr", res.stderrText())
		return model.Credential{}, &model.VaultCommandError{Command: "get item", ExitCode: res.exitCode, Stderr: res.stderrText()}
	}

	var item struct {
		Login struct {
			Username string `json:"username"`
			Password string `json:"password"`
		} `json:"login"`
	}
	if err := json.Unmarshal(res.stdout, &item); err != nil {
		metrics.VaultCommandsTotal.WithLabelValues("get", "error").Inc()
		c.logger.Error("vault item output is not JSON", "item", itemName, "error", err)
		return model.Credential{}, &model.CredentialNotFoundError{Item: itemName, Reason: "vault output is not valid JSON"}
	}

	cred := model.Credential{Username: item.Login.Username, Password: item.Login.Password}
	if !cred.IsComplete() {
		metrics.VaultCommandsTotal.WithLabelValues("get", "error").Inc()
		return model.Credential{}, &model.CredentialNotFoundError{Item: itemName, Reason: "username or password is empty"}
	}

	metrics.VaultCommandsTotal.WithLabelValues("get", "ok").Inc()
	c.logger.Info("vault item fetched", "item", itemName)
	return cred, nil
}

// Sync runs `sync`. A failed sync is logged and reported as false; the
// locally vaulted data may still be current enough to proceed.
func (c *Client) Sync(ctx context.Context, session model.VaultSession) bool {
	c.logger.Info("syncing vault")

	res, err := c.run(ctx, session, nil, "sync")
	if err != nil || res.exitCode != 0 {
		metrics.VaultCommandsTotal.WithLabelValues("sync", "error").Inc()
		c.logger.Warn("vault sync failed, continuing with local data",
			"exit_code", res.exitCode, "stderr", res.stderrText(), "error", err)
		return false
	}

	metrics.VaultCommandsTotal.WithLabelValues("sync", "ok").Inc()
	c.logger.Info("vault synced")
	return true
}

// Bind returns a CredentialSource that reads items with the given session.
// When no session is supplied and none is set in the environment, it logs
// that the vault may still be locked.
func (c *Client) Bind(session model.VaultSession) driven.CredentialSource {
	if session.IsZero() && !c.hasAmbientSession() {
		c.logger.Warn(SessionEnvVar + " is not set and no session was supplied; the vault may need unlocking")
	}
	return &boundSource{client: c, session: session}
}

func (c *Client) hasAmbientSession() bool {
	prefix := SessionEnvVar + "="
	for _, kv := range c.environ() {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}
	return false
}

type boundSource struct {
	client  *Client
	session model.VaultSession
}

func (b *boundSource) GetLoginItem(ctx context.Context, itemName string) (model.Credential, error) {
	return b.client.GetLoginItem(ctx, b.session, itemName)
}

// result captures one finished vault process.
type result struct {
	stdout   []byte
	stderr   []byte
	exitCode int
}

func (r result) stderrText() string {
	return strings.TrimSpace(string(r.stderr))
}

// run executes the vault binary. A non-zero exit is reported via exitCode,
// not err; err is reserved for failures to start or wait on the process.
func (c *Client) run(ctx context.Context, session model.VaultSession, stdin io.Reader, args ...string) (result, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Env = c.env(session)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := result{stdout: stdout.Bytes(), stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.exitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("run vault %s: %w", args[0], err)
	}
	return res, nil
}

// env returns the child environment with the session key injected. An
// explicit session replaces any ambient value.
func (c *Client) env(session model.VaultSession) []string {
	base := c.environ()
	if session.IsZero() {
		return base
	}

	prefix := SessionEnvVar + "="
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if !strings.HasPrefix(kv, prefix) {
			env = append(env, kv)
		}
	}
	return append(env, prefix+session.Key())
}

// scrub removes the secret from vault output in case the binary echoes its
// input.
func scrub(text, secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return text
	}
	return strings.ReplaceAll(text, secret, "[redacted]")
}
