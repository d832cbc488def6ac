package vaultcli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

const (
	testSecret  = "correct horse battery"
	testSession = "sess-123"
)

// fakeVault is a shell stand-in for the vault binary. It logs its argv to
// $ARGS_LOG so tests can assert the secret never appears there.
const fakeVault = `#!/bin/sh
echo "$@" >> "$ARGS_LOG"
case "$1" in
status)
  if [ -n "$STATUS_GARBAGE" ]; then echo 'not json'; exit 0; fi
  if [ "$BW_SESSION" = "sess-123" ]; then echo '{"status":"unlocked"}'; else echo '{"status":"locked"}'; fi
  ;;
unlock)
  read -r pw
  if [ "$pw" = "correct horse battery" ]; then printf 'sess-123\n'; exit 0; fi
  if [ -n "$ECHO_SECRET" ]; then echo "invalid master password: $pw" >&2; exit 1; fi
  echo "invalid master password" >&2
  exit 1
  ;;
get)
  if [ "$BW_SESSION" != "sess-123" ]; then echo "Vault is locked." >&2; exit 1; fi
  case "$3" in
  portal) echo '{"login":{"username":"alice","password":"s3cret"}}' ;;
  nopass) echo '{"login":{"username":"alice","password":null}}' ;;
  garbage) echo 'not json' ;;
  *) echo "Not found." >&2; exit 4 ;;
  esac
  ;;
sync)
  if [ -n "$FAIL_SYNC" ]; then echo "sync failed" >&2; exit 2; fi
  echo "Syncing complete."
  ;;
esac
`

// setupFakeVault writes the fake binary and returns a Client pointed at it
// with a controlled environment.
func setupFakeVault(t *testing.T, extraEnv ...string) (*Client, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake vault binary is a POSIX shell script")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "bw")
	require.NoError(t, os.WriteFile(bin, []byte(fakeVault), 0o755))
	argsLog := filepath.Join(dir, "args.log")

	c := NewClient(bin, slog.Default())
	env := []string{"PATH=" + os.Getenv("PATH"), "ARGS_LOG=" + argsLog}
	env = append(env, extraEnv...)
	c.environ = func() []string { return env }

	return c, argsLog
}

func TestResolveBinaryPath_Override(t *testing.T) {
	assert.Equal(t, "/opt/vault/bw", ResolveBinaryPath("/opt/vault/bw"))
}

func TestResolveBinaryPath_Fallback(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	assert.Equal(t, fallbackBinaryPath, ResolveBinaryPath(""))
}

func TestResolveBinaryPath_PathLookup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("PATH lookup of a shell script")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "bw")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	assert.Equal(t, bin, ResolveBinaryPath(""))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name    string
		session model.VaultSession
		env     []string
		want    model.VaultStatus
	}{
		{name: "unlocked with session", session: model.NewVaultSession(testSession), want: model.VaultStatusUnlocked},
		{name: "locked without session", want: model.VaultStatusLocked},
		{name: "ambient session", env: []string{"BW_SESSION=" + testSession}, want: model.VaultStatusUnlocked},
		{name: "unparseable output", env: []string{"STATUS_GARBAGE=1"}, want: model.VaultStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setupFakeVault(t, tt.env...)
			assert.Equal(t, tt.want, c.Status(context.Background(), tt.session))
		})
	}
}

func TestStatus_MissingBinary(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "does-not-exist"), slog.Default())

	assert.Equal(t, model.VaultStatusError, c.Status(context.Background(), model.VaultSession{}))
}

func TestUnlock_Success(t *testing.T) {
	c, argsLog := setupFakeVault(t)

	session, err := c.Unlock(context.Background(), testSecret)

	require.NoError(t, err)
	assert.Equal(t, testSession, session.Key())

	args, err := os.ReadFile(argsLog)
	require.NoError(t, err)
	assert.Contains(t, string(args), "unlock --raw")
	assert.NotContains(t, string(args), testSecret, "secret must never be passed as an argument")
}

func TestUnlock_SecretWithTrailingNewline(t *testing.T) {
	c, _ := setupFakeVault(t)

	session, err := c.Unlock(context.Background(), testSecret+"\n")

	require.NoError(t, err)
	assert.Equal(t, testSession, session.Key())
}

func TestUnlock_Rejected(t *testing.T) {
	c, _ := setupFakeVault(t)
	secret := "wrong-secret-literal"

	_, err := c.Unlock(context.Background(), secret)

	require.Error(t, err)
	var unlockErr *model.VaultUnlockError
	require.True(t, errors.As(err, &unlockErr))
	assert.Contains(t, err.Error(), "invalid master password")
	assert.NotContains(t, err.Error(), secret)
}

func TestUnlock_EchoedSecretIsScrubbed(t *testing.T) {
	c, _ := setupFakeVault(t, "ECHO_SECRET=1")
	secret := "wrong-secret-literal"

	_, err := c.Unlock(context.Background(), secret)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid master password")
	assert.NotContains(t, err.Error(), secret)
	assert.Contains(t, err.Error(), "[redacted]")
}

func TestGetLoginItem(t *testing.T) {
	session := model.NewVaultSession(testSession)

	tests := []struct {
		name      string
		item      string
		session   model.VaultSession
		want      model.Credential
		wantErrAs any
	}{
		{name: "success", item: "portal", session: session, want: model.Credential{Username: "alice", Password: "s3cret"}},
		{name: "missing password", item: "nopass", session: session, wantErrAs: new(*model.CredentialNotFoundError)},
		{name: "unparseable output", item: "garbage", session: session, wantErrAs: new(*model.CredentialNotFoundError)},
		{name: "unknown item", item: "nothing", session: session, wantErrAs: new(*model.VaultCommandError)},
		{name: "locked vault", item: "portal", wantErrAs: new(*model.VaultCommandError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setupFakeVault(t)

			cred, err := c.GetLoginItem(context.Background(), tt.session, tt.item)

			if tt.wantErrAs != nil {
				require.Error(t, err)
				assert.True(t, errors.As(err, tt.wantErrAs), "unexpected error type %T", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cred)
		})
	}
}

func TestGetLoginItem_CommandErrorCarriesStderr(t *testing.T) {
	c, _ := setupFakeVault(t)

	_, err := c.GetLoginItem(context.Background(), model.NewVaultSession(testSession), "nothing")

	var cmdErr *model.VaultCommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 4, cmdErr.ExitCode)
	assert.Equal(t, "Not found.", cmdErr.Stderr)
}

func TestGetLoginItem_ExplicitSessionOverridesAmbient(t *testing.T) {
	c, _ := setupFakeVault(t, "BW_SESSION=stale")

	cred, err := c.GetLoginItem(context.Background(), model.NewVaultSession(testSession), "portal")

	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
}

func TestSync(t *testing.T) {
	c, _ := setupFakeVault(t)
	assert.True(t, c.Sync(context.Background(), model.NewVaultSession(testSession)))

	failing, _ := setupFakeVault(t, "FAIL_SYNC=1")
	assert.False(t, failing.Sync(context.Background(), model.NewVaultSession(testSession)))
}

func TestBind(t *testing.T) {
	c, _ := setupFakeVault(t)

	src := c.Bind(model.NewVaultSession(testSession))
	cred, err := src.GetLoginItem(context.Background(), "portal")

	require.NoError(t, err)
	assert.Equal(t, model.Credential{Username: "alice", Password: "s3cret"}, cred)
}

func TestEnv_InjectsSession(t *testing.T) {
	c := &Client{environ: func() []string { return []string{"HOME=/root", "BW_SESSION=old"} }}

	env := c.env(model.NewVaultSession("new"))

	assert.Equal(t, []string{"HOME=/root", "BW_SESSION=new"}, env)
	assert.Equal(t, []string{"HOME=/root", "BW_SESSION=old"}, c.env(model.VaultSession{}))
}

func TestScrub(t *testing.T) {
	assert.Equal(t, "bad [redacted] here", scrub("bad hunter2 here", "hunter2\n"))
	assert.Equal(t, "unchanged", scrub("unchanged", ""))
	assert.False(t, strings.Contains(scrub("hunter2", "hunter2"), "hunter2"))
}
