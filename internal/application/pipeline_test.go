package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

type pipelineFixture struct {
	cache   *mockCache
	vault   *mockVault
	portal  *mockPortal
	browser *mockBrowser
	p       *JobPipeline
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		cache:  newMockCache(),
		vault:  &mockVault{source: &mockSource{cred: testCred}},
		portal: &mockPortal{},
	}
	f.browser = &mockBrowser{portal: f.portal}
	f.p = NewJobPipeline(NewCredentialResolver(f.cache, discardLogger()), f.vault, f.browser, testItem, discardLogger())
	f.p.now = func() time.Time { return at(8, 50, 0) }
	return f
}

func TestJobPipeline_DryRunThreadedToPunch(t *testing.T) {
	f := newPipelineFixture()

	ok, err := f.p.RunProcess(context.Background(), ProcessRequest{Action: model.ActionClockIn, DryRun: true, Headless: true})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, f.portal.logins)
	assert.Equal(t, []model.Action{model.ActionClockIn}, f.portal.punches)
	assert.Equal(t, []bool{true}, f.portal.dryRuns)
	assert.Equal(t, []bool{true}, f.browser.headless)
	assert.Equal(t, 1, f.browser.closed)
}

func TestJobPipeline_ClockOutLive(t *testing.T) {
	f := newPipelineFixture()

	ok, err := f.p.RunProcess(context.Background(), ProcessRequest{Action: model.ActionClockOut})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []model.Action{model.ActionClockOut}, f.portal.punches)
	assert.Equal(t, []bool{false}, f.portal.dryRuns)
}

func TestJobPipeline_BindsSessionOnlyOnCacheMiss(t *testing.T) {
	f := newPipelineFixture()
	session := model.NewVaultSession("sess-123")

	_, err := f.p.RunProcess(context.Background(), ProcessRequest{Action: model.ActionClockIn, DryRun: true, Session: session})
	require.NoError(t, err)
	require.Len(t, f.vault.binds, 1)
	assert.Equal(t, session, f.vault.binds[0])

	_, err = f.p.RunProcess(context.Background(), ProcessRequest{Action: model.ActionClockIn, DryRun: true})
	require.NoError(t, err)
	assert.Len(t, f.vault.binds, 1, "cached credential must not touch the vault")
}

func TestJobPipeline_CredentialErrorStopsBeforeBrowser(t *testing.T) {
	f := newPipelineFixture()
	vaultErr := &model.VaultCommandError{Command: "get item", ExitCode: 1, Stderr: "Vault is locked."}
	f.vault.source.err = vaultErr

	ok, err := f.p.RunProcess(context.Background(), ProcessRequest{Action: model.ActionClockIn})

	assert.False(t, ok)
	assert.Same(t, vaultErr, err)
	assert.Zero(t, f.browser.sessions)
}

func TestJobPipeline_LoginErrorPropagatesUnchanged(t *testing.T) {
	f := newPipelineFixture()
	loginErr := &model.ElementTimeoutError{Phase: "login_timeout", Selector: "#id", Err: errors.New("deadline")}
	f.portal.loginErr = loginErr

	ok, err := f.p.RunProcess(context.Background(), ProcessRequest{Action: model.ActionClockIn})

	assert.False(t, ok)
	assert.Same(t, loginErr, err)
	assert.Empty(t, f.portal.punches)
	assert.Equal(t, 1, f.browser.closed)
}

func TestJobPipeline_LaunchError(t *testing.T) {
	f := newPipelineFixture()
	f.browser.launchErr = errors.New("chrome not found")

	_, err := f.p.RunProcess(context.Background(), ProcessRequest{Action: model.ActionClockIn})

	var launchErr *model.BrowserLaunchError
	assert.True(t, errors.As(err, &launchErr))
}

func TestJobPipeline_UnknownAction(t *testing.T) {
	f := newPipelineFixture()

	ok, err := f.p.RunProcess(context.Background(), ProcessRequest{Action: model.Action("lunch")})

	assert.False(t, ok)
	assert.Error(t, err)
	assert.Zero(t, f.browser.sessions)
}

func TestJobPipeline_OutsideWindowStillRuns(t *testing.T) {
	f := newPipelineFixture()
	f.p.now = func() time.Time { return at(3, 0, 0) }

	ok, err := f.p.RunProcess(context.Background(), ProcessRequest{Action: model.ActionClockIn, DryRun: true})

	require.NoError(t, err)
	assert.True(t, ok)
}
