package application

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

type jobServiceFixture struct {
	cache    *mockCache
	vault    *mockVault
	pipeline *mockPipeline
	runs     *mockRunStore
	console  *bytes.Buffer
	svc      *JobService
}

func newJobServiceFixture() *jobServiceFixture {
	f := &jobServiceFixture{
		cache:    newMockCache(),
		vault:    &mockVault{session: model.NewVaultSession("sess-123"), source: &mockSource{cred: testCred}},
		pipeline: &mockPipeline{},
		runs:     newMockRunStore(),
		console:  &bytes.Buffer{},
	}
	f.svc = NewJobService(f.vault, NewCredentialResolver(f.cache, discardLogger()), f.pipeline, f.runs, testItem, f.console, discardLogger())
	f.svc.now = func() time.Time { return at(8, 50, 0) }
	return f
}

func TestJobService_CacheHitBypassesVault(t *testing.T) {
	f := newJobServiceFixture()
	require.NoError(t, f.cache.Store(testItem, testCred))

	err := f.svc.RunJob(context.Background(), model.JobRequest{Action: model.ActionClockIn, DryRun: true})

	require.NoError(t, err)
	assert.Empty(t, f.vault.unlocks)
	require.Len(t, f.pipeline.requests, 1)
	assert.True(t, f.pipeline.requests[0].Session.IsZero())
	assert.True(t, f.pipeline.requests[0].DryRun)
}

func TestJobService_MissWithoutSecretFailsFast(t *testing.T) {
	for _, secret := range []string{"", "   "} {
		f := newJobServiceFixture()

		err := f.svc.RunJob(context.Background(), model.JobRequest{Action: model.ActionClockIn, MasterSecret: secret})

		assert.ErrorIs(t, err, model.ErrMasterSecretRequired)
		assert.Empty(t, f.vault.unlocks)
		assert.Empty(t, f.pipeline.requests)
	}
}

func TestJobService_UnlockSyncAndRun(t *testing.T) {
	f := newJobServiceFixture()

	err := f.svc.RunJob(context.Background(), model.JobRequest{
		Action:       model.ActionClockOut,
		MasterSecret: "correct horse",
		Headless:     true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"correct horse"}, f.vault.unlocks)
	require.Len(t, f.vault.syncs, 1)
	assert.Equal(t, "sess-123", f.vault.syncs[0].Key())
	require.Len(t, f.pipeline.requests, 1)
	req := f.pipeline.requests[0]
	assert.Equal(t, model.ActionClockOut, req.Action)
	assert.Equal(t, "sess-123", req.Session.Key())
	assert.True(t, req.Headless)
}

func TestJobService_UnlockErrorUnchanged(t *testing.T) {
	f := newJobServiceFixture()
	unlockErr := &model.VaultUnlockError{Stderr: "invalid master password"}
	f.vault.unlockErr = unlockErr

	err := f.svc.RunJob(context.Background(), model.JobRequest{Action: model.ActionClockIn, MasterSecret: "hunter2"})

	assert.Same(t, unlockErr, err)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.NotContains(t, f.console.String(), "hunter2")
	assert.Empty(t, f.pipeline.requests)
}

func TestJobService_EmptySessionKey(t *testing.T) {
	f := newJobServiceFixture()
	f.vault.session = model.VaultSession{}

	err := f.svc.RunJob(context.Background(), model.JobRequest{Action: model.ActionClockIn, MasterSecret: "hunter2"})

	assert.ErrorIs(t, err, model.ErrEmptySessionKey)
	assert.Empty(t, f.vault.syncs)
	assert.Empty(t, f.pipeline.requests)
}

func TestJobService_ConsoleLines(t *testing.T) {
	f := newJobServiceFixture()
	require.NoError(t, f.cache.Store(testItem, testCred))

	require.NoError(t, f.svc.RunJob(context.Background(), model.JobRequest{Action: model.ActionClockIn, DryRun: true}))

	lines := strings.Split(strings.TrimSpace(f.console.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[08:50:00] Job Started: in (Dry=true)", lines[0])
	assert.Equal(t, "[08:50:00] Job Completed Successfully.", lines[1])
}

func TestJobService_FailureConsoleLineAndRunHistory(t *testing.T) {
	f := newJobServiceFixture()
	require.NoError(t, f.cache.Store(testItem, testCred))
	f.pipeline.err = errors.New("portal unreachable")

	err := f.svc.RunJob(context.Background(), model.JobRequest{
		Action:  model.ActionClockOut,
		Trigger: model.TriggerScheduled,
		JobID:   "out_20260302183000",
	})

	require.Error(t, err)
	assert.Contains(t, f.console.String(), "Job Failed: portal unreachable")

	runs, _ := f.runs.ListRecent(context.Background(), 10)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Equal(t, "portal unreachable", runs[0].Error)
	assert.Equal(t, model.TriggerScheduled, runs[0].Trigger)
	assert.Equal(t, "out_20260302183000", runs[0].JobID)
}

func TestJobService_SuccessRecordsRun(t *testing.T) {
	f := newJobServiceFixture()
	require.NoError(t, f.cache.Store(testItem, testCred))

	require.NoError(t, f.svc.RunJob(context.Background(), model.JobRequest{Action: model.ActionClockIn, Trigger: model.TriggerManual}))

	runs, _ := f.runs.ListRecent(context.Background(), 10)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusSucceeded, runs[0].Status)
	assert.False(t, runs[0].FinishedAt.IsZero())
}

func TestJobService_NilRunStoreAndConsole(t *testing.T) {
	cache := newMockCache()
	require.NoError(t, cache.Store(testItem, testCred))
	svc := NewJobService(&mockVault{}, NewCredentialResolver(cache, discardLogger()), &mockPipeline{}, nil, testItem, nil, discardLogger())

	assert.NoError(t, svc.RunJob(context.Background(), model.JobRequest{Action: model.ActionClockIn, DryRun: true}))
	assert.NotPanics(t, func() { svc.FailInterruptedRuns(context.Background()) })
}

func TestJobService_FailInterruptedRuns(t *testing.T) {
	f := newJobServiceFixture()
	ctx := context.Background()
	stuck, err := f.runs.Start(ctx, model.JobRun{Action: model.ActionClockIn, Status: model.RunStatusRunning, StartedAt: at(8, 45, 0)})
	require.NoError(t, err)
	done, err := f.runs.Start(ctx, model.JobRun{Action: model.ActionClockOut, Status: model.RunStatusRunning, StartedAt: at(8, 40, 0)})
	require.NoError(t, err)
	require.NoError(t, f.runs.Finish(ctx, done, model.RunStatusSucceeded, "", at(8, 41, 0)))

	f.svc.FailInterruptedRuns(ctx)

	assert.Equal(t, model.RunStatusFailed, f.runs.runs[stuck].Status)
	assert.Contains(t, f.runs.runs[stuck].Error, "interrupted")
	assert.True(t, f.runs.runs[stuck].FinishedAt.Equal(at(8, 50, 0)))
	assert.Equal(t, model.RunStatusSucceeded, f.runs.runs[done].Status)
}
