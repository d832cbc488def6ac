package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
	"github.com/ericfisherdev/autopunch/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

const testItem = "TouchOnTime"

var testCred = model.Credential{Username: "alice", Password: "s3cret"}

// --- credential cache ---

type mockCache struct {
	mu       sync.Mutex
	entries  map[string]model.Credential
	storeErr error
	stores   int
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[string]model.Credential{}}
}

func (m *mockCache) Lookup(item string) (model.Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.entries[item]
	return c, ok
}

func (m *mockCache) Store(item string, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.entries[item] = cred
	return nil
}

func (m *mockCache) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string]model.Credential{}
	return nil
}

// --- credential source ---

type mockSource struct {
	cred  model.Credential
	err   error
	calls int
}

func (m *mockSource) GetLoginItem(_ context.Context, _ string) (model.Credential, error) {
	m.calls++
	return m.cred, m.err
}

// --- vault ---

type mockVault struct {
	mu        sync.Mutex
	status    model.VaultStatus
	statusN   int
	session   model.VaultSession
	unlockErr error
	unlocks   []string
	syncs     []model.VaultSession
	binds     []model.VaultSession
	source    *mockSource
}

func (m *mockVault) Status(context.Context, model.VaultSession) model.VaultStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusN++
	return m.status
}

func (m *mockVault) Unlock(_ context.Context, secret string) (model.VaultSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocks = append(m.unlocks, secret)
	return m.session, m.unlockErr
}

func (m *mockVault) GetLoginItem(ctx context.Context, _ model.VaultSession, item string) (model.Credential, error) {
	return m.source.GetLoginItem(ctx, item)
}

func (m *mockVault) Sync(_ context.Context, session model.VaultSession) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs = append(m.syncs, session)
	return true
}

func (m *mockVault) Bind(session model.VaultSession) driven.CredentialSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binds = append(m.binds, session)
	return m.source
}

// --- browser ---

type mockPortal struct {
	loginErr error
	punchErr error
	logins   int
	punches  []model.Action
	dryRuns  []bool
}

func (m *mockPortal) Login(context.Context, model.Credential) error {
	m.logins++
	return m.loginErr
}

func (m *mockPortal) ClockIn(_ context.Context, dryRun bool) (model.PunchReport, error) {
	return m.punch(model.ActionClockIn, dryRun)
}

func (m *mockPortal) ClockOut(_ context.Context, dryRun bool) (model.PunchReport, error) {
	return m.punch(model.ActionClockOut, dryRun)
}

func (m *mockPortal) punch(action model.Action, dryRun bool) (model.PunchReport, error) {
	m.punches = append(m.punches, action)
	m.dryRuns = append(m.dryRuns, dryRun)
	if m.punchErr != nil {
		return model.PunchReport{Action: action, DryRun: dryRun}, m.punchErr
	}
	return model.PunchReport{Action: action, DryRun: dryRun, Clicked: !dryRun}, nil
}

type mockBrowser struct {
	portal    *mockPortal
	launchErr error
	sessions  int
	headless  []bool
	closed    int
}

func (m *mockBrowser) WithSession(_ context.Context, headless bool, fn func(driven.PortalSession) error) error {
	m.sessions++
	m.headless = append(m.headless, headless)
	if m.launchErr != nil {
		return &model.BrowserLaunchError{Err: m.launchErr}
	}
	defer func() { m.closed++ }()
	return fn(m.portal)
}

// --- pipeline ---

type mockPipeline struct {
	mu       sync.Mutex
	requests []ProcessRequest
	err      error
}

func (m *mockPipeline) RunProcess(_ context.Context, req ProcessRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return false, m.err
	}
	return true, nil
}

// --- run history ---

type mockRunStore struct {
	mu   sync.Mutex
	runs map[int64]*model.JobRun
	next int64
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: map[int64]*model.JobRun{}}
}

func (m *mockRunStore) Start(_ context.Context, run model.JobRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	run.ID = m.next
	m.runs[run.ID] = &run
	return run.ID, nil
}

func (m *mockRunStore) Finish(_ context.Context, id int64, status model.RunStatus, errMsg string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return errors.New("unknown run")
	}
	run.Status = status
	run.Error = errMsg
	run.FinishedAt = finishedAt
	return nil
}

func (m *mockRunStore) ListRecent(_ context.Context, _ int) ([]model.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.JobRun
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockRunStore) FailRunning(_ context.Context, errMsg string, finishedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, run := range m.runs {
		if run.Status == model.RunStatusRunning {
			run.Status = model.RunStatusFailed
			run.Error = errMsg
			run.FinishedAt = finishedAt
			n++
		}
	}
	return n, nil
}

// --- scheduled jobs ---

type mockJobStore struct {
	mu   sync.Mutex
	jobs map[string]model.ScheduledJob
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: map[string]model.ScheduledJob{}}
}

func (m *mockJobStore) Add(_ context.Context, job model.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return driven.ErrJobExists
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobStore) Get(_ context.Context, id string) (*model.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (m *mockJobStore) ListAll(_ context.Context) ([]model.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ScheduledJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].RunAt.Before(out[k].RunAt) })
	return out, nil
}

func (m *mockJobStore) ListDue(ctx context.Context, now time.Time) ([]model.ScheduledJob, error) {
	all, _ := m.ListAll(ctx)
	var due []model.ScheduledJob
	for _, j := range all {
		if j.Status == model.JobStatusPending && !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	return due, nil
}

func (m *mockJobStore) UpdateStatus(_ context.Context, id string, status model.JobStatus, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return driven.ErrJobNotFound
	}
	job.Status = status
	job.LastError = lastError
	m.jobs[id] = job
	return nil
}

func (m *mockJobStore) FailRunning(_ context.Context, lastError string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, job := range m.jobs {
		if job.Status == model.JobStatusRunning {
			job.Status = model.JobStatusFailed
			job.LastError = lastError
			m.jobs[id] = job
			n++
		}
	}
	return n, nil
}

func (m *mockJobStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return driven.ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *mockJobStore) status(id string) model.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].Status
}

func (m *mockJobStore) lastError(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].LastError
}

// --- job runner ---

type mockRunner struct {
	mu       sync.Mutex
	requests []model.JobRequest
	err      error
	block    chan struct{} // when set, RunJob waits until it is closed
}

func (m *mockRunner) RunJob(_ context.Context, req model.JobRequest) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.err
}

func (m *mockRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// --- secrets ---

type staticSecret string

func (s staticSecret) Get() (string, bool) {
	return string(s), s != ""
}
