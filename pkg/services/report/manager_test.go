package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type managerFixture struct {
	store   *ConfigStore
	builder *Builder
	agg     *stubAggregator
	manager *Manager
}

func setupManager(t *testing.T, agg *stubAggregator) *managerFixture {
	t.Helper()
	builder := newTestBuilder()
	store := NewConfigStore()
	manager := NewManager(store, builder, newTestPipeline(t, agg))
	return &managerFixture{store: store, builder: builder, agg: agg, manager: manager}
}

func (f *managerFixture) addDraft(t *testing.T) domain.ReportConfig {
	t.Helper()
	cfg := validDraft(t, f.builder)
	require.NoError(t, f.store.Add(cfg))
	return cfg
}

func waitForJob(t *testing.T, m *Manager, jobID string, want domain.JobStatus) domain.GenerationJob {
	t.Helper()
	var job domain.GenerationJob
	require.Eventually(t, func() bool {
		var err error
		job, err = m.Job(jobID)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %s never reached %s", jobID, want)
	return job
}

func TestManager_GenerateCompletes(t *testing.T) {
	f := setupManager(t, newStubAggregator())
	cfg := f.addDraft(t)

	job, err := f.manager.Generate(context.Background(), boardActor(), cfg.ID)
	require.NoError(t, err)

	final := waitForJob(t, f.manager, job.ID, domain.JobCompleted)
	assert.NotEmpty(t, final.Artifacts)

	stored, err := f.store.Get(cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestManager_InvalidConfigNeverStarts(t *testing.T) {
	f := setupManager(t, newStubAggregator())
	cfg := validDraft(t, f.builder)
	cfg.Recipients = nil
	require.NoError(t, f.store.Add(cfg))

	_, err := f.manager.Generate(context.Background(), boardActor(), cfg.ID)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, f.manager.InFlight(cfg.ID))

	stored, _ := f.store.Get(cfg.ID)
	assert.Equal(t, domain.StatusDraft, stored.Status)
}

func TestManager_SingleFlightPerConfig(t *testing.T) {
	agg := newStubAggregator()
	agg.gate = make(chan struct{})
	f := setupManager(t, agg)
	cfg := f.addDraft(t)

	job, err := f.manager.Generate(context.Background(), boardActor(), cfg.ID)
	require.NoError(t, err)
	require.True(t, f.manager.InFlight(cfg.ID))

	// A second generate while the first is running is rejected, not queued.
	_, err = f.manager.Generate(context.Background(), boardActor(), cfg.ID)
	assert.ErrorIs(t, err, ErrJobInFlight)

	close(agg.gate)
	waitForJob(t, f.manager, job.ID, domain.JobCompleted)
	assert.False(t, f.manager.InFlight(cfg.ID))
}

func TestManager_ScheduledTriggerDroppedWhileInFlight(t *testing.T) {
	agg := newStubAggregator()
	agg.gate = make(chan struct{})
	f := setupManager(t, agg)
	cfg := f.addDraft(t)

	_, err := f.manager.Schedule(boardActor(), cfg.ID)
	require.NoError(t, err)

	job, err := f.manager.GenerateScheduled(context.Background(), cfg.ID)
	require.NoError(t, err)

	_, err = f.manager.GenerateScheduled(context.Background(), cfg.ID)
	assert.ErrorIs(t, err, ErrJobInFlight)

	close(agg.gate)
	waitForJob(t, f.manager, job.ID, domain.JobCompleted)

	// Scheduled configs return to scheduled so the next trigger fires.
	stored, _ := f.store.Get(cfg.ID)
	assert.Equal(t, domain.StatusScheduled, stored.Status)
}

func TestManager_GenerateScheduledRequiresScheduledStatus(t *testing.T) {
	f := setupManager(t, newStubAggregator())
	cfg := f.addDraft(t)

	_, err := f.manager.GenerateScheduled(context.Background(), cfg.ID)
	assert.Error(t, err)
}

func TestManager_SnapshotIsolation(t *testing.T) {
	agg := newStubAggregator()
	agg.gate = make(chan struct{})
	f := setupManager(t, agg)
	cfg := f.addDraft(t)

	job, err := f.manager.Generate(context.Background(), boardActor(), cfg.ID)
	require.NoError(t, err)

	// Concurrent edits to the stored config must not reach the running job.
	_, err = f.store.Update(cfg.ID, func(c *domain.ReportConfig) error {
		c.Title = "Edited Mid-Flight"
		c.Formats = []domain.ExportFormat{domain.FormatCSV, domain.FormatExcel}
		return nil
	})
	require.NoError(t, err)

	close(agg.gate)
	final := waitForJob(t, f.manager, job.ID, domain.JobCompleted)

	require.Len(t, final.Artifacts, 1, "job renders the snapshot's single format")
	assert.Equal(t, domain.FormatPDF, final.Artifacts[0].Format)
}

func TestManager_CancelRunningJob(t *testing.T) {
	agg := newStubAggregator()
	agg.gate = make(chan struct{})
	f := setupManager(t, agg)
	cfg := f.addDraft(t)

	job, err := f.manager.Generate(context.Background(), boardActor(), cfg.ID)
	require.NoError(t, err)

	require.NoError(t, f.manager.Cancel(job.ID))

	final := waitForJob(t, f.manager, job.ID, domain.JobCancelled)
	assert.Empty(t, final.Artifacts)
	assert.False(t, f.manager.InFlight(cfg.ID))

	stored, _ := f.store.Get(cfg.ID)
	assert.Equal(t, domain.StatusDraft, stored.Status, "cancellation restores the prior status")

	assert.Error(t, f.manager.Cancel(job.ID), "cancelling a finished job errors")
}

func TestManager_JobStatusAvailableMidFlight(t *testing.T) {
	agg := newStubAggregator()
	agg.gate = make(chan struct{})
	f := setupManager(t, agg)
	cfg := f.addDraft(t)

	job, err := f.manager.Generate(context.Background(), boardActor(), cfg.ID)
	require.NoError(t, err)
	t.Cleanup(func() {
		close(agg.gate)
		require.Eventually(t, func() bool { return !f.manager.InFlight(cfg.ID) }, 5*time.Second, 10*time.Millisecond)
	})

	mid, err := f.manager.Job(job.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.JobStatus{domain.JobValidating, domain.JobGenerating}, mid.Status)
	assert.LessOrEqual(t, mid.Progress(), 1.0)
}

func TestManager_CompletionHookReceivesSnapshot(t *testing.T) {
	f := setupManager(t, newStubAggregator())
	cfg := f.addDraft(t)

	var mu sync.Mutex
	var gotCfg domain.ReportConfig
	var gotJob domain.GenerationJob
	f.manager.SetOnComplete(func(c domain.ReportConfig, j domain.GenerationJob) {
		mu.Lock()
		defer mu.Unlock()
		gotCfg, gotJob = c, j
	})

	job, err := f.manager.Generate(context.Background(), boardActor(), cfg.ID)
	require.NoError(t, err)
	waitForJob(t, f.manager, job.ID, domain.JobCompleted)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotJob.ID == job.ID
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, cfg.ID, gotCfg.ID)
	assert.NotEmpty(t, gotJob.Artifacts)
}
