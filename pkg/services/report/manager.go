package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrJobInFlight is returned when a generation is requested for a config
// that already has a running job. Triggers are rejected, never queued.
var ErrJobInFlight = errors.New("a generation job is already in flight for this config")

// ErrJobNotFound is returned for lookups of unknown job ids.
var ErrJobNotFound = errors.New("generation job not found")

// CompletionFunc runs after a job reaches completed, with the config
// snapshot the job was generated from.
type CompletionFunc func(cfg domain.ReportConfig, job domain.GenerationJob)

// Manager owns job lifecycles. It enforces single-flight per config id
// process-locally; horizontal scaling would need a distributed lock in
// its place.
type Manager struct {
	store    *ConfigStore
	builder  *Builder
	pipeline *Pipeline

	mu       sync.Mutex
	jobs     map[string]domain.GenerationJob
	cancels  map[string]context.CancelFunc
	inflight map[string]string

	onComplete CompletionFunc
	now        func() time.Time
}

func NewManager(store *ConfigStore, builder *Builder, pipeline *Pipeline) *Manager {
	return &Manager{
		store:    store,
		builder:  builder,
		pipeline: pipeline,
		jobs:     make(map[string]domain.GenerationJob),
		cancels:  make(map[string]context.CancelFunc),
		inflight: make(map[string]string),
		now:      time.Now,
	}
}

// SetOnComplete registers the delivery hook. Must be called before any
// job starts.
func (m *Manager) SetOnComplete(fn CompletionFunc) {
	m.onComplete = fn
}

// Generate validates the config for the actor and starts a job on its
// snapshot. A config with validation issues never starts generating.
func (m *Manager) Generate(
	ctx context.Context,
	actor domain.StakeholderAccount,
	configID string,
) (domain.GenerationJob, error) {
	cfg, err := m.store.Get(configID)
	if err != nil {
		return domain.GenerationJob{}, err
	}

	if issues := m.builder.Validate(actor, cfg); len(issues) > 0 {
		return domain.GenerationJob{}, &ValidationError{Issues: issues}
	}

	return m.start(ctx, cfg)
}

// GenerateScheduled starts a job for a scheduled config on trigger.
// The config was validated when it was scheduled; triggers arriving
// while a job is in flight are dropped with ErrJobInFlight.
func (m *Manager) GenerateScheduled(ctx context.Context, configID string) (domain.GenerationJob, error) {
	cfg, err := m.store.Get(configID)
	if err != nil {
		return domain.GenerationJob{}, err
	}
	if cfg.Status != domain.StatusScheduled {
		return domain.GenerationJob{}, fmt.Errorf("config %s is not scheduled (status %s)", configID, cfg.Status)
	}
	return m.start(ctx, cfg)
}

// Schedule validates the config and marks it scheduled. The recurrence
// rule itself lives with the scheduler.
func (m *Manager) Schedule(actor domain.StakeholderAccount, configID string) (domain.ReportConfig, error) {
	cfg, err := m.store.Get(configID)
	if err != nil {
		return domain.ReportConfig{}, err
	}
	if issues := m.builder.Validate(actor, cfg); len(issues) > 0 {
		return domain.ReportConfig{}, &ValidationError{Issues: issues}
	}

	return m.store.Update(configID, func(c *domain.ReportConfig) error {
		if c.Status == domain.StatusGenerating {
			return ErrJobInFlight
		}
		c.Status = domain.StatusScheduled
		c.UpdatedAt = m.now()
		return nil
	})
}

func (m *Manager) start(ctx context.Context, cfg domain.ReportConfig) (domain.GenerationJob, error) {
	m.mu.Lock()
	if _, running := m.inflight[cfg.ID]; running {
		m.mu.Unlock()
		return domain.GenerationJob{}, ErrJobInFlight
	}

	snapshot := cfg.Clone()
	job := domain.GenerationJob{
		ID:        uuid.NewString(),
		ConfigID:  cfg.ID,
		StartedAt: m.now(),
		Status:    domain.JobValidating,
	}

	// Detach from the request context so the caller returning does not
	// kill the run, but keep its values (logger) attached.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	m.jobs[job.ID] = job
	m.inflight[cfg.ID] = job.ID
	m.cancels[job.ID] = cancel
	m.mu.Unlock()

	prevStatus := cfg.Status
	if _, err := m.store.Update(cfg.ID, func(c *domain.ReportConfig) error {
		c.Status = domain.StatusGenerating
		return nil
	}); err != nil {
		m.release(job.ID, cfg.ID)
		cancel()
		return domain.GenerationJob{}, err
	}

	go m.run(jobCtx, cancel, snapshot, job, prevStatus)

	return job.Clone(), nil
}

func (m *Manager) run(
	ctx context.Context,
	cancel context.CancelFunc,
	snapshot domain.ReportConfig,
	job domain.GenerationJob,
	prevStatus domain.ConfigStatus,
) {
	defer cancel()

	final := m.pipeline.Run(ctx, snapshot, job, m.publish)

	m.release(final.ID, final.ConfigID)

	next := configStatusAfter(final.Status, prevStatus)
	if _, err := m.store.Update(final.ConfigID, func(c *domain.ReportConfig) error {
		c.Status = next
		return nil
	}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("config", final.ConfigID).Msg("failed to update config status")
	}

	if final.Status == domain.JobCompleted && m.onComplete != nil {
		m.onComplete(snapshot, final.Clone())
	}
}

// configStatusAfter restores a scheduled config to scheduled so later
// triggers keep firing; one-off configs keep the terminal status.
func configStatusAfter(jobStatus domain.JobStatus, prev domain.ConfigStatus) domain.ConfigStatus {
	if prev == domain.StatusScheduled {
		return domain.StatusScheduled
	}
	switch jobStatus {
	case domain.JobCompleted:
		return domain.StatusCompleted
	case domain.JobFailed:
		return domain.StatusFailed
	default:
		return prev
	}
}

func (m *Manager) release(jobID, configID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, jobID)
	if m.inflight[configID] == jobID {
		delete(m.inflight, configID)
	}
}

func (m *Manager) publish(job domain.GenerationJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
}

// Cancel requests cooperative cancellation of a running job. The job
// keeps running until the next stage boundary.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, ok := m.cancels[jobID]
	if !ok {
		return fmt.Errorf("job %s is not running", jobID)
	}
	cancel()
	return nil
}

// Job returns the latest published snapshot of a job. It answers even
// for failed or mid-flight jobs so callers can show partial progress.
func (m *Manager) Job(jobID string) (domain.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return domain.GenerationJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job.Clone(), nil
}

// InFlight reports whether a job is currently running for the config.
func (m *Manager) InFlight(configID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[configID]
	return ok
}
