package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/pkg/distlock"
	"github.com/ignite/videocampaign/internal/pkg/logger"
)

// RunState is the lifecycle of a managed run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunPaused    RunState = "paused"
	RunStopping  RunState = "stopping"
	RunCompleted RunState = "completed"
	RunStopped   RunState = "stopped"
	RunFailed    RunState = "failed"
)

// Done reports whether the run has finished.
func (s RunState) Done() bool {
	return s == RunCompleted || s == RunStopped || s == RunFailed
}

// RunStatus is a point-in-time view of a managed run.
type RunStatus struct {
	RunID      string                    `json:"run_id"`
	CampaignID string                    `json:"campaign_id"`
	Tier       domain.Tier               `json:"tier"`
	Retry      bool                      `json:"retry"`
	State      RunState                  `json:"state"`
	Progress   domain.BatchProgress      `json:"progress"`
	Results    []domain.ProcessingResult `json:"results,omitempty"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt *time.Time                `json:"finished_at,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// Invalidator drops cached derived data for a campaign after a run.
type Invalidator interface {
	Invalidate(ctx context.Context, campaignID string) error
}

type run struct {
	proc *Processor
	done chan struct{}

	mu     sync.Mutex
	status RunStatus
}

func (r *run) snapshot() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.status
	if s.Results != nil {
		s.Results = append([]domain.ProcessingResult(nil), s.Results...)
	}
	if s.State == RunRunning && r.proc.IsPaused() {
		s.State = RunPaused
	}
	return s
}

func (r *run) update(fn func(*RunStatus)) {
	r.mu.Lock()
	fn(&r.status)
	r.mu.Unlock()
}

// Manager runs batches in the background, one per campaign. When Redis or
// PostgreSQL is configured, a distributed lock keeps other instances from
// processing the same campaign concurrently.
type Manager struct {
	engine      Personalizer
	store       Store
	redis       *redis.Client
	db          *sql.DB
	lockTTL     time.Duration
	invalidator Invalidator
	procOpts    []Option
	newLock     func(key string) distlock.DistLock
	log         *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*run
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRedis locks campaigns through Redis.
func WithRedis(c *redis.Client) ManagerOption {
	return func(m *Manager) { m.redis = c }
}

// WithDB locks campaigns through PostgreSQL advisory locks when Redis is absent.
func WithDB(db *sql.DB) ManagerOption {
	return func(m *Manager) { m.db = db }
}

// WithLockTTL sets the lock lease. The heartbeat extends it every third of ttl.
func WithLockTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithInvalidator is notified when a run finishes.
func WithInvalidator(inv Invalidator) ManagerOption {
	return func(m *Manager) { m.invalidator = inv }
}

// WithProcessorOptions applies opts to every run's processor.
func WithProcessorOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.procOpts = append(m.procOpts, opts...) }
}

// NewManager creates a manager. Call Shutdown to stop background runs.
func NewManager(engine Personalizer, store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		engine:  engine,
		store:   store,
		lockTTL: 2 * time.Minute,
		log:     logger.Default().Named("batch-manager"),
		runs:    make(map[string]*run),
	}
	for _, o := range opts {
		o(m)
	}
	if m.newLock == nil && (m.redis != nil || m.db != nil) {
		m.newLock = func(key string) distlock.DistLock {
			return distlock.NewLock(m.redis, m.db, key, m.lockTTL)
		}
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Start launches opts as a background run and returns its initial status.
func (m *Manager) Start(ctx context.Context, opts Options) (RunStatus, error) {
	if err := validateOptions(opts.CampaignID, opts.Tier); err != nil {
		return RunStatus{}, err
	}
	return m.launch(ctx, opts.CampaignID, opts.Tier, false, len(opts.Recipients), func(runCtx context.Context, p *Processor, cb Callbacks) ([]domain.ProcessingResult, error) {
		opts.Callbacks = cb
		return p.ProcessBatch(runCtx, opts)
	}, opts.Callbacks)
}

// Retry launches a background retry over the campaign's failed recipients.
func (m *Manager) Retry(ctx context.Context, opts RetryOptions) (RunStatus, error) {
	if err := validateOptions(opts.CampaignID, opts.Tier); err != nil {
		return RunStatus{}, err
	}
	return m.launch(ctx, opts.CampaignID, opts.Tier, true, 0, func(runCtx context.Context, p *Processor, cb Callbacks) ([]domain.ProcessingResult, error) {
		opts.Callbacks = cb
		return p.RetryFailed(runCtx, opts)
	}, opts.Callbacks)
}

func validateOptions(campaignID string, tier domain.Tier) error {
	if campaignID == "" {
		return fmt.Errorf("%w: campaign_id is required", ErrInvalidOptions)
	}
	if !tier.IsValid() {
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidOptions, tier)
	}
	return nil
}

type runFunc func(ctx context.Context, p *Processor, cb Callbacks) ([]domain.ProcessingResult, error)

func (m *Manager) launch(ctx context.Context, campaignID string, tier domain.Tier, retry bool, total int, fn runFunc, user Callbacks) (RunStatus, error) {
	r := &run{
		proc: NewProcessor(m.engine, m.store, m.procOpts...),
		done: make(chan struct{}),
		status: RunStatus{
			RunID:      uuid.NewString(),
			CampaignID: campaignID,
			Tier:       tier,
			Retry:      retry,
			State:      RunRunning,
			Progress:   domain.BatchProgress{Total: total},
			StartedAt:  time.Now().UTC(),
		},
	}

	// Reserve the campaign before the lock round trip so m.mu is never held
	// across the network.
	m.mu.Lock()
	prev, ok := m.runs[campaignID]
	if ok && !prev.snapshot().State.Done() {
		m.mu.Unlock()
		return RunStatus{}, ErrCampaignBusy
	}
	m.runs[campaignID] = r
	m.wg.Add(1)
	m.mu.Unlock()

	var lock distlock.DistLock
	if m.newLock != nil {
		lock = m.newLock("batch:campaign:" + campaignID)
		acquired, err := lock.Acquire(ctx)
		if err != nil || !acquired {
			m.unreserve(r, prev)
			if err != nil {
				return RunStatus{}, fmt.Errorf("acquire campaign lock: %w", err)
			}
			return RunStatus{}, ErrCampaignBusy
		}
	}

	go m.execute(r, lock, fn, user)

	m.log.Info("batch run launched", "campaign_id", campaignID, "run_id", r.status.RunID,
		"tier", tier.String(), "retry", retry)
	return r.snapshot(), nil
}

// unreserve drops a run that never started, restoring the campaign's
// previous run for Status.
func (m *Manager) unreserve(r *run, prev *run) {
	finished := time.Now().UTC()
	r.update(func(s *RunStatus) {
		s.State = RunFailed
		s.FinishedAt = &finished
		s.Error = "campaign lock not acquired"
	})
	close(r.done)
	defer m.wg.Done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs[r.status.CampaignID] != r {
		return
	}
	if prev != nil {
		m.runs[r.status.CampaignID] = prev
	} else {
		delete(m.runs, r.status.CampaignID)
	}
}

func (m *Manager) execute(r *run, lock distlock.DistLock, fn runFunc, user Callbacks) {
	defer m.wg.Done()
	defer close(r.done)

	runCtx, cancel := context.WithCancel(m.ctx)
	defer cancel()

	campaignID := r.status.CampaignID
	if lock != nil {
		hbDone := make(chan struct{})
		defer func() {
			close(hbDone)
			if err := lock.Release(context.Background()); err != nil {
				m.log.Warn("release campaign lock", "campaign_id", campaignID, "error", err)
			}
		}()
		go m.heartbeat(runCtx, lock, r.proc, campaignID, hbDone)
	}

	cb := Callbacks{
		OnProgress: func(p domain.BatchProgress) {
			r.update(func(s *RunStatus) { s.Progress = p })
			if user.OnProgress != nil {
				user.OnProgress(p)
			}
		},
		OnRecipientComplete: user.OnRecipientComplete,
		OnError:             user.OnError,
	}

	results, err := m.safeRun(runCtx, fn, r.proc, cb)

	if m.invalidator != nil {
		if ierr := m.invalidator.Invalidate(context.Background(), campaignID); ierr != nil {
			m.log.Warn("invalidate campaign stats", "campaign_id", campaignID, "error", ierr)
		}
	}

	finished := time.Now().UTC()
	r.update(func(s *RunStatus) {
		s.Results = results
		s.FinishedAt = &finished
		switch {
		case err != nil:
			s.State = RunFailed
			s.Error = truncateError(err.Error())
		case s.State == RunStopping || len(results) < s.Progress.Total:
			s.State = RunStopped
		default:
			s.State = RunCompleted
		}
	})
	st := r.snapshot()
	m.log.Info("batch run finished", "campaign_id", campaignID, "run_id", st.RunID,
		"state", string(st.State), "completed", st.Progress.Completed, "failed", st.Progress.Failed)
}

func (m *Manager) safeRun(ctx context.Context, fn runFunc, p *Processor, cb Callbacks) (results []domain.ProcessingResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("batch run panicked: %v", rec)
		}
	}()
	return fn(ctx, p, cb)
}

// heartbeat extends the lock lease until done. A lost lease stops the run
// so two instances never process the same campaign.
func (m *Manager) heartbeat(ctx context.Context, lock distlock.DistLock, p *Processor, campaignID string, done <-chan struct{}) {
	interval := m.lockTTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Extend(ctx); err != nil {
				if errors.Is(err, distlock.ErrLockLost) {
					m.log.Error("campaign lock lost, stopping run", "campaign_id", campaignID)
					p.Stop()
					return
				}
				m.log.Warn("extend campaign lock", "campaign_id", campaignID, "error", err)
			}
		}
	}
}

func (m *Manager) active(campaignID string) (*run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[campaignID]
	if !ok || r.snapshot().State.Done() {
		return nil, ErrNoRun
	}
	return r, nil
}

// Pause suspends the campaign's run before its next recipient.
func (m *Manager) Pause(campaignID string) error {
	r, err := m.active(campaignID)
	if err != nil {
		return err
	}
	r.proc.Pause()
	return nil
}

// Resume lifts a pause.
func (m *Manager) Resume(campaignID string) error {
	r, err := m.active(campaignID)
	if err != nil {
		return err
	}
	r.proc.Resume()
	return nil
}

// Stop ends the campaign's run before its next recipient.
func (m *Manager) Stop(campaignID string) error {
	r, err := m.active(campaignID)
	if err != nil {
		return err
	}
	r.update(func(s *RunStatus) { s.State = RunStopping })
	r.proc.Stop()
	return nil
}

// Status returns the latest run for campaignID, active or finished.
func (m *Manager) Status(campaignID string) (RunStatus, bool) {
	m.mu.Lock()
	r, ok := m.runs[campaignID]
	m.mu.Unlock()
	if !ok {
		return RunStatus{}, false
	}
	return r.snapshot(), true
}

// Wait blocks until the campaign's latest run finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, campaignID string) (RunStatus, error) {
	m.mu.Lock()
	r, ok := m.runs[campaignID]
	m.mu.Unlock()
	if !ok {
		return RunStatus{}, ErrNoRun
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}
}

// Shutdown stops every active run and waits for them to finish their
// in-flight recipient. Runs still active when ctx expires are canceled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, r := range m.runs {
		r.proc.Stop()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		return ctx.Err()
	}
}
