package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/pkg/logger"
	"github.com/ignite/videocampaign/internal/storage"
)

// Personalizer produces content for one recipient and reports tier costs.
// *personalize.Engine satisfies it.
type Personalizer interface {
	PersonalizeForRecipient(ctx context.Context, r domain.Recipient, tier domain.Tier, scriptTemplate, visualStyle string) (*domain.PersonalizedContent, error)
	TierCost(tier domain.Tier) float64
}

// Store is the recipient persistence the processor writes through.
// *recipient.Service satisfies it.
type Store interface {
	UpdateRecipientStatus(ctx context.Context, id string, status domain.RecipientStatus, u *domain.StatusUpdate) error
	ListRecipientsByStatus(ctx context.Context, campaignID string, status domain.RecipientStatus) ([]domain.Recipient, error)
}

// Callbacks receive progress and per-recipient outcomes. Any may be nil.
// They run on the batch goroutine, in recipient order.
type Callbacks struct {
	OnProgress          func(domain.BatchProgress)
	OnRecipientComplete func(domain.Recipient, domain.ProcessingResult)
	OnError             func(domain.Recipient, error)
}

// Options describes one batch run.
type Options struct {
	CampaignID     string
	Recipients     []domain.Recipient
	Tier           domain.Tier
	ScriptTemplate string
	VisualStyle    string
	MasterAsset    *domain.MasterAsset
	Callbacks      Callbacks
}

// RetryOptions describes a retry pass over a campaign's failed recipients.
type RetryOptions struct {
	CampaignID     string
	Tier           domain.Tier
	ScriptTemplate string
	VisualStyle    string
	MasterAsset    *domain.MasterAsset
	Callbacks      Callbacks
}

// Processor runs batches sequentially. One Processor runs at most one batch
// at a time; Pause, Resume and Stop may be called from any goroutine.
type Processor struct {
	engine    Personalizer
	store     Store
	artifacts storage.ArtifactStore
	log       *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	paused  bool
	stopped bool
	resume  chan struct{} // non-nil while paused, closed on resume or stop
}

// Option configures a Processor.
type Option func(*Processor)

// WithArtifactStore writes each ready recipient's content manifest to s.
func WithArtifactStore(s storage.ArtifactStore) Option {
	return func(p *Processor) { p.artifacts = s }
}

// WithLogger replaces the processor logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Processor) { p.log = l }
}

// WithClock replaces time.Now for timing and ETA.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a processor over engine and store.
func NewProcessor(engine Personalizer, store Store, opts ...Option) *Processor {
	p := &Processor{
		engine: engine,
		store:  store,
		log:    logger.Default().Named("batch"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// IsRunning reports whether a batch loop is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// IsPaused reports whether a pause is in effect.
func (p *Processor) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Pause suspends the loop before the next recipient.
func (p *Processor) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.stopped {
		return
	}
	p.paused = true
	p.resume = make(chan struct{})
}

// Resume lifts a pause.
func (p *Processor) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearPauseLocked()
}

// Stop ends the batch before the next recipient and clears any pause.
// Control calls made while idle apply to the next batch.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.clearPauseLocked()
}

func (p *Processor) clearPauseLocked() {
	if !p.paused {
		return
	}
	p.paused = false
	close(p.resume)
	p.resume = nil
}

// halted reports a stop request or a done context.
func (p *Processor) halted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// waitWhilePaused blocks while paused. It returns true when the batch must
// end instead of continuing.
func (p *Processor) waitWhilePaused(ctx context.Context) bool {
	for {
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return true
		}
		if !p.paused {
			p.mu.Unlock()
			return ctx.Err() != nil
		}
		ch := p.resume
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return true
		}
	}
}

// ProcessBatch processes opts.Recipients in order and returns one result per
// attempted recipient. Per-recipient failures are reported in the results and
// through OnError, never as the returned error. The error is non-nil only
// when this processor is already running a batch.
func (p *Processor) ProcessBatch(ctx context.Context, opts Options) ([]domain.ProcessingResult, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrBatchRunning
	}
	p.running = true
	p.mu.Unlock()

	activeBatches.Inc()
	defer func() {
		activeBatches.Dec()
		p.mu.Lock()
		p.running = false
		p.stopped = false
		p.clearPauseLocked()
		p.mu.Unlock()
	}()

	total := len(opts.Recipients)
	results := make([]domain.ProcessingResult, 0, total)
	started := p.now()
	succeeded, failed := 0, 0

	p.log.Info("batch started", "campaign_id", opts.CampaignID, "tier", opts.Tier.String(), "total", total)

	for _, r := range opts.Recipients {
		if p.halted(ctx) || p.waitWhilePaused(ctx) {
			p.log.Info("batch stopped early", "campaign_id", opts.CampaignID,
				"processed", len(results), "total", total)
			break
		}

		processed := succeeded + failed
		p.emitProgress(opts.Callbacks, domain.BatchProgress{
			Total:                  total,
			Completed:              succeeded,
			Failed:                 failed,
			InProgress:             1,
			EstimatedTimeRemaining: estimateRemaining(p.now().Sub(started), processed, total-processed),
			CurrentRecipient:       r.DisplayName(),
		})

		result := p.attempt(ctx, r, opts)
		results = append(results, result)

		if result.Success {
			succeeded++
			p.safeCallback(func() {
				if opts.Callbacks.OnRecipientComplete != nil {
					opts.Callbacks.OnRecipientComplete(r, result)
				}
			})
		} else {
			failed++
			p.safeCallback(func() {
				if opts.Callbacks.OnError != nil {
					opts.Callbacks.OnError(r, errors.New(result.Error))
				}
			})
		}
	}

	p.emitProgress(opts.Callbacks, domain.BatchProgress{
		Total:     total,
		Completed: succeeded,
		Failed:    failed,
	})

	p.log.Info("batch finished", "campaign_id", opts.CampaignID, "tier", opts.Tier.String(),
		"total", total, "succeeded", succeeded, "failed", failed, "duration", p.now().Sub(started))
	return results, nil
}

// RetryFailed runs a fresh batch over the campaign's recipients that are
// currently failed. With none, it returns an empty slice without touching
// the engine.
func (p *Processor) RetryFailed(ctx context.Context, opts RetryOptions) ([]domain.ProcessingResult, error) {
	failed, err := p.store.ListRecipientsByStatus(ctx, opts.CampaignID, domain.RecipientFailed)
	if err != nil {
		return nil, fmt.Errorf("list failed recipients: %w", err)
	}
	if len(failed) == 0 {
		return []domain.ProcessingResult{}, nil
	}
	return p.ProcessBatch(ctx, Options{
		CampaignID:     opts.CampaignID,
		Recipients:     failed,
		Tier:           opts.Tier,
		ScriptTemplate: opts.ScriptTemplate,
		VisualStyle:    opts.VisualStyle,
		MasterAsset:    opts.MasterAsset,
		Callbacks:      opts.Callbacks,
	})
}

// attempt shields the loop from anything ProcessRecipient fails to contain.
func (p *Processor) attempt(ctx context.Context, r domain.Recipient, opts Options) (res domain.ProcessingResult) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("recipient attempt panicked", "recipient_id", r.ID, "panic", rec)
			res = domain.ProcessingResult{
				RecipientID: r.ID,
				Error:       truncateError(fmt.Sprintf("unexpected error: %v", rec)),
			}
		}
	}()
	return p.ProcessRecipient(ctx, r, opts.Tier, opts.ScriptTemplate, opts.VisualStyle, opts.MasterAsset)
}

// ProcessRecipient runs one recipient through the engine and persists the
// outcome. It never panics and reports every failure in the result.
func (p *Processor) ProcessRecipient(ctx context.Context, r domain.Recipient, tier domain.Tier, scriptTemplate, visualStyle string, master *domain.MasterAsset) (res domain.ProcessingResult) {
	start := p.now()
	// Cancellation is cooperative: once a recipient has started, its
	// generative calls and status writes run to completion and ctx is
	// only checked between recipients.
	workCtx := context.WithoutCancel(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			res = p.fail(workCtx, r, tier, start, fmt.Errorf("panic during processing: %v", rec))
		}
	}()

	if err := p.store.UpdateRecipientStatus(workCtx, r.ID, domain.RecipientProcessing, nil); err != nil {
		return p.skip(r, tier, start, fmt.Errorf("mark processing: %w", err))
	}

	content, err := p.engine.PersonalizeForRecipient(workCtx, r, tier, scriptTemplate, visualStyle)
	if err != nil {
		return p.fail(workCtx, r, tier, start, fmt.Errorf("personalize: %w", err))
	}

	encoded, err := json.Marshal(content)
	if err != nil {
		return p.fail(workCtx, r, tier, start, fmt.Errorf("encode content: %w", err))
	}
	fields := map[string]string{
		domain.FieldPersonalizedContent: string(encoded),
		domain.FieldPersonalizationTier: tier.String(),
	}
	if p.artifacts != nil {
		ref, err := p.artifacts.PutManifest(workCtx, r.CampaignID, r.ID, content)
		if err != nil {
			return p.fail(workCtx, r, tier, start, fmt.Errorf("store manifest: %w", err))
		}
		fields[domain.FieldPersonalizationManifest] = ref
	}

	cost := p.engine.TierCost(tier)
	elapsed := p.now().Sub(start).Milliseconds()
	update := &domain.StatusUpdate{
		GenerationCost:   &cost,
		ProcessingTimeMs: &elapsed,
		CustomFields:     fields,
	}
	var videoURL string
	if master != nil {
		videoURL = master.VideoURL
		if master.VideoURL != "" {
			update.PersonalizedVideoURL = &master.VideoURL
		}
		if master.ThumbnailURL != "" {
			update.ThumbnailURL = &master.ThumbnailURL
		}
	}

	if err := p.store.UpdateRecipientStatus(workCtx, r.ID, domain.RecipientReady, update); err != nil {
		return p.fail(workCtx, r, tier, start, fmt.Errorf("mark ready: %w", err))
	}

	recipientsProcessed.WithLabelValues(tier.String(), "ready").Inc()
	costCharged.WithLabelValues(tier.String()).Add(cost)
	processingDuration.WithLabelValues(tier.String()).Observe(float64(elapsed) / 1000)

	return domain.ProcessingResult{
		RecipientID:      r.ID,
		Success:          true,
		VideoURL:         videoURL,
		Content:          content,
		Cost:             cost,
		ProcessingTimeMs: elapsed,
	}
}

// fail records a failed attempt on a recipient that entered processing.
func (p *Processor) fail(ctx context.Context, r domain.Recipient, tier domain.Tier, start time.Time, cause error) domain.ProcessingResult {
	elapsed := p.now().Sub(start).Milliseconds()
	zero := 0.0
	if err := p.store.UpdateRecipientStatus(ctx, r.ID, domain.RecipientFailed, &domain.StatusUpdate{
		GenerationCost:   &zero,
		ProcessingTimeMs: &elapsed,
	}); err != nil {
		p.log.Error("could not mark recipient failed", "recipient_id", r.ID, "error", err)
	}
	return p.failure(r, tier, elapsed, cause)
}

// skip reports a recipient that could not enter processing. Its stored
// status is left as it was.
func (p *Processor) skip(r domain.Recipient, tier domain.Tier, start time.Time, cause error) domain.ProcessingResult {
	return p.failure(r, tier, p.now().Sub(start).Milliseconds(), cause)
}

func (p *Processor) failure(r domain.Recipient, tier domain.Tier, elapsed int64, cause error) domain.ProcessingResult {
	recipientsProcessed.WithLabelValues(tier.String(), "failed").Inc()
	p.log.Warn("recipient failed", "recipient_id", r.ID, "email", r.Email, "tier", tier.String(), "error", cause)
	return domain.ProcessingResult{
		RecipientID:      r.ID,
		Success:          false,
		Cost:             0,
		ProcessingTimeMs: elapsed,
		Error:            truncateError(cause.Error()),
	}
}

func (p *Processor) emitProgress(cb Callbacks, progress domain.BatchProgress) {
	if cb.OnProgress == nil {
		return
	}
	p.safeCallback(func() { cb.OnProgress(progress) })
}

// safeCallback keeps a panicking caller callback from ending the batch.
func (p *Processor) safeCallback(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("batch callback panicked", "panic", rec)
		}
	}()
	fn()
}

// estimateRemaining returns ceil(elapsed / processed * remaining) in seconds,
// or 0 before anything has been processed.
func estimateRemaining(elapsed time.Duration, processed, remaining int) int {
	if processed <= 0 || remaining <= 0 {
		return 0
	}
	perItem := elapsed.Seconds() / float64(processed)
	return int(math.Ceil(perItem * float64(remaining)))
}
