// Package stats summarizes a campaign's recipients: lifecycle counts,
// generation spend and engagement.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/pkg/logger"
)

// RecipientSource lists a campaign's recipients. *recipient.Service satisfies it.
type RecipientSource interface {
	GetRecipients(ctx context.Context, campaignID string) ([]domain.Recipient, error)
}

// Aggregator computes CampaignStats, optionally through a cache.
type Aggregator struct {
	source RecipientSource
	cache  *Cache
	now    func() time.Time
	log    *logger.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCache serves repeated reads from c until invalidated or expired.
func WithCache(c *Cache) Option {
	return func(a *Aggregator) { a.cache = c }
}

// WithClock replaces time.Now for ComputedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(source RecipientSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		source: source,
		now:    time.Now,
		log:    logger.Default().Named("stats"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Compute returns the campaign's stats. Cache errors degrade to a fresh
// computation and are never returned.
func (a *Aggregator) Compute(ctx context.Context, campaignID string) (*domain.CampaignStats, error) {
	if campaignID == "" {
		return nil, errors.New("campaign id is required")
	}
	if a.cache != nil {
		cached, err := a.cache.Get(ctx, campaignID)
		if err != nil {
			a.log.Warn("stats cache read failed", "campaign_id", campaignID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	rs, err := a.source.GetRecipients(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	s := Summarize(campaignID, rs)
	s.ComputedAt = a.now().UTC()

	if a.cache != nil {
		if err := a.cache.Set(ctx, s); err != nil {
			a.log.Warn("stats cache write failed", "campaign_id", campaignID, "error", err)
		}
	}
	return s, nil
}

// Invalidate drops any cached stats for campaignID.
func (a *Aggregator) Invalidate(ctx context.Context, campaignID string) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Invalidate(ctx, campaignID)
}

// Summarize folds rs into CampaignStats. Averages are taken over recipients
// that reached ready or beyond; failed recipients carry no cost.
func Summarize(campaignID string, rs []domain.Recipient) *domain.CampaignStats {
	s := &domain.CampaignStats{CampaignID: campaignID, TotalRecipients: len(rs)}
	var totalMs int64
	for _, r := range rs {
		switch r.Status {
		case domain.RecipientPending:
			s.Pending++
		case domain.RecipientProcessing:
			s.Processing++
		case domain.RecipientReady:
			s.Ready++
		case domain.RecipientSent:
			s.Sent++
		case domain.RecipientViewed:
			s.Viewed++
		case domain.RecipientFailed:
			s.Failed++
			continue
		}
		s.TotalCost += r.GenerationCost
		s.TotalViews += r.ViewCount
		s.TotalWatchSeconds += r.WatchDurationSeconds
		if isPersonalized(r.Status) {
			totalMs += r.ProcessingTimeMs
		}
	}

	if n := s.Personalized(); n > 0 {
		s.AverageCostPerReady = s.TotalCost / float64(n)
		s.AverageProcessingTimeMs = float64(totalMs) / float64(n)
	}
	if delivered := s.Sent + s.Viewed; delivered > 0 {
		s.ViewRate = float64(s.Viewed) / float64(delivered)
	}
	return s
}

func isPersonalized(st domain.RecipientStatus) bool {
	return st == domain.RecipientReady || st == domain.RecipientSent || st == domain.RecipientViewed
}
