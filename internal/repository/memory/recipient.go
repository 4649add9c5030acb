// Package memory provides in-process repository implementations for tests
// and single-node development runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/recipient"
)

// RecipientRepo implements recipient.Repository in memory.
type RecipientRepo struct {
	mu         sync.Mutex
	recipients map[string]*domain.Recipient // keyed by id
	seq        map[string]int               // insertion order
	next       int
	now        func() time.Time
}

// NewRecipientRepo creates an empty repository.
func NewRecipientRepo() *RecipientRepo {
	return &RecipientRepo{
		recipients: make(map[string]*domain.Recipient),
		seq:        make(map[string]int),
		now:        time.Now,
	}
}

func (m *RecipientRepo) ListByCampaign(_ context.Context, campaignID string) ([]domain.Recipient, error) {
	return m.list(func(r *domain.Recipient) bool { return r.CampaignID == campaignID }), nil
}

func (m *RecipientRepo) ListByStatus(_ context.Context, campaignID string, status domain.RecipientStatus) ([]domain.Recipient, error) {
	return m.list(func(r *domain.Recipient) bool {
		return r.CampaignID == campaignID && r.Status == status
	}), nil
}

func (m *RecipientRepo) list(keep func(*domain.Recipient) bool) []domain.Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Recipient
	for _, r := range m.recipients {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out
}

func (m *RecipientRepo) Get(_ context.Context, id string) (*domain.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok {
		return nil, recipient.ErrNotFound
	}
	cp := clone(r)
	return &cp, nil
}

func (m *RecipientRepo) BulkInsert(_ context.Context, rs []domain.Recipient) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	emails := make(map[string]bool)
	for _, r := range m.recipients {
		emails[r.CampaignID+"\x00"+strings.ToLower(r.Email)] = true
	}

	inserted := 0
	for i := range rs {
		key := rs[i].CampaignID + "\x00" + strings.ToLower(rs[i].Email)
		if emails[key] {
			continue
		}
		if _, exists := m.recipients[rs[i].ID]; exists {
			continue
		}
		emails[key] = true
		cp := clone(&rs[i])
		if cp.Status == "" {
			cp.Status = domain.RecipientPending
		}
		m.recipients[cp.ID] = &cp
		m.next++
		m.seq[cp.ID] = m.next
		inserted++
	}
	return inserted, nil
}

func (m *RecipientRepo) UpdateStatus(_ context.Context, id string, from []domain.RecipientStatus, to domain.RecipientStatus, u *domain.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok {
		return recipient.ErrNotFound
	}
	if !contains(from, r.Status) {
		return recipient.ErrInvalidTransition
	}

	r.Status = to
	r.UpdatedAt = m.now().UTC()
	if u == nil {
		return nil
	}
	if u.PersonalizedVideoURL != nil {
		r.PersonalizedVideoURL = *u.PersonalizedVideoURL
	}
	if u.ThumbnailURL != nil {
		r.ThumbnailURL = *u.ThumbnailURL
	}
	if u.GenerationCost != nil {
		r.GenerationCost = *u.GenerationCost
	}
	if u.ProcessingTimeMs != nil {
		r.ProcessingTimeMs = *u.ProcessingTimeMs
	}
	if u.SentAt != nil {
		t := *u.SentAt
		r.SentAt = &t
	}
	if len(u.CustomFields) > 0 {
		if r.CustomFields == nil {
			r.CustomFields = make(map[string]string, len(u.CustomFields))
		}
		for k, v := range u.CustomFields {
			r.CustomFields[k] = v
		}
	}
	return nil
}

func (m *RecipientRepo) RecordView(_ context.Context, id string, watchSeconds float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok {
		return recipient.ErrNotFound
	}
	if !domain.CanTransition(r.Status, domain.RecipientViewed) {
		return recipient.ErrInvalidTransition
	}
	r.Status = domain.RecipientViewed
	r.ViewCount++
	r.WatchDurationSeconds += watchSeconds
	if r.ViewedAt == nil {
		t := at
		r.ViewedAt = &t
	}
	r.UpdatedAt = m.now().UTC()
	return nil
}

func clone(r *domain.Recipient) domain.Recipient {
	cp := *r
	if r.CustomFields != nil {
		cp.CustomFields = make(map[string]string, len(r.CustomFields))
		for k, v := range r.CustomFields {
			cp.CustomFields[k] = v
		}
	}
	if r.SentAt != nil {
		t := *r.SentAt
		cp.SentAt = &t
	}
	if r.ViewedAt != nil {
		t := *r.ViewedAt
		cp.ViewedAt = &t
	}
	return cp
}

func contains(set []domain.RecipientStatus, s domain.RecipientStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
