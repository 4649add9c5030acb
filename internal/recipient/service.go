package recipient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/pkg/logger"
)

// NewRecipient is one row of an import.
type NewRecipient struct {
	Name         string            `json:"name" validate:"omitempty,max=255"`
	Email        string            `json:"email" validate:"required,email,max=320"`
	Company      string            `json:"company" validate:"omitempty,max=255"`
	Role         string            `json:"role" validate:"omitempty,max=255"`
	Industry     string            `json:"industry" validate:"omitempty,max=255"`
	PainPoint    string            `json:"pain_point" validate:"omitempty,max=2000"`
	CustomFields map[string]string `json:"custom_fields"`
}

// ImportError describes one rejected import row.
type ImportError struct {
	Index   int    `json:"index"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

// ImportResult summarizes an AddRecipients call.
type ImportResult struct {
	Total    int           `json:"total"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// Service implements recipient lifecycle logic over a Repository.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a recipient service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New(), now: time.Now}
}

// GetRecipients returns every recipient of a campaign.
func (s *Service) GetRecipients(ctx context.Context, campaignID string) ([]domain.Recipient, error) {
	if campaignID == "" {
		return nil, ErrMissingCampaign
	}
	return s.repo.ListByCampaign(ctx, campaignID)
}

// ListRecipientsByStatus returns a campaign's recipients in one status.
func (s *Service) ListRecipientsByStatus(ctx context.Context, campaignID string, status domain.RecipientStatus) ([]domain.Recipient, error) {
	if campaignID == "" {
		return nil, ErrMissingCampaign
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return s.repo.ListByStatus(ctx, campaignID, status)
}

// Get returns a single recipient.
func (s *Service) Get(ctx context.Context, id string) (*domain.Recipient, error) {
	return s.repo.Get(ctx, id)
}

// UpdateRecipientStatus moves a recipient to status, enforcing the
// transition table. Fields in u are persisted in the same write.
func (s *Service) UpdateRecipientStatus(ctx context.Context, id string, status domain.RecipientStatus, u *domain.StatusUpdate) error {
	from := domain.AllowedFrom(status)
	if len(from) == 0 {
		return fmt.Errorf("%w: nothing moves to %q", ErrInvalidTransition, status)
	}
	return s.repo.UpdateStatus(ctx, id, from, status, u)
}

// MarkSent records that a ready recipient's email went out.
func (s *Service) MarkSent(ctx context.Context, id string, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()
	return s.UpdateRecipientStatus(ctx, id, domain.RecipientSent, &domain.StatusUpdate{SentAt: &at})
}

// RecordView records one view of a sent recipient's video.
func (s *Service) RecordView(ctx context.Context, id string, watchSeconds float64, at time.Time) error {
	if watchSeconds < 0 {
		watchSeconds = 0
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.repo.RecordView(ctx, id, watchSeconds, at.UTC())
}

// AddRecipients validates and imports recipients into a campaign as pending.
// Invalid rows and duplicate emails are skipped and reported, not fatal.
func (s *Service) AddRecipients(ctx context.Context, campaignID string, rows []NewRecipient) (*ImportResult, error) {
	if campaignID == "" {
		return nil, ErrMissingCampaign
	}

	res := &ImportResult{Total: len(rows)}
	seen := make(map[string]bool, len(rows))
	batch := make([]domain.Recipient, 0, len(rows))
	now := s.now().UTC()

	for i, row := range rows {
		row.Email = strings.TrimSpace(row.Email)
		if err := s.validate.Struct(&row); err != nil {
			res.Errors = append(res.Errors, ImportError{Index: i, Email: row.Email, Message: validationMessage(err)})
			continue
		}
		key := strings.ToLower(row.Email)
		if seen[key] {
			res.Errors = append(res.Errors, ImportError{Index: i, Email: row.Email, Message: "duplicate email in import"})
			continue
		}
		seen[key] = true

		batch = append(batch, domain.Recipient{
			ID:           uuid.New().String(),
			CampaignID:   campaignID,
			Name:         strings.TrimSpace(row.Name),
			Email:        row.Email,
			Company:      strings.TrimSpace(row.Company),
			Role:         strings.TrimSpace(row.Role),
			Industry:     strings.TrimSpace(row.Industry),
			PainPoint:    strings.TrimSpace(row.PainPoint),
			CustomFields: importFields(row.CustomFields),
			Status:       domain.RecipientPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if len(batch) > 0 {
		n, err := s.repo.BulkInsert(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("import recipients: %w", err)
		}
		res.Imported = n
	}
	res.Skipped = res.Total - res.Imported

	logger.Info("recipients imported", "campaign_id", campaignID,
		"total", res.Total, "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

// importFields copies custom fields, dropping keys the pipeline owns.
func importFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" || domain.IsReservedField(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
