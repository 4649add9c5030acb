package recipient

import (
	"context"
	"time"

	"github.com/ignite/videocampaign/internal/domain"
)

// Repository defines the data access contract for recipients.
// Implementations must be safe for concurrent use.
type Repository interface {
	// ListByCampaign returns a campaign's recipients ordered by creation.
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.Recipient, error)

	// ListByStatus returns a campaign's recipients in one status, ordered by creation.
	ListByStatus(ctx context.Context, campaignID string, status domain.RecipientStatus) ([]domain.Recipient, error)

	// Get returns a single recipient. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Recipient, error)

	// BulkInsert stores new recipients and returns how many were inserted.
	// A recipient whose email already exists in the campaign is skipped.
	BulkInsert(ctx context.Context, recipients []domain.Recipient) (int, error)

	// UpdateStatus moves a recipient to status to if its current status is in
	// from, applying u in the same write. Custom fields in u are merged into
	// the stored bag. Returns ErrNotFound or ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, from []domain.RecipientStatus, to domain.RecipientStatus, u *domain.StatusUpdate) error

	// RecordView marks a sent or viewed recipient as viewed, incrementing the
	// view count and adding watchSeconds. viewed_at keeps the first view time.
	RecordView(ctx context.Context, id string, watchSeconds float64, at time.Time) error
}
