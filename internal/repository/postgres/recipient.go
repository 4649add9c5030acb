package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/recipient"
)

// RecipientRepo implements recipient.Repository against PostgreSQL.
type RecipientRepo struct{ db *sql.DB }

// NewRecipientRepo creates a Postgres-backed recipient repository.
func NewRecipientRepo(db *sql.DB) *RecipientRepo { return &RecipientRepo{db: db} }

const recipientColumns = `
	id, campaign_id, COALESCE(name,''), email, COALESCE(company,''), COALESCE(role,''),
	COALESCE(industry,''), COALESCE(pain_point,''), custom_fields, status,
	COALESCE(personalized_video_url,''), COALESCE(thumbnail_url,''),
	generation_cost, processing_time_ms, sent_at, viewed_at, view_count,
	watch_duration_seconds, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecipient(s rowScanner) (*domain.Recipient, error) {
	var (
		r              domain.Recipient
		fields         []byte
		sentAt, viewed sql.NullTime
	)
	err := s.Scan(
		&r.ID, &r.CampaignID, &r.Name, &r.Email, &r.Company, &r.Role,
		&r.Industry, &r.PainPoint, &fields, &r.Status,
		&r.PersonalizedVideoURL, &r.ThumbnailURL,
		&r.GenerationCost, &r.ProcessingTimeMs, &sentAt, &viewed, &r.ViewCount,
		&r.WatchDurationSeconds, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.CustomFields = map[string]string{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &r.CustomFields); err != nil {
			return nil, fmt.Errorf("decode custom_fields for %s: %w", r.ID, err)
		}
	}
	if sentAt.Valid {
		t := sentAt.Time
		r.SentAt = &t
	}
	if viewed.Valid {
		t := viewed.Time
		r.ViewedAt = &t
	}
	return &r, nil
}

func (r *RecipientRepo) query(ctx context.Context, q string, args ...interface{}) ([]domain.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *RecipientRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.Recipient, error) {
	out, err := r.query(ctx, `SELECT `+recipientColumns+`
		FROM video_campaign_recipients
		WHERE campaign_id = $1
		ORDER BY created_at, id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return out, nil
}

func (r *RecipientRepo) ListByStatus(ctx context.Context, campaignID string, status domain.RecipientStatus) ([]domain.Recipient, error) {
	out, err := r.query(ctx, `SELECT `+recipientColumns+`
		FROM video_campaign_recipients
		WHERE campaign_id = $1 AND status = $2
		ORDER BY created_at, id`, campaignID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list recipients by status: %w", err)
	}
	return out, nil
}

func (r *RecipientRepo) Get(ctx context.Context, id string) (*domain.Recipient, error) {
	rec, err := scanRecipient(r.db.QueryRowContext(ctx, `SELECT `+recipientColumns+`
		FROM video_campaign_recipients
		WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, recipient.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return rec, nil
}

func (r *RecipientRepo) BulkInsert(ctx context.Context, rs []domain.Recipient) (int, error) {
	if len(rs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO video_campaign_recipients
			(id, campaign_id, name, email, company, role, industry, pain_point,
			 custom_fields, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range rs {
		rc := &rs[i]
		fields, err := json.Marshal(nonNilFields(rc.CustomFields))
		if err != nil {
			return 0, fmt.Errorf("encode custom_fields: %w", err)
		}
		status := rc.Status
		if status == "" {
			status = domain.RecipientPending
		}
		created := rc.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		res, err := stmt.ExecContext(ctx,
			rc.ID, rc.CampaignID, rc.Name, rc.Email, rc.Company, rc.Role, rc.Industry, rc.PainPoint,
			string(fields), string(status), created)
		if err != nil {
			return 0, fmt.Errorf("insert recipient %s: %w", rc.Email, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *RecipientRepo) UpdateStatus(ctx context.Context, id string, from []domain.RecipientStatus, to domain.RecipientStatus, u *domain.StatusUpdate) error {
	if u == nil {
		u = &domain.StatusUpdate{}
	}
	var fields interface{}
	if len(u.CustomFields) > 0 {
		b, err := json.Marshal(u.CustomFields)
		if err != nil {
			return fmt.Errorf("encode custom_fields: %w", err)
		}
		fields = string(b)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE video_campaign_recipients SET
			status = $1,
			personalized_video_url = COALESCE($2, personalized_video_url),
			thumbnail_url = COALESCE($3, thumbnail_url),
			generation_cost = COALESCE($4, generation_cost),
			processing_time_ms = COALESCE($5, processing_time_ms),
			sent_at = COALESCE($6, sent_at),
			custom_fields = custom_fields || COALESCE($7::jsonb, '{}'::jsonb),
			updated_at = NOW()
		WHERE id = $8 AND status = ANY($9)
	`, string(to), u.PersonalizedVideoURL, u.ThumbnailURL, u.GenerationCost, u.ProcessingTimeMs,
		u.SentAt, fields, id, statusArray(from))
	if err != nil {
		return fmt.Errorf("update recipient status: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

func (r *RecipientRepo) RecordView(ctx context.Context, id string, watchSeconds float64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE video_campaign_recipients SET
			status = $1,
			view_count = view_count + 1,
			watch_duration_seconds = watch_duration_seconds + $2,
			viewed_at = COALESCE(viewed_at, $3),
			updated_at = NOW()
		WHERE id = $4 AND status = ANY($5)
	`, string(domain.RecipientViewed), watchSeconds, at, id, statusArray(domain.AllowedFrom(domain.RecipientViewed)))
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

// checkAffected distinguishes a missing row from a failed status guard.
func (r *RecipientRepo) checkAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM video_campaign_recipients WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check recipient: %w", err)
	}
	if !exists {
		return recipient.ErrNotFound
	}
	return recipient.ErrInvalidTransition
}

func statusArray(in []domain.RecipientStatus) interface{} {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return pq.Array(out)
}

func nonNilFields(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
