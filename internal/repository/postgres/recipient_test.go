package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/recipient"
)

var recipientCols = []string{
	"id", "campaign_id", "name", "email", "company", "role", "industry", "pain_point",
	"custom_fields", "status", "personalized_video_url", "thumbnail_url",
	"generation_cost", "processing_time_ms", "sent_at", "viewed_at", "view_count",
	"watch_duration_seconds", "created_at", "updated_at",
}

func setupRecipientRepo(t *testing.T) (*RecipientRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	return NewRecipientRepo(db), mock, func() { db.Close() }
}

func TestRecipientRepo_Get(t *testing.T) {
	repo, mock, cleanup := setupRecipientRepo(t)
	defer cleanup()

	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	sent := now.Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("FROM video_campaign_recipients")).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(recipientCols).AddRow(
			"r-1", "c-1", "Jane", "jane@acme.com", "Acme", "CTO", "SaaS", "",
			[]byte(`{"plan":"pro"}`), "sent", "https://cdn/v.mp4", "",
			0.5, int64(1400), sent, nil, 0,
			0.0, now, now,
		))

	r, err := repo.Get(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Status != domain.RecipientSent || r.CustomFields["plan"] != "pro" || r.GenerationCost != 0.5 {
		t.Errorf("recipient = %+v", r)
	}
	if r.SentAt == nil || !r.SentAt.Equal(sent) || r.ViewedAt != nil {
		t.Errorf("timestamps sent=%v viewed=%v", r.SentAt, r.ViewedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecipientRepo_GetNotFound(t *testing.T) {
	repo, mock, cleanup := setupRecipientRepo(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM video_campaign_recipients")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, recipient.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecipientRepo_ListByStatus(t *testing.T) {
	repo, mock, cleanup := setupRecipientRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE campaign_id = $1 AND status = $2")).
		WithArgs("c-1", "failed").
		WillReturnRows(sqlmock.NewRows(recipientCols).
			AddRow("a", "c-1", "", "a@x.io", "", "", "", "", []byte(`{}`), "failed", "", "",
				0.0, int64(900), nil, nil, 0, 0.0, now, now).
			AddRow("b", "c-1", "", "b@x.io", "", "", "", "", nil, "failed", "", "",
				0.0, int64(700), nil, nil, 0, 0.0, now, now))

	rs, err := repo.ListByStatus(context.Background(), "c-1", domain.RecipientFailed)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(rs) != 2 || rs[0].ID != "a" || rs[1].CustomFields == nil {
		t.Errorf("recipients = %+v", rs)
	}
}

func TestRecipientRepo_BulkInsertCountsInserted(t *testing.T) {
	repo, mock, cleanup := setupRecipientRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO video_campaign_recipients"))
	prep.ExpectExec().
		WithArgs("a", "c-1", "Jane", "jane@acme.com", "", "", "", "", `{"plan":"pro"}`, "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("b", "c-1", "", "dup@acme.com", "", "", "", "", `{}`, "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := repo.BulkInsert(context.Background(), []domain.Recipient{
		{ID: "a", CampaignID: "c-1", Name: "Jane", Email: "jane@acme.com", CustomFields: map[string]string{"plan": "pro"}},
		{ID: "b", CampaignID: "c-1", Email: "dup@acme.com"},
	})
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecipientRepo_UpdateStatus(t *testing.T) {
	repo, mock, cleanup := setupRecipientRepo(t)
	defer cleanup()

	cost, ms := 2.0, int64(41000)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE video_campaign_recipients SET")).
		WithArgs("ready", nil, nil, cost, ms, nil, `{"personalization_tier":"advanced"}`, "r-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "r-1",
		domain.AllowedFrom(domain.RecipientReady), domain.RecipientReady,
		&domain.StatusUpdate{
			GenerationCost:   &cost,
			ProcessingTimeMs: &ms,
			CustomFields:     map[string]string{domain.FieldPersonalizationTier: "advanced"},
		})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecipientRepo_UpdateStatusGuard(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		want   error
	}{
		{"wrong current status", true, recipient.ErrInvalidTransition},
		{"missing row", false, recipient.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupRecipientRepo(t)
			defer cleanup()

			mock.ExpectExec(regexp.QuoteMeta("UPDATE video_campaign_recipients SET")).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
				WithArgs("r-1").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			err := repo.UpdateStatus(context.Background(), "r-1",
				domain.AllowedFrom(domain.RecipientProcessing), domain.RecipientProcessing, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRecipientRepo_RecordView(t *testing.T) {
	repo, mock, cleanup := setupRecipientRepo(t)
	defer cleanup()

	at := time.Date(2026, 4, 3, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("view_count = view_count + 1")).
		WithArgs("viewed", 42.0, at, "r-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordView(context.Background(), "r-1", 42, at); err != nil {
		t.Fatalf("RecordView: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
