package recipient_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/recipient"
	"github.com/ignite/videocampaign/internal/repository/memory"
)

func newService(t *testing.T) (*recipient.Service, *memory.RecipientRepo) {
	t.Helper()
	repo := memory.NewRecipientRepo()
	return recipient.NewService(repo), repo
}

func TestAddRecipients_ValidatesAndSkips(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	res, err := svc.AddRecipients(ctx, "camp-1", []recipient.NewRecipient{
		{Name: "Jane", Email: "jane@acme.com", Company: "Acme",
			CustomFields: map[string]string{"plan": "pro", domain.FieldPersonalizedContent: "spoof"}},
		{Name: "No Email"},
		{Name: "Bad", Email: "not-an-email"},
		{Name: "Dup", Email: " JANE@acme.com "},
		{Email: "sam@globex.io"},
	})
	if err != nil {
		t.Fatalf("AddRecipients: %v", err)
	}
	if res.Total != 5 || res.Imported != 2 || res.Skipped != 3 {
		t.Errorf("result = %+v, want total 5, imported 2, skipped 3", res)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if res.Errors[0].Index != 1 || !strings.Contains(res.Errors[0].Message, "required") {
		t.Errorf("missing email error = %+v", res.Errors[0])
	}
	if !strings.Contains(res.Errors[1].Message, "valid email") {
		t.Errorf("format error = %+v", res.Errors[1])
	}

	got, err := svc.GetRecipients(ctx, "camp-1")
	if err != nil {
		t.Fatalf("GetRecipients: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recipients = %d, want 2", len(got))
	}
	if got[0].Status != domain.RecipientPending || got[0].ID == "" {
		t.Errorf("imported recipient = %+v", got[0])
	}
	if _, ok := got[0].CustomFields[domain.FieldPersonalizedContent]; ok {
		t.Error("reserved custom field accepted from import")
	}
	if got[0].CustomFields["plan"] != "pro" {
		t.Errorf("custom fields = %v", got[0].CustomFields)
	}
}

func TestAddRecipients_RequiresCampaign(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.AddRecipients(context.Background(), "", nil); !errors.Is(err, recipient.ErrMissingCampaign) {
		t.Errorf("err = %v, want ErrMissingCampaign", err)
	}
}

func TestLifecycle_ProcessSendView(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.AddRecipients(ctx, "c", []recipient.NewRecipient{{Name: "Jane", Email: "jane@acme.com"}}); err != nil {
		t.Fatal(err)
	}
	rs, _ := svc.GetRecipients(ctx, "c")
	id := rs[0].ID

	// Sending before processing is rejected.
	if err := svc.MarkSent(ctx, id, time.Time{}); !errors.Is(err, recipient.ErrInvalidTransition) {
		t.Fatalf("MarkSent on pending err = %v, want ErrInvalidTransition", err)
	}

	steps := []domain.RecipientStatus{domain.RecipientProcessing, domain.RecipientReady}
	for _, s := range steps {
		if err := svc.UpdateRecipientStatus(ctx, id, s, nil); err != nil {
			t.Fatalf("-> %s: %v", s, err)
		}
	}
	// ready cannot be re-entered into processing.
	if err := svc.UpdateRecipientStatus(ctx, id, domain.RecipientProcessing, nil); !errors.Is(err, recipient.ErrInvalidTransition) {
		t.Fatalf("ready -> processing err = %v, want ErrInvalidTransition", err)
	}

	sentAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	if err := svc.MarkSent(ctx, id, sentAt); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if err := svc.RecordView(ctx, id, 30, time.Time{}); err != nil {
		t.Fatalf("RecordView: %v", err)
	}

	got, _ := svc.Get(ctx, id)
	if got.Status != domain.RecipientViewed || got.ViewCount != 1 || got.WatchDurationSeconds != 30 {
		t.Errorf("recipient = %+v", got)
	}
	if got.SentAt == nil || !got.SentAt.Equal(sentAt) {
		t.Errorf("SentAt = %v", got.SentAt)
	}
}

func TestUpdateRecipientStatus_PendingIsNeverATarget(t *testing.T) {
	svc, _ := newService(t)
	err := svc.UpdateRecipientStatus(context.Background(), "any", domain.RecipientPending, nil)
	if !errors.Is(err, recipient.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestListRecipientsByStatus(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	repo.BulkInsert(ctx, []domain.Recipient{
		{ID: "1", CampaignID: "c", Email: "1@x.io", Status: domain.RecipientFailed},
		{ID: "2", CampaignID: "c", Email: "2@x.io", Status: domain.RecipientReady},
	})
	failed, err := svc.ListRecipientsByStatus(ctx, "c", domain.RecipientFailed)
	if err != nil {
		t.Fatalf("ListRecipientsByStatus: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "1" {
		t.Errorf("failed = %+v", failed)
	}
	if _, err := svc.ListRecipientsByStatus(ctx, "c", "bogus"); err == nil {
		t.Error("expected error for unknown status")
	}
}
