package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/pkg/httputil"
	"github.com/ignite/videocampaign/internal/recipient"
)

type importRequest struct {
	Recipients []recipient.NewRecipient `json:"recipients" validate:"required,min=1,max=10000"`
}

// ImportRecipients adds pending recipients to a campaign. Bad rows are
// reported in the result rather than failing the request.
//
//	POST /api/campaigns/{campaignID}/recipients
func (h *Handlers) ImportRecipients(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !httputil.DecodeValid(w, r, h.validate, &req) {
		return
	}
	res, err := h.recipients.AddRecipients(r.Context(), chi.URLParam(r, "campaignID"), req.Recipients)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, res)
}

// ListRecipients lists a campaign's recipients, optionally filtered by ?status=.
//
//	GET /api/campaigns/{campaignID}/recipients
func (h *Handlers) ListRecipients(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var (
		rs  []domain.Recipient
		err error
	)
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.RecipientStatus(s)
		if !status.IsValid() {
			httputil.BadRequest(w, "unknown status "+s)
			return
		}
		rs, err = h.recipients.ListRecipientsByStatus(r.Context(), campaignID, status)
	} else {
		rs, err = h.recipients.GetRecipients(r.Context(), campaignID)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if rs == nil {
		rs = []domain.Recipient{}
	}
	httputil.OK(w, map[string]any{"recipients": rs, "total": len(rs)})
}

// GET /api/recipients/{recipientID}
func (h *Handlers) GetRecipient(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recipients.Get(r.Context(), chi.URLParam(r, "recipientID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, rec)
}

type sentRequest struct {
	SentAt *time.Time `json:"sent_at"`
}

// MarkSent records the external send of a ready recipient's email.
// The body is optional.
//
//	POST /api/recipients/{recipientID}/sent
func (h *Handlers) MarkSent(w http.ResponseWriter, r *http.Request) {
	var req sentRequest
	if r.ContentLength != 0 && !httputil.Decode(w, r, &req) {
		return
	}
	var at time.Time
	if req.SentAt != nil {
		at = *req.SentAt
	}
	id := chi.URLParam(r, "recipientID")
	if err := h.recipients.MarkSent(r.Context(), id, at); err != nil {
		respondServiceError(w, err)
		return
	}
	h.invalidateFor(r, id)
	httputil.NoContent(w)
}

type viewRequest struct {
	WatchSeconds float64    `json:"watch_seconds" validate:"gte=0"`
	ViewedAt     *time.Time `json:"viewed_at"`
}

// RecordView records a view of a sent recipient's video.
//
//	POST /api/recipients/{recipientID}/views
func (h *Handlers) RecordView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if !httputil.DecodeValid(w, r, h.validate, &req) {
		return
	}
	var at time.Time
	if req.ViewedAt != nil {
		at = *req.ViewedAt
	}
	id := chi.URLParam(r, "recipientID")
	if err := h.recipients.RecordView(r.Context(), id, req.WatchSeconds, at); err != nil {
		respondServiceError(w, err)
		return
	}
	h.invalidateFor(r, id)
	httputil.NoContent(w)
}

// invalidateFor drops cached stats for the recipient's campaign.
func (h *Handlers) invalidateFor(r *http.Request, recipientID string) {
	if h.stats == nil {
		return
	}
	rec, err := h.recipients.Get(r.Context(), recipientID)
	if err != nil {
		return
	}
	if err := h.stats.Invalidate(r.Context(), rec.CampaignID); err != nil {
		h.log.Warn("invalidate stats", "campaign_id", rec.CampaignID, "error", err)
	}
}

// GET /api/campaigns/{campaignID}/stats
func (h *Handlers) CampaignStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.Compute(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, s)
}
