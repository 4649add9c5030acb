package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/videocampaign/internal/batch"
	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/pkg/httputil"
)

type startBatchRequest struct {
	Tier           domain.Tier         `json:"tier" validate:"required,oneof=basic smart advanced"`
	ScriptTemplate string              `json:"script_template" validate:"max=20000"`
	VisualStyle    string              `json:"visual_style" validate:"max=255"`
	RecipientIDs   []string            `json:"recipient_ids" validate:"omitempty,max=10000,dive,required"`
	MasterAsset    *domain.MasterAsset `json:"master_asset"`
}

// StartBatch launches a background run over the given recipients, or over
// every pending recipient when none are named.
//
//	POST /api/campaigns/{campaignID}/batch
func (h *Handlers) StartBatch(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	var req startBatchRequest
	if !httputil.DecodeValid(w, r, h.validate, &req) {
		return
	}

	targets, missing, err := h.batchTargets(r, campaignID, req.RecipientIDs)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if len(missing) > 0 {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "UNKNOWN_RECIPIENTS",
			"recipients not in campaign: "+strings.Join(missing, ", "))
		return
	}
	if len(targets) == 0 {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "NO_RECIPIENTS", "no recipients to process")
		return
	}

	st, err := h.batches.Start(r.Context(), batch.Options{
		CampaignID:     campaignID,
		Recipients:     targets,
		Tier:           req.Tier,
		ScriptTemplate: req.ScriptTemplate,
		VisualStyle:    req.VisualStyle,
		MasterAsset:    req.MasterAsset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Accepted(w, st)
}

// batchTargets resolves ids against the campaign in request order. With no
// ids it returns the campaign's pending recipients.
func (h *Handlers) batchTargets(r *http.Request, campaignID string, ids []string) ([]domain.Recipient, []string, error) {
	if len(ids) == 0 {
		rs, err := h.recipients.ListRecipientsByStatus(r.Context(), campaignID, domain.RecipientPending)
		return rs, nil, err
	}
	all, err := h.recipients.GetRecipients(r.Context(), campaignID)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]domain.Recipient, len(all))
	for _, rec := range all {
		byID[rec.ID] = rec
	}
	var (
		out     = make([]domain.Recipient, 0, len(ids))
		missing []string
		seen    = make(map[string]bool, len(ids))
	)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		rec, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, rec)
	}
	return out, missing, nil
}

// GET /api/campaigns/{campaignID}/batch
func (h *Handlers) BatchStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := h.batches.Status(chi.URLParam(r, "campaignID"))
	if !ok {
		respondServiceError(w, batch.ErrNoRun)
		return
	}
	httputil.OK(w, st)
}

// POST /api/campaigns/{campaignID}/batch/pause
func (h *Handlers) PauseBatch(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.batches.Pause)
}

// POST /api/campaigns/{campaignID}/batch/resume
func (h *Handlers) ResumeBatch(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.batches.Resume)
}

// POST /api/campaigns/{campaignID}/batch/stop
func (h *Handlers) StopBatch(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.batches.Stop)
}

func (h *Handlers) control(w http.ResponseWriter, r *http.Request, fn func(campaignID string) error) {
	campaignID := chi.URLParam(r, "campaignID")
	if err := fn(campaignID); err != nil {
		respondServiceError(w, err)
		return
	}
	st, _ := h.batches.Status(campaignID)
	httputil.OK(w, st)
}

type retryRequest struct {
	Tier           domain.Tier         `json:"tier" validate:"required,oneof=basic smart advanced"`
	ScriptTemplate string              `json:"script_template" validate:"max=20000"`
	VisualStyle    string              `json:"visual_style" validate:"max=255"`
	MasterAsset    *domain.MasterAsset `json:"master_asset"`
}

// RetryBatch reruns the campaign's failed recipients in the background.
//
//	POST /api/campaigns/{campaignID}/batch/retry
func (h *Handlers) RetryBatch(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if !httputil.DecodeValid(w, r, h.validate, &req) {
		return
	}
	st, err := h.batches.Retry(r.Context(), batch.RetryOptions{
		CampaignID:     chi.URLParam(r, "campaignID"),
		Tier:           req.Tier,
		ScriptTemplate: req.ScriptTemplate,
		VisualStyle:    req.VisualStyle,
		MasterAsset:    req.MasterAsset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Accepted(w, st)
}
