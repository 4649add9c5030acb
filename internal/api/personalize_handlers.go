package api

import (
	"net/http"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/pkg/httputil"
)

type tierInfo struct {
	Tier             domain.Tier `json:"tier"`
	Cost             float64     `json:"cost"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	Features         []string    `json:"features"`
}

// ListTiers returns the tier table in capability order.
//
//	GET /api/tiers
func (h *Handlers) ListTiers(w http.ResponseWriter, r *http.Request) {
	out := make([]tierInfo, 0, len(domain.Tiers))
	for _, t := range domain.Tiers {
		out = append(out, tierInfo{
			Tier:             t,
			Cost:             h.engine.TierCost(t),
			ProcessingTimeMs: h.engine.EstimatedProcessingTime(t),
			Features:         h.engine.TierFeatures(t),
		})
	}
	httputil.OK(w, map[string]any{"tiers": out})
}

type variablesRequest struct {
	Template string `json:"template" validate:"required"`
}

// POST /api/personalize/variables
func (h *Handlers) ExtractVariables(w http.ResponseWriter, r *http.Request) {
	var req variablesRequest
	if !httputil.DecodeValid(w, r, h.validate, &req) {
		return
	}
	vars := h.engine.ExtractVariables(req.Template)
	if vars == nil {
		vars = []string{}
	}
	httputil.OK(w, map[string]any{"variables": vars})
}

type previewRecipient struct {
	Name         string            `json:"name" validate:"omitempty,max=255"`
	Email        string            `json:"email" validate:"omitempty,email"`
	Company      string            `json:"company" validate:"omitempty,max=255"`
	Role         string            `json:"role" validate:"omitempty,max=255"`
	Industry     string            `json:"industry" validate:"omitempty,max=255"`
	PainPoint    string            `json:"pain_point" validate:"omitempty,max=2000"`
	CustomFields map[string]string `json:"custom_fields"`
}

type previewRequest struct {
	Recipient      previewRecipient `json:"recipient"`
	Tier           domain.Tier      `json:"tier" validate:"required,oneof=basic smart advanced"`
	ScriptTemplate string           `json:"script_template"`
	VisualStyle    string           `json:"visual_style"`
}

type previewResponse struct {
	Tier                    domain.Tier                 `json:"tier"`
	Content                 *domain.PersonalizedContent `json:"content"`
	Cost                    float64                     `json:"cost"`
	EstimatedProcessingTime int64                       `json:"estimated_processing_time_ms"`
}

// Preview personalizes an ad-hoc recipient without persisting anything.
//
//	POST /api/personalize/preview
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !httputil.DecodeValid(w, r, h.validate, &req) {
		return
	}
	rec := domain.Recipient{
		ID:           "preview",
		Name:         req.Recipient.Name,
		Email:        req.Recipient.Email,
		Company:      req.Recipient.Company,
		Role:         req.Recipient.Role,
		Industry:     req.Recipient.Industry,
		PainPoint:    req.Recipient.PainPoint,
		CustomFields: req.Recipient.CustomFields,
	}
	content, err := h.engine.PersonalizeForRecipient(r.Context(), rec, req.Tier, req.ScriptTemplate, req.VisualStyle)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, previewResponse{
		Tier:                    req.Tier,
		Content:                 content,
		Cost:                    h.engine.TierCost(req.Tier),
		EstimatedProcessingTime: h.engine.EstimatedProcessingTime(req.Tier),
	})
}
