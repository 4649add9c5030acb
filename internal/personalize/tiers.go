package personalize

import "github.com/ignite/videocampaign/internal/domain"

// TierConfig is the fixed cost and time budget of one tier.
type TierConfig struct {
	Cost             float64  `json:"cost" yaml:"cost"`
	ProcessingTimeMs int64    `json:"processing_time_ms" yaml:"processing_time_ms"`
	Features         []string `json:"features" yaml:"features"`
}

// TierTable maps each tier to its configuration.
type TierTable map[domain.Tier]TierConfig

// DefaultTierTable returns the built-in tier configuration.
func DefaultTierTable() TierTable {
	basic := []string{"text_substitution", "name_overlay", "company_overlay", "template_email"}
	smart := append(append([]string{}, basic...),
		"ai_visual_description", "role_messaging", "company_insight", "broll", "captions")
	advanced := append(append([]string{}, smart...),
		"deep_research", "background_generation", "cta_optimization")

	return TierTable{
		domain.TierBasic:    {Cost: 0.10, ProcessingTimeMs: 2000, Features: basic},
		domain.TierSmart:    {Cost: 0.50, ProcessingTimeMs: 15000, Features: smart},
		domain.TierAdvanced: {Cost: 2.00, ProcessingTimeMs: 45000, Features: advanced},
	}
}

// Merge returns a copy of t with the non-zero fields of overrides applied.
func (t TierTable) Merge(overrides TierTable) TierTable {
	out := make(TierTable, len(t))
	for tier, cfg := range t {
		out[tier] = cfg
	}
	for tier, o := range overrides {
		if !tier.IsValid() {
			continue
		}
		cfg := out[tier]
		if o.Cost > 0 {
			cfg.Cost = o.Cost
		}
		if o.ProcessingTimeMs > 0 {
			cfg.ProcessingTimeMs = o.ProcessingTimeMs
		}
		if len(o.Features) > 0 {
			cfg.Features = append([]string(nil), o.Features...)
		}
		out[tier] = cfg
	}
	return out
}

// TierCost returns the fixed cost of a tier, 0 for an unknown tier.
func (e *Engine) TierCost(tier domain.Tier) float64 {
	return e.tiers[tier].Cost
}

// EstimatedProcessingTime returns the tier's time budget in milliseconds.
func (e *Engine) EstimatedProcessingTime(tier domain.Tier) int64 {
	return e.tiers[tier].ProcessingTimeMs
}

// TierFeatures returns the tier's capability tags.
func (e *Engine) TierFeatures(tier domain.Tier) []string {
	f := e.tiers[tier].Features
	if f == nil {
		return nil
	}
	return append([]string(nil), f...)
}

// Tiers returns a copy of the engine's tier table.
func (e *Engine) Tiers() TierTable {
	return TierTable{}.Merge(e.tiers)
}
