package domain

import "time"

// CampaignStats summarizes recipient state for one campaign.
type CampaignStats struct {
	CampaignID      string `json:"campaign_id"`
	TotalRecipients int    `json:"total_recipients"`

	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Ready      int `json:"ready"`
	Sent       int `json:"sent"`
	Viewed     int `json:"viewed"`
	Failed     int `json:"failed"`

	TotalCost               float64 `json:"total_cost"`
	AverageCostPerReady     float64 `json:"average_cost_per_ready"`
	AverageProcessingTimeMs float64 `json:"average_processing_time_ms"`

	TotalViews        int     `json:"total_views"`
	TotalWatchSeconds float64 `json:"total_watch_seconds"`
	ViewRate          float64 `json:"view_rate"` // viewed / (sent + viewed)

	ComputedAt time.Time `json:"computed_at"`
}

// Personalized returns how many recipients hold a personalized artifact,
// i.e. reached ready or anything downstream of it.
func (s *CampaignStats) Personalized() int {
	return s.Ready + s.Sent + s.Viewed
}
