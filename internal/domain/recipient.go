package domain

import "time"

// RecipientStatus enumerates the lifecycle states of a campaign recipient.
type RecipientStatus string

const (
	RecipientPending    RecipientStatus = "pending"
	RecipientProcessing RecipientStatus = "processing"
	RecipientReady      RecipientStatus = "ready"
	RecipientSent       RecipientStatus = "sent"
	RecipientViewed     RecipientStatus = "viewed"
	RecipientFailed     RecipientStatus = "failed"
)

// IsValid reports whether s is a known recipient status.
func (s RecipientStatus) IsValid() bool {
	switch s {
	case RecipientPending, RecipientProcessing, RecipientReady,
		RecipientSent, RecipientViewed, RecipientFailed:
		return true
	}
	return false
}

func (s RecipientStatus) String() string { return string(s) }

// allowedFrom maps a target status to the statuses it may be entered from.
// pending is never a target: recipients are created pending and never go back.
var allowedFrom = map[RecipientStatus][]RecipientStatus{
	RecipientProcessing: {RecipientPending, RecipientFailed},
	RecipientReady:      {RecipientProcessing},
	RecipientFailed:     {RecipientProcessing},
	RecipientSent:       {RecipientReady},
	RecipientViewed:     {RecipientSent, RecipientViewed},
}

// AllowedFrom returns the statuses a recipient may hold immediately before
// entering to. The returned slice must not be modified.
func AllowedFrom(to RecipientStatus) []RecipientStatus {
	return allowedFrom[to]
}

// CanTransition reports whether a recipient in status from may move to status to.
func CanTransition(from, to RecipientStatus) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Custom field keys written by the personalization pipeline. They are excluded
// from bracket-token substitution.
const (
	FieldPersonalizedContent     = "personalized_content"
	FieldPersonalizationTier     = "personalization_tier"
	FieldPersonalizationManifest = "personalization_manifest"
)

// IsReservedField reports whether key is owned by the pipeline rather than
// sourced from import.
func IsReservedField(key string) bool {
	switch key {
	case FieldPersonalizedContent, FieldPersonalizationTier, FieldPersonalizationManifest:
		return true
	}
	return false
}

// Recipient is one target of personalization within a campaign.
type Recipient struct {
	ID           string            `json:"id" db:"id"`
	CampaignID   string            `json:"campaign_id" db:"campaign_id"`
	Name         string            `json:"name" db:"name"`
	Email        string            `json:"email" db:"email"`
	Company      string            `json:"company,omitempty" db:"company"`
	Role         string            `json:"role,omitempty" db:"role"`
	Industry     string            `json:"industry,omitempty" db:"industry"`
	PainPoint    string            `json:"pain_point,omitempty" db:"pain_point"`
	CustomFields map[string]string `json:"custom_fields" db:"custom_fields"`
	Status       RecipientStatus   `json:"status" db:"status"`

	// Output of processing
	PersonalizedVideoURL string  `json:"personalized_video_url,omitempty" db:"personalized_video_url"`
	ThumbnailURL         string  `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	GenerationCost       float64 `json:"generation_cost" db:"generation_cost"`
	ProcessingTimeMs     int64   `json:"processing_time_ms" db:"processing_time_ms"`

	// Engagement, driven by external send/view events
	SentAt               *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	ViewedAt             *time.Time `json:"viewed_at,omitempty" db:"viewed_at"`
	ViewCount            int        `json:"view_count" db:"view_count"`
	WatchDurationSeconds float64    `json:"watch_duration_seconds" db:"watch_duration_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the best human label for progress reporting.
func (r *Recipient) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.Email != "" {
		return r.Email
	}
	return r.ID
}

// StatusUpdate carries the optional fields persisted alongside a status
// transition. Nil pointers and a nil map are left untouched.
type StatusUpdate struct {
	PersonalizedVideoURL *string
	ThumbnailURL         *string
	GenerationCost       *float64
	ProcessingTimeMs     *int64
	CustomFields         map[string]string
	SentAt               *time.Time
}
