package domain

// Tier selects how much generative enrichment a recipient receives.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierSmart    Tier = "smart"
	TierAdvanced Tier = "advanced"
)

// Tiers lists every tier in increasing capability order.
var Tiers = []Tier{TierBasic, TierSmart, TierAdvanced}

// IsValid reports whether t is a known tier.
func (t Tier) IsValid() bool {
	switch t {
	case TierBasic, TierSmart, TierAdvanced:
		return true
	}
	return false
}

func (t Tier) String() string { return string(t) }

// AssetKind tags a personalization asset.
type AssetKind string

const (
	AssetIntro      AssetKind = "intro"
	AssetOverlay    AssetKind = "overlay"
	AssetCTA        AssetKind = "cta"
	AssetBRoll      AssetKind = "broll"
	AssetCaption    AssetKind = "caption"
	AssetBackground AssetKind = "background"
)

// PersonalizationAsset is one templated or generated piece of content.
// Prompt is set only for assets backed by a generative call.
type PersonalizationAsset struct {
	Type             AssetKind      `json:"type"`
	Data             map[string]any `json:"data"`
	Prompt           string         `json:"prompt,omitempty"`
	GenerationTimeMs int64          `json:"generation_time_ms"`
}

// PersonalizedContent is the output bundle for one recipient at one tier.
type PersonalizedContent struct {
	IntroText    string                 `json:"intro_text"`
	OverlayText  string                 `json:"overlay_text"`
	CTAText      string                 `json:"cta_text"`
	EmailSubject string                 `json:"email_subject"`
	EmailBody    string                 `json:"email_body"`
	Assets       []PersonalizationAsset `json:"assets"`
}

// Clone returns a copy whose asset slice can be appended to without touching c.
func (c *PersonalizedContent) Clone() *PersonalizedContent {
	out := *c
	out.Assets = make([]PersonalizationAsset, len(c.Assets))
	copy(out.Assets, c.Assets)
	return &out
}

// AssetKinds returns the kinds of c's assets in order.
func (c *PersonalizedContent) AssetKinds() []AssetKind {
	kinds := make([]AssetKind, len(c.Assets))
	for i, a := range c.Assets {
		kinds[i] = a.Type
	}
	return kinds
}

// MasterAsset is the master recording a campaign personalizes.
type MasterAsset struct {
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Script       string `json:"script,omitempty"`
}

// BatchProgress is a snapshot of an in-flight batch run.
type BatchProgress struct {
	Total                  int    `json:"total"`
	Completed              int    `json:"completed"`
	Failed                 int    `json:"failed"`
	InProgress             int    `json:"in_progress"`
	EstimatedTimeRemaining int    `json:"estimated_time_remaining"` // seconds
	CurrentRecipient       string `json:"current_recipient,omitempty"`
}

// ProcessingResult is the outcome of one processing attempt for one recipient.
type ProcessingResult struct {
	RecipientID      string               `json:"recipient_id"`
	Success          bool                 `json:"success"`
	VideoURL         string               `json:"video_url,omitempty"`
	Content          *PersonalizedContent `json:"content,omitempty"`
	Cost             float64              `json:"cost"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
	Error            string               `json:"error,omitempty"`
}
