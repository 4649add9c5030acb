package recipient

import "errors"

// Sentinel errors for the recipient layer.
var (
	ErrNotFound          = errors.New("recipient not found")
	ErrInvalidTransition = errors.New("invalid recipient status transition")
	ErrMissingCampaign   = errors.New("campaign id is required")
)
