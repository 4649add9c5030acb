package batch

import (
	"errors"
	"unicode/utf8"
)

// Sentinel errors for batch runs.
var (
	ErrBatchRunning   = errors.New("batch already running on this processor")
	ErrCampaignBusy   = errors.New("a batch is already running for this campaign")
	ErrNoRun          = errors.New("no active batch for this campaign")
	ErrInvalidOptions = errors.New("invalid batch options")
)

// maxErrorLen bounds error messages persisted on results, in bytes.
const maxErrorLen = 255

// truncateError cuts msg to maxErrorLen bytes without splitting a rune.
func truncateError(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
