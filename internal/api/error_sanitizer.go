package api

import (
	"errors"
	"net/http"

	"github.com/ignite/videocampaign/internal/batch"
	"github.com/ignite/videocampaign/internal/personalize"
	"github.com/ignite/videocampaign/internal/pkg/httputil"
	"github.com/ignite/videocampaign/internal/recipient"
)

// respondServiceError maps domain sentinels to client statuses. Anything
// unrecognized is a 500 whose details stay in the server log.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recipient.ErrNotFound):
		httputil.NotFound(w, "recipient not found")
	case errors.Is(err, recipient.ErrInvalidTransition):
		httputil.Conflict(w, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, recipient.ErrMissingCampaign):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, personalize.ErrUnknownTier), errors.Is(err, batch.ErrInvalidOptions):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "INVALID_OPTIONS", err.Error())
	case errors.Is(err, batch.ErrCampaignBusy), errors.Is(err, batch.ErrBatchRunning):
		httputil.Conflict(w, "BATCH_RUNNING", err.Error())
	case errors.Is(err, batch.ErrNoRun):
		httputil.ErrorWithCode(w, http.StatusNotFound, "NO_ACTIVE_BATCH", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
