// Package api exposes personalization, recipient import, batch control and
// campaign stats over HTTP.
package api

import (
	"github.com/go-playground/validator/v10"

	"github.com/ignite/videocampaign/internal/batch"
	"github.com/ignite/videocampaign/internal/personalize"
	"github.com/ignite/videocampaign/internal/pkg/logger"
	"github.com/ignite/videocampaign/internal/recipient"
	"github.com/ignite/videocampaign/internal/stats"
)

// Handlers holds the services behind the HTTP routes.
type Handlers struct {
	engine     *personalize.Engine
	recipients *recipient.Service
	batches    *batch.Manager
	stats      *stats.Aggregator
	health     *HealthChecker
	validate   *validator.Validate
	log        *logger.Logger
}

// NewHandlers wires the handlers. health may be nil for a checker with no
// dependencies.
func NewHandlers(engine *personalize.Engine, recipients *recipient.Service, batches *batch.Manager, agg *stats.Aggregator, health *HealthChecker) *Handlers {
	if health == nil {
		health = NewHealthChecker(nil, nil)
	}
	return &Handlers{
		engine:     engine,
		recipients: recipients,
		batches:    batches,
		stats:      agg,
		health:     health,
		validate:   validator.New(),
		log:        logger.Default().Named("api"),
	}
}
