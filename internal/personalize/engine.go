package personalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/videocampaign/internal/ai"
	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/pkg/logger"
)

const defaultBackgroundModel = "runway-gen3-alpha"

// Engine produces personalized content. It is safe for concurrent use.
type Engine struct {
	gen             ai.TextGenerator
	tiers           TierTable
	email           *emailTemplates
	subjectTmpl     string
	bodyTmpl        string
	backgroundModel string
	log             *logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTierTable overrides the per-tier cost and time table.
func WithTierTable(t TierTable) Option {
	return func(e *Engine) { e.tiers = DefaultTierTable().Merge(t) }
}

// WithEmailTemplates sets the Liquid subject and body templates. Empty
// strings keep the defaults.
func WithEmailTemplates(subject, body string) Option {
	return func(e *Engine) {
		e.subjectTmpl = subject
		e.bodyTmpl = body
	}
}

// WithBackgroundModel sets the model id carried by background assets.
func WithBackgroundModel(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.backgroundModel = id
		}
	}
}

// WithLogger replaces the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine backed by gen. gen may be nil, in which case smart
// and advanced always fall back to basic.
func New(gen ai.TextGenerator, opts ...Option) (*Engine, error) {
	e := &Engine{
		gen:             gen,
		tiers:           DefaultTierTable(),
		backgroundModel: defaultBackgroundModel,
		log:             logger.Default().Named("personalize"),
	}
	for _, o := range opts {
		o(e)
	}
	email, err := parseEmailTemplates(e.subjectTmpl, e.bodyTmpl)
	if err != nil {
		return nil, err
	}
	e.email = email
	return e, nil
}

// PersonalizeForRecipient builds the recipient's content at tier. The only
// error is ErrUnknownTier; provider failures degrade to the lower tier.
func (e *Engine) PersonalizeForRecipient(ctx context.Context, r domain.Recipient, tier domain.Tier, scriptTemplate, visualStyle string) (*domain.PersonalizedContent, error) {
	if !tier.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	content := e.basic(r, scriptTemplate)
	if tier == domain.TierBasic {
		return content, nil
	}

	smart, err := e.smart(ctx, r, content, visualStyle)
	if err != nil {
		e.fallback(r, tier, domain.TierSmart, err)
		return content, nil
	}
	if tier == domain.TierSmart {
		return smart, nil
	}

	advanced, err := e.advanced(ctx, r, smart, visualStyle)
	if err != nil {
		e.fallback(r, tier, domain.TierAdvanced, err)
		return smart, nil
	}
	return advanced, nil
}

// ExtractVariables returns the bracket tokens used in template.
func (e *Engine) ExtractVariables(template string) []string {
	return ExtractVariables(template)
}

func (e *Engine) fallback(r domain.Recipient, requested, failed domain.Tier, err error) {
	fallbacksTotal.WithLabelValues(failed.String()).Inc()
	e.log.Warn("personalization step failed, using lower tier",
		"recipient_id", r.ID, "email", r.Email,
		"requested_tier", requested.String(), "failed_step", failed.String(), "error", err)
}

// generation is one timed provider answer.
type generation struct {
	prompt string
	text   string
	took   time.Duration
}

func (e *Engine) generate(ctx context.Context, step, prompt string, mode ai.ResponseMode) (generation, error) {
	if e.gen == nil {
		return generation{}, ai.ErrNoProvider
	}
	start := time.Now()
	text, err := e.gen.GenerateText(ctx, prompt, mode)
	g := generation{prompt: prompt, text: strings.TrimSpace(text), took: time.Since(start)}
	if err != nil {
		generationCalls.WithLabelValues(step, "error").Inc()
		return g, fmt.Errorf("%s: %w", step, err)
	}
	if g.text == "" {
		generationCalls.WithLabelValues(step, "error").Inc()
		return g, fmt.Errorf("%s: %w", step, errEmptyGeneration)
	}
	generationCalls.WithLabelValues(step, "ok").Inc()
	return g, nil
}

// recipientLabels returns display values with the defaults used in copy.
type recipientLabels struct {
	name, company, role, industry string
}

func labelsFor(r domain.Recipient) recipientLabels {
	return recipientLabels{
		name:     orDefault(r.Name, "there"),
		company:  orDefault(r.Company, "your company"),
		role:     orDefault(r.Role, "professional"),
		industry: orDefault(r.Industry, "business"),
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
