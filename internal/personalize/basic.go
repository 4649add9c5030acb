package personalize

import (
	"fmt"

	"github.com/ignite/videocampaign/internal/domain"
)

// basic is pure: identical inputs always give identical bundles.
func (e *Engine) basic(r domain.Recipient, scriptTemplate string) *domain.PersonalizedContent {
	l := labelsFor(r)
	script := Substitute(scriptTemplate, r)

	intro := fmt.Sprintf("Hi %s!", l.name)
	overlay := fmt.Sprintf("%s @ %s", l.name, l.company)
	cta := fmt.Sprintf("See what this could mean for %s", l.company)

	vars := emailVars{
		name: l.name, company: l.company, role: l.role, industry: l.industry,
		message: script, cta: cta,
	}

	return &domain.PersonalizedContent{
		IntroText:    intro,
		OverlayText:  overlay,
		CTAText:      cta,
		EmailSubject: e.email.renderSubject(vars),
		EmailBody:    e.email.renderBody(vars),
		Assets: []domain.PersonalizationAsset{
			{Type: domain.AssetIntro, Data: map[string]any{"text": intro, "name": l.name}},
			{Type: domain.AssetOverlay, Data: map[string]any{"text": overlay, "name": l.name, "company": l.company}},
			{Type: domain.AssetCTA, Data: map[string]any{"text": cta, "company": l.company}},
		},
	}
}
