package personalize

import (
	"context"
	"fmt"

	"github.com/ignite/videocampaign/internal/ai"
	"github.com/ignite/videocampaign/internal/domain"
)

// Caption window for the role message, in seconds from video start.
const (
	captionStartSeconds    = 3
	captionDurationSeconds = 5
)

// smart extends base with three generations. base is not modified.
func (e *Engine) smart(ctx context.Context, r domain.Recipient, base *domain.PersonalizedContent, visualStyle string) (*domain.PersonalizedContent, error) {
	l := labelsFor(r)
	style := orDefault(visualStyle, "professional")

	visual, err := e.generate(ctx, "smart_visual", fmt.Sprintf(
		"Describe, in at most 50 words, a %s visual scene appropriate for the %s industry. "+
			"The description will be used as an image or video generation prompt. Return only the description.",
		style, l.industry), ai.ModeText)
	if err != nil {
		return nil, err
	}

	role, err := e.generate(ctx, "smart_role", fmt.Sprintf(
		"Write a value proposition of at most 100 words for a %s in the %s industry. "+
			"Address the challenges someone in this role most likely faces. Return only the message.",
		l.role, l.industry), ai.ModeText)
	if err != nil {
		return nil, err
	}

	insight, err := e.generate(ctx, "smart_insight", fmt.Sprintf(
		"Write an opening line of at most 50 words for an email to %s at %s that shows you researched the company. "+
			"Return only the line.",
		l.name, l.company), ai.ModeText)
	if err != nil {
		return nil, err
	}

	out := base.Clone()
	out.IntroText = base.IntroText + " " + insight.text
	out.OverlayText = fmt.Sprintf("%s | %s | %s", l.name, l.role, l.company)
	out.Assets = append(out.Assets,
		domain.PersonalizationAsset{
			Type:             domain.AssetBRoll,
			Data:             map[string]any{"description": visual.text, "style": style},
			Prompt:           visual.prompt,
			GenerationTimeMs: visual.took.Milliseconds(),
		},
		domain.PersonalizationAsset{
			Type: domain.AssetCaption,
			Data: map[string]any{
				"text":       role.text,
				"start_time": captionStartSeconds,
				"duration":   captionDurationSeconds,
			},
			Prompt:           role.prompt,
			GenerationTimeMs: role.took.Milliseconds(),
		},
	)
	out.EmailBody = e.email.renderBody(emailVars{
		name: l.name, company: l.company, role: l.role, industry: l.industry,
		message: role.text, cta: out.CTAText,
	})
	return out, nil
}
