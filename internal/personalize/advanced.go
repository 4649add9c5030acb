package personalize

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/videocampaign/internal/ai"
	"github.com/ignite/videocampaign/internal/domain"
)

// Research is the structured company/industry research of the advanced tier.
type Research struct {
	Challenges []string `json:"challenges"`
	Trends     []string `json:"trends"`
	Advantages []string `json:"advantages"`
}

var (
	defaultTrends = []string{
		"Teams are consolidating tools to cut costs",
		"Buyers expect personalized outreach",
		"AI is reshaping day-to-day workflows",
	}
	defaultAdvantages = []string{
		"Faster time to value",
		"Measurable engagement lift",
		"Less manual work for the team",
	}
)

// defaultResearch is used when the research answer is not valid JSON.
func defaultResearch(r domain.Recipient) Research {
	challenge := strings.TrimSpace(r.PainPoint)
	if challenge == "" {
		challenge = "Growing efficiently without adding headcount"
	}
	return Research{
		Challenges: []string{challenge},
		Trends:     append([]string(nil), defaultTrends...),
		Advantages: append([]string(nil), defaultAdvantages...),
	}
}

// defaultCTAs is used when the CTA answer is not a usable JSON array.
func defaultCTAs(l recipientLabels) []string {
	return []string{
		fmt.Sprintf("Book 15 minutes to see how %s can move faster", l.company),
		fmt.Sprintf("%s, reply and I'll send you a custom plan", l.name),
		fmt.Sprintf("Watch how teams like %s are getting ahead", l.company),
	}
}

// advanced extends base with research, a background prompt and CTA options.
// base is not modified.
func (e *Engine) advanced(ctx context.Context, r domain.Recipient, base *domain.PersonalizedContent, visualStyle string) (*domain.PersonalizedContent, error) {
	l := labelsFor(r)
	style := orDefault(visualStyle, "cinematic")

	researchGen, err := e.generate(ctx, "advanced_research", fmt.Sprintf(
		"Research %s, a company in the %s industry. The contact is a %s who mentioned: %q. "+
			`Return a JSON object with the keys "challenges", "trends" and "advantages", each an array of short strings.`,
		l.company, l.industry, l.role, r.PainPoint), ai.ModeJSON)
	if err != nil {
		return nil, err
	}
	var research Research
	if err := ai.DecodeJSON(researchGen.text, &research); err != nil {
		e.log.Debug("research answer not valid JSON, using default", "recipient_id", r.ID, "error", err)
		research = defaultResearch(r)
	}

	background, err := e.generate(ctx, "advanced_background", fmt.Sprintf(
		"Write a cinematic background scene prompt for a short %s style video aimed at a %s at %s in the %s industry. "+
			"Return only the prompt.",
		style, l.role, l.company, l.industry), ai.ModeText)
	if err != nil {
		return nil, err
	}

	ctaGen, err := e.generate(ctx, "advanced_cta", fmt.Sprintf(
		"Write 3 short call-to-action phrasings for %s at %s. Return a JSON array of 3 strings.",
		l.name, l.company), ai.ModeJSON)
	if err != nil {
		return nil, err
	}
	var ctas []string
	if err := ai.DecodeJSON(ctaGen.text, &ctas); err != nil || len(nonBlank(ctas)) == 0 {
		ctas = defaultCTAs(l)
	}
	ctas = nonBlank(ctas)
	if len(ctas) > 3 {
		ctas = ctas[:3]
	}

	out := base.Clone()
	out.Assets = append(out.Assets,
		domain.PersonalizationAsset{
			Type: domain.AssetBackground,
			Data: map[string]any{
				"prompt": background.text,
				"style":  style,
				"model":  e.backgroundModel,
			},
			Prompt:           background.prompt,
			GenerationTimeMs: background.took.Milliseconds(),
		},
		domain.PersonalizationAsset{
			Type: domain.AssetOverlay,
			Data: map[string]any{
				"research":    research,
				"cta_options": ctas,
			},
			Prompt:           researchGen.prompt,
			GenerationTimeMs: (researchGen.took + ctaGen.took).Milliseconds(),
		},
	)
	out.CTAText = ctas[0]
	out.EmailBody = e.email.renderBody(emailVars{
		name: l.name, company: l.company, role: l.role, industry: l.industry,
		message: researchMessage(l, research), cta: out.CTAText,
	})
	return out, nil
}

func researchMessage(l recipientLabels, res Research) string {
	challenge := firstOr(res.Challenges, "keeping up with a fast-moving market")
	trend := firstOr(res.Trends, defaultTrends[0])
	advantage := firstOr(res.Advantages, defaultAdvantages[0])
	return fmt.Sprintf(
		"I've been looking at %s and the %s space. One challenge that stood out: %s. "+
			"At the same time: %s. Where we can help: %s.",
		l.company, l.industry, strings.TrimSuffix(challenge, "."), strings.TrimSuffix(trend, "."), strings.TrimSuffix(advantage, "."))
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstOr(in []string, def string) string {
	if s := nonBlank(in); len(s) > 0 {
		return s[0]
	}
	return def
}
