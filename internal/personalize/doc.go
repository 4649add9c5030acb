// Package personalize turns one recipient plus a script template and visual
// style into a PersonalizedContent bundle at a chosen tier.
//
// Tiers are strictly additive and fail downward:
//
//	basic    local token substitution and templated copy, no provider calls
//	smart    basic + visual, role and company-insight generations
//	advanced smart + research (JSON), background scene prompt, CTA options (JSON)
//
// A failed generative call at smart or advanced returns the previous tier's
// bundle unchanged. Provider failures never escape the Engine.
package personalize
