package personalize

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"
)

// Default Liquid templates for the outbound email. Bindings: name, company,
// role, industry, message, cta.
const (
	DefaultSubjectTemplate = `{{ name }}, I recorded a quick video for {{ company }}`
	DefaultBodyTemplate    = `Hi {{ name }},

{{ message }}

I put together a short video just for you. {{ cta }}

Talk soon`
)

type emailTemplates struct {
	subject *liquid.Template
	body    *liquid.Template
}

func parseEmailTemplates(subject, body string) (*emailTemplates, error) {
	if subject == "" {
		subject = DefaultSubjectTemplate
	}
	if body == "" {
		body = DefaultBodyTemplate
	}
	engine := liquid.NewEngine()
	s, err := engine.ParseString(subject)
	if err != nil {
		return nil, fmt.Errorf("personalize: parse subject template: %w", err)
	}
	b, err := engine.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("personalize: parse body template: %w", err)
	}
	return &emailTemplates{subject: s, body: b}, nil
}

type emailVars struct {
	name, company, role, industry string
	message, cta                  string
}

func (v emailVars) bindings() liquid.Bindings {
	return liquid.Bindings{
		"name":     v.name,
		"company":  v.company,
		"role":     v.role,
		"industry": v.industry,
		"message":  v.message,
		"cta":      v.cta,
	}
}

func (t *emailTemplates) renderSubject(v emailVars) string {
	out, err := t.subject.RenderString(v.bindings())
	if err != nil {
		return fmt.Sprintf("%s, I recorded a quick video for %s", v.name, v.company)
	}
	return strings.TrimSpace(out)
}

func (t *emailTemplates) renderBody(v emailVars) string {
	out, err := t.body.RenderString(v.bindings())
	if err != nil {
		return fmt.Sprintf("Hi %s,\n\n%s\n\n%s", v.name, v.message, v.cta)
	}
	return strings.TrimSpace(out)
}
