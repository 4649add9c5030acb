package personalize

import (
	"regexp"
	"strings"

	"github.com/ignite/videocampaign/internal/domain"
)

// tokenPattern matches bracket tokens such as [NAME], [first.name] or
// [Stadt/Ort]. A token body is anything except another bracket.
var tokenPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// Substitute replaces every bracket token in template with the recipient's
// value for it. Matching is case-insensitive; unresolved tokens become "".
func Substitute(template string, r domain.Recipient) string {
	values := tokenValues(r)
	return tokenPattern.ReplaceAllStringFunc(template, func(tok string) string {
		key := normalizeToken(tokenPattern.FindStringSubmatch(tok)[1])
		return values[key]
	})
}

// ExtractVariables returns the distinct token names in template, upper-cased,
// in first-seen order.
func ExtractVariables(template string) []string {
	matches := tokenPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		key := normalizeToken(m[1])
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

func tokenValues(r domain.Recipient) map[string]string {
	values := make(map[string]string, len(r.CustomFields)+6)
	for k, v := range r.CustomFields {
		if domain.IsReservedField(k) {
			continue
		}
		values[normalizeToken(k)] = v
	}
	// Built-in attributes win over custom fields of the same name when set
	for k, v := range map[string]string{
		"NAME":       r.Name,
		"COMPANY":    r.Company,
		"EMAIL":      r.Email,
		"ROLE":       r.Role,
		"INDUSTRY":   r.Industry,
		"PAIN_POINT": r.PainPoint,
	} {
		if v != "" {
			values[k] = v
		}
	}
	return values
}

func normalizeToken(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
