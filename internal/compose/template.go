// Package compose builds the outgoing message text for workflow actions:
// fixed defaults, user templates with variable substitution, or AI-generated
// copy via AWS Bedrock when a node is configured for it.
package compose

import (
	"regexp"
	"strings"
)

// Default texts used when a node has neither a custom message nor AI enabled.
const (
	DefaultConnectionMessage = "Hi, I came across your profile and would love to connect."
	DefaultFollowupMessage   = "Hi {{first_name}}, thanks for connecting! I'd love to hear more about your work at {{company}}."
	DefaultComment           = "Great post, thanks for sharing!"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Substitute replaces {{variable}} placeholders in text using the given map.
// Variable names match case-insensitively; placeholders with no value are
// dropped; runs of whitespace (including those left by dropped placeholders)
// collapse to a single space. Substituting twice yields the same string.
func Substitute(text string, vars map[string]string) string {
	lowered := make(map[string]string, len(vars))
	for k, v := range vars {
		lowered[strings.ToLower(k)] = v
	}

	out := placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		return lowered[strings.ToLower(key)]
	})

	return strings.TrimSpace(whitespaceRe.ReplaceAllString(out, " "))
}

// LeadVars builds the substitution map for a lead.
func LeadVars(firstName, lastName, company string) map[string]string {
	return map[string]string{
		"first_name": firstName,
		"last_name":  lastName,
		"company":    company,
	}
}
