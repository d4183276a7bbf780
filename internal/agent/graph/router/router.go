package router

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Directive is a structured signal from the response model telling the graph
// which tool node to enter next.
type Directive string

const (
	DirectivePresentation Directive = "ppt_sharing"
	DirectivePricing      Directive = "goto_pricing"
	DirectiveMeeting      Directive = "ask_meeting"
)

// Vocabulary is the closed set of routable directives, in suggestion order.
func Vocabulary() []Directive {
	return []Directive{DirectivePresentation, DirectivePricing, DirectiveMeeting}
}

// basic safety limits to avoid pathological inputs
const maxContentLen = 64 * 1024 // 64KB

type directivePayload struct {
	Directive string `json:"directive"`
}

// Extract inspects an assistant reply for a tool directive.
//
// The preferred contract is a bare JSON object {"directive": "<name>"}
// validated against the closed vocabulary. As a fallback for models that
// ignore the contract, a case-insensitive substring match anywhere in the
// reply also routes; this keeps the legacy behaviour (and its known
// false-positive risk) alive for weaker models.
func Extract(content string) (Directive, bool) {
	if content == "" {
		return "", false
	}
	content = strings.TrimSpace(cutAtRune(content, maxContentLen))

	if d, ok := extractStructured(content); ok {
		return d, true
	}

	lower := strings.ToLower(content)
	for _, d := range Vocabulary() {
		if strings.Contains(lower, string(d)) {
			return d, true
		}
	}
	return "", false
}

// extractStructured parses the JSON directive contract. Code fences around
// the object are tolerated since models love wrapping JSON in markdown.
func extractStructured(content string) (Directive, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(content, "```json"), "```"))
	s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", false
	}

	var p directivePayload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return "", false
	}
	name := strings.ToLower(strings.TrimSpace(p.Directive))
	for _, d := range Vocabulary() {
		if name == string(d) {
			return d, true
		}
	}
	return "", false
}

// cutAtRune caps s at n bytes without splitting a multi-byte rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
