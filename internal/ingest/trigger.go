package ingest

import "strings"

// TriggerMatcher decides whether a group message addresses the assistant.
// It returns the trigger phrases that matched.
type TriggerMatcher interface {
	Match(body string) (matched []string, ok bool)
}

// PhraseMatcher matches any of a list of phrases as a case-insensitive
// substring of the message body.
type PhraseMatcher struct {
	phrases []string
}

// NewPhraseMatcher creates a matcher over the given phrases. Empty phrases
// are dropped.
func NewPhraseMatcher(phrases []string) *PhraseMatcher {
	m := &PhraseMatcher{}
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			m.phrases = append(m.phrases, p)
		}
	}
	return m
}

func (m *PhraseMatcher) Match(body string) ([]string, bool) {
	lower := strings.ToLower(body)
	var matched []string
	for _, p := range m.phrases {
		if strings.Contains(lower, p) {
			matched = append(matched, p)
		}
	}
	return matched, len(matched) > 0
}
