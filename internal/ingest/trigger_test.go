package ingest

import "testing"

func TestPhraseMatcher(t *testing.T) {
	m := NewPhraseMatcher([]string{"Bot", "oye asistente", " ", ""})

	cases := []struct {
		body    string
		matched []string
		ok      bool
	}{
		{"hey BOT, how are you", []string{"bot"}, true},
		{"OYE ASISTENTE dime algo", []string{"oye asistente"}, true},
		{"bot oye asistente", []string{"bot", "oye asistente"}, true},
		{"nothing to see here", nil, false},
		{"", nil, false},
	}
	for _, tc := range cases {
		matched, ok := m.Match(tc.body)
		if ok != tc.ok {
			t.Errorf("Match(%q) ok = %v, want %v", tc.body, ok, tc.ok)
			continue
		}
		if len(matched) != len(tc.matched) {
			t.Errorf("Match(%q) = %v, want %v", tc.body, matched, tc.matched)
			continue
		}
		for i := range matched {
			if matched[i] != tc.matched[i] {
				t.Errorf("Match(%q) = %v, want %v", tc.body, matched, tc.matched)
			}
		}
	}
}

func TestPhraseMatcherEmptyList(t *testing.T) {
	m := NewPhraseMatcher(nil)
	if _, ok := m.Match("bot help me"); ok {
		t.Fatal("empty matcher must never match")
	}
}
