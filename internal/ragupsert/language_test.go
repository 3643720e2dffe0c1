package ragupsert

import "testing"

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"EN":       "en",
		"english":  "en",
		"fr":       "fr",
		"French":   "fr",
		"français": "fr",
		"fra-CA":   "fr",
		"":         "en",
		"xx":       "en",
	}
	for in, want := range cases {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
