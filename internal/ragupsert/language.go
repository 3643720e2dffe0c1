package ragupsert

import "strings"

// DefaultLanguage mirrors language.py's DEFAULT_LANGUAGE = "en".
const DefaultLanguage = "en"

var canonicalLanguages = map[string]string{
	"en":      "en",
	"eng":     "en",
	"english": "en",
	"fr":      "fr",
	"fre":     "fr",
	"fra":     "fr",
	"french":  "fr",
	"francais": "fr",
	"français": "fr",
}

// NormalizeLanguage maps raw to "en" or "fr", trying an exact match first
// and then a two-letter prefix fallback, defaulting to DefaultLanguage when
// nothing matches — ported from language.py's normalize_language.
func NormalizeLanguage(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return DefaultLanguage
	}
	if canon, ok := canonicalLanguages[key]; ok {
		return canon
	}
	if len(key) >= 2 {
		if canon, ok := canonicalLanguages[key[:2]]; ok {
			return canon
		}
	}
	return DefaultLanguage
}
