// Package locale stores user language choices and resolves the language of each update.
package locale

import (
	"strings"
)

// Language is one supported bot language.
type Language struct {
	Code string
	Name string
}

// DefaultLanguages is used when the configured list is empty or unparsable.
var DefaultLanguages = []Language{
	{Code: "ru", Name: "Русский"},
	{Code: "en", Name: "English"},
}

// ParseLanguages parses "ru=Русский:en=English". The first entry is the default language.
func ParseLanguages(s string) []Language {
	var out []Language
	seen := make(map[string]bool)

	for _, item := range strings.Split(s, ":") {
		code, name, ok := strings.Cut(item, "=")
		code = strings.ToLower(strings.TrimSpace(code))
		if !ok || code == "" || seen[code] {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = code
		}
		seen[code] = true
		out = append(out, Language{Code: code, Name: name})
	}

	if len(out) == 0 {
		return append([]Language(nil), DefaultLanguages...)
	}
	return out
}

// Normalize reduces a platform locale like "en-US" to a two letter code.
func Normalize(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if len(locale) > 2 {
		locale = locale[:2]
	}
	return locale
}
