// Package language picks the best text variant for a requested language.
//
// Feed fields such as titles, descriptions and categories can carry several
// language-tagged variants. Tags are compared after canonicalisation, so
// "EN", "en" and "eng" are the same language.
package language

import (
	"strings"

	"golang.org/x/text/language"
)

// English is the fallback language used when the requested one is missing
const English = "en"

// Text is one language-tagged variant. An empty Lang means the variant is untagged.
type Text struct {
	Lang  string
	Value string
}

// Canonical returns the canonical BCP 47 form of tag, or the lower-cased input
// when it does not parse. The empty tag stays empty.
func Canonical(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	return t.String()
}

// Equal reports whether two tags name the same language
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// IsEnglish reports whether tag is English in any regional form
func IsEnglish(tag string) bool {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return false
	}
	base, _ := t.Base()
	return base.String() == English
}

// Resolve returns the best variant for requested.
//
// With no requested language the first untagged variant wins, else the first
// variant. Otherwise: an exact language match, then English (unless English
// was requested), then the first untagged variant, then the first variant.
// Resolve returns "" for an empty list.
func Resolve(variants []Text, requested string) string {
	if len(variants) == 0 {
		return ""
	}

	if strings.TrimSpace(requested) == "" {
		if v, ok := firstUntagged(variants); ok {
			return v
		}
		return variants[0].Value
	}

	want := Canonical(requested)
	for _, v := range variants {
		if v.Lang != "" && Canonical(v.Lang) == want {
			return v.Value
		}
	}

	if !IsEnglish(requested) {
		for _, v := range variants {
			if v.Lang != "" && IsEnglish(v.Lang) {
				return v.Value
			}
		}
	}

	if v, ok := firstUntagged(variants); ok {
		return v
	}
	return variants[0].Value
}

// Filter returns every tagged variant whose language equals lang, in order
func Filter(variants []Text, lang string) []string {
	want := Canonical(lang)
	var out []string
	for _, v := range variants {
		if v.Lang != "" && Canonical(v.Lang) == want {
			out = append(out, v.Value)
		}
	}
	return out
}

func firstUntagged(variants []Text) (string, bool) {
	for _, v := range variants {
		if v.Lang == "" {
			return v.Value, true
		}
	}
	return "", false
}

// FilterEnglish returns English variants of any region plus untagged ones, in order
func FilterEnglish(variants []Text) []string {
	var out []string
	for _, v := range variants {
		if v.Lang == "" || IsEnglish(v.Lang) {
			out = append(out, v.Value)
		}
	}
	return out
}
