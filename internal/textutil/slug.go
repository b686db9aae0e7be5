package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength caps slug bytes so deep output trees stay well under
// filesystem name limits.
const MaxSlugLength = 96

// SlugFallback is used when a name reduces to nothing.
const SlugFallback = "recording"

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify reduces a file name (without extension) to a directory-safe
// segment: diacritics folded, lowercased, every run of non-alphanumerics
// collapsed into one hyphen, trimmed, and capped at MaxSlugLength.
// An empty result falls back to SlugFallback.
func Slugify(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	lowered := strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(lowered))
	pendingHyphen := false
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	if slug == "" {
		return SlugFallback
	}
	return slug
}
