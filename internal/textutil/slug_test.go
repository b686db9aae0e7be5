package textutil_test

import (
	"strings"
	"testing"

	"lectern/internal/textutil"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces and punctuation", "Sunday Sermon (Part 2)!", "sunday-sermon-part-2"},
		{"underscore date", "2024_05_12 Evening Service", "2024-05-12-evening-service"},
		{"diacritics fold", "Fête de Noël", "fete-de-noel"},
		{"consecutive separators", "a -- b___c", "a-b-c"},
		{"leading and trailing junk", "  ---hello--- ", "hello"},
		{"only punctuation", "!!!???", "recording"},
		{"empty", "", "recording"},
		{"already clean", "morning-prayer", "morning-prayer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textutil.Slugify(tt.in); got != tt.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	long := strings.Repeat("word ", 40)
	slug := textutil.Slugify(long)
	if len(slug) > textutil.MaxSlugLength {
		t.Fatalf("slug length %d exceeds cap", len(slug))
	}
	if strings.HasSuffix(slug, "-") {
		t.Fatalf("capped slug ends with hyphen: %q", slug)
	}
}
