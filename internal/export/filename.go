package export

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"gallery/internal/domain"
)

// ArchiveFilename derives the suggested download name from the collection
// name and, when used, the output profile name.
func ArchiveFilename(collectionName string, profile *domain.OutputProfile) string {
	name := slugify(collectionName)
	if profile != nil && profile.Name != "" {
		name += "-" + slugify(profile.Name)
	}
	return name + ".zip"
}

// slugify folds a display name into a safe ASCII filename fragment.
// Diacritics are stripped rather than dropped so "Café Noël" stays legible.
func slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "export"
	}
	return out
}
