package utils

import (
	"strings"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Slugify turns a campaign title into a URL slug, suffixed with a short
// unique fragment so two campaigns can share a title.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}

	suffix := primitive.NewObjectID().Hex()
	suffix = suffix[len(suffix)-6:]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
