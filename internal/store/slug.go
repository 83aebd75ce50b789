package store

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// slugRegex matches characters that should be replaced with hyphens
	slugRegex = regexp.MustCompile(`[^a-z0-9]+`)
	// multiHyphenRegex matches multiple consecutive hyphens
	multiHyphenRegex = regexp.MustCompile(`-+`)
)

// Slugify converts an artifact name into a filesystem-friendly slug.
// Rules:
// - Lowercase
// - Replace runs of non-alphanumerics with a hyphen
// - Trim leading/trailing hyphens
// - Max length: 50 chars
//
// Examples:
//
//	"clean_sample.csv" -> "clean-sample-csv"
//	"Test Data (2019)" -> "test-data-2019"
func Slugify(name string) string {
	if name == "" {
		return ""
	}

	result := cases.Lower(language.Und).String(strings.TrimSpace(name))
	result = slugRegex.ReplaceAllString(result, "-")
	result = multiHyphenRegex.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if len(result) > 50 {
		cutoff := 50
		if idx := strings.LastIndex(result[:cutoff], "-"); idx > 0 {
			cutoff = idx
		}
		result = result[:cutoff]
	}

	return result
}

// dirKey maps an artifact name to its directory under artifacts/.
// Names differing only in case or punctuation share a slug, so a short
// digest of the exact name keeps their version histories apart.
func dirKey(name string) string {
	sum := blake2b.Sum256([]byte(name))
	suffix := hex.EncodeToString(sum[:4])
	slug := Slugify(name)
	if slug == "" {
		return "artifact-" + suffix
	}
	return slug + "-" + suffix
}
