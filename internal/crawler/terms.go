package crawler

import (
	"strings"
	"unicode"
)

// NormalizeTerm canonicalizes a term for comparison and queueing: lowercase,
// trimmed, hyphens unified to spaces, internal whitespace collapsed. Hyphens
// and spaces are interchangeable separators for equality purposes.
func NormalizeTerm(term string) string {
	s := strings.ToLower(strings.TrimSpace(term))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// IsCandidate reports whether a normalized term is worth crawling:
// at least two characters, letters only (spaces between words aside).
func IsCandidate(term string) bool {
	if len(term) < 2 {
		return false
	}
	for _, r := range term {
		if r == ' ' {
			continue
		}
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// urlTerm converts a normalized term to its URL path segment.
// 页面 URL 里多词词条用连字符。
func urlTerm(term string) string {
	return strings.ReplaceAll(term, " ", "-")
}
