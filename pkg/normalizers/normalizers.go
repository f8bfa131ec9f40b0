// Package normalizers prepares raw company fields for comparison and
// blocking. All functions are pure.
package normalizers

import (
	"sort"
	"strings"
	"unicode"
)

// Name lowercases, strips punctuation and collapses whitespace.
func Name(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// NamePrefix returns the blocking prefix of a normalized name: the
// first prefixLen runes with spaces removed.
func NamePrefix(s string, prefixLen int) string {
	compact := strings.ReplaceAll(Name(s), " ", "")
	runes := []rune(compact)
	if len(runes) <= prefixLen {
		return string(runes)
	}
	return string(runes[:prefixLen])
}

// TokenSort returns the normalized tokens of s in sorted order. Two
// strings with the same tokens in different order normalize equal.
func TokenSort(s string) string {
	tokens := strings.Fields(Name(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// City lowercases and collapses whitespace.
func City(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Phone reduces a phone number to digits and folds country-code
// variants: an international 00 prefix is dropped, a national leading 0
// is replaced by countryCode. "+49 711 123456", "0049711123456" and
// "0711123456" all normalize to "49711123456" with countryCode "49".
func Phone(s, countryCode string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		digits = countryCode + digits[1:]
	}
	return digits
}

// Website lowercases a URL and strips scheme, leading www. and the
// trailing slash.
func Website(s string) string {
	u := strings.TrimSpace(strings.ToLower(s))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	return strings.TrimSuffix(u, "/")
}
