package schema

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonDigitRe   = regexp.MustCompile(`\D`)
)

// cleanString applies the cleaning policy: trim, collapse repeated
// whitespace, run the named normalizer if any, then truncate to the
// declared maximum length. Cleaning never expands a value.
func cleanString(s string, spec FieldSpec) string {
	s = CollapseWhitespace(s)

	switch spec.Normalize {
	case "phone":
		if formatted := FormatPhone(s); formatted != "" {
			s = formatted
		}
	}

	// Length limits count characters, not bytes, so truncation never splits
	// a multibyte rune.
	if spec.MaxLength > 0 && utf8.RuneCountInString(s) > spec.MaxLength {
		runes := []rune(s)
		s = string(runes[:spec.MaxLength])
	}
	return s
}

// CollapseWhitespace trims a string and squeezes internal runs of
// whitespace down to single spaces.
func CollapseWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// FormatPhone normalizes a North American phone number to +1XXXXXXXXXX.
// Returns "" when the digits do not form a valid NANP number.
func FormatPhone(s string) string {
	digits := nonDigitRe.ReplaceAllString(s, "")
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	default:
		return ""
	}
}
