package aris

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxQuerySize is the query limit of engines built without
// WithMaxQuerySize.
const DefaultMaxQuerySize = 4096

var (
	ErrEmptyQuery    = errors.New("query is empty")
	ErrQueryTooLarge = errors.New("query exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("query contains invalid UTF-8 sequences")
)

// SanitizeQuery enforces limit (in bytes, DefaultMaxQuerySize when not
// positive), validates UTF-8 and strips control characters other than
// newline, tab and carriage return. Oversized input is rejected rather than
// truncated.
func SanitizeQuery(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxQuerySize
	}
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrQueryTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := input
	if strings.IndexFunc(input, isUnsafeControl) >= 0 {
		var b strings.Builder
		b.Grow(len(input))
		for _, r := range input {
			if !isUnsafeControl(r) {
				b.WriteRune(r)
			}
		}
		clean = b.String()
	}

	if strings.TrimSpace(clean) == "" {
		return "", ErrEmptyQuery
	}
	return clean, nil
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
