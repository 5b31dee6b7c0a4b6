package decoder

import (
	"strings"
	"unicode/utf8"
)

// Column widths of the emails table.
const (
	MaxIdentityLength = 255
	MaxSenderLength   = 254
	MaxSubjectLength  = 512
)

// CleanText replaces invalid UTF-8 sequences with U+FFFD and drops NUL bytes.
func CleanText(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}

// TruncateRunes cuts s to at most limit characters.
func TruncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func storableIdentity(identity string) bool {
	return utf8.ValidString(identity) &&
		!strings.ContainsRune(identity, 0) &&
		utf8.RuneCountInString(identity) <= MaxIdentityLength
}
