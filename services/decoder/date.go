package decoder

import (
	"net/mail"
	"strings"
	"time"
	"unicode"
)

var localDateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
	"Mon, 2 Jan 06 15:04:05",
	"2 Jan 06 15:04:05",
}

// ExtractDate parses the Date header. When the zone cannot be resolved the date
// components are read as local time; absent or unparsable dates give def.
func ExtractDate(msg *Message, def time.Time) time.Time {
	if t, ok := ParseDate(msg.Header("Date")); ok {
		return t
	}
	return def
}

// ParseDate reads a Date header value, falling back to local time when the zone
// cannot be resolved.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t, true
	}
	return parseLocalDate(value)
}

func parseLocalDate(value string) (time.Time, bool) {
	fields := strings.Fields(value)
	for len(fields) > 0 && isZoneToken(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	if len(fields) == 0 {
		return time.Time{}, false
	}
	joined := strings.Join(fields, " ")
	for _, layout := range localDateLayouts {
		if t, err := time.ParseInLocation(layout, joined, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isZoneToken(token string) bool {
	if strings.HasPrefix(token, "+") || strings.HasPrefix(token, "-") || strings.HasPrefix(token, "(") || strings.HasSuffix(token, ")") {
		return true
	}
	for _, r := range token {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
