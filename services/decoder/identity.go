package decoder

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

const placeholderDomain = "localhost"

// ExtractIdentity returns the trimmed Message-Id header. It is "" when the header is
// absent or cannot be stored as is (invalid UTF-8, NUL or wider than the column).
func ExtractIdentity(msg *Message) string {
	identity := strings.TrimSpace(msg.Header("Message-Id"))
	if !storableIdentity(identity) {
		return ""
	}
	return identity
}

// PlaceholderIdentity derives a stable identity for messages without a Message-Id.
func PlaceholderIdentity(digest string) string {
	return "<" + digest + "@" + placeholderDomain + ">"
}

// ContentDigest is the hex SHA-512 of the raw message.
func ContentDigest(raw []byte) string {
	sum := sha512.Sum512(raw)
	return hex.EncodeToString(sum[:])
}
