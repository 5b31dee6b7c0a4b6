package decoder

import (
	"strings"

	"github.com/jhillyerd/enmime"
)

// ExtractBody returns the decoded text of the first text part, depth first.
func ExtractBody(msg *Message) (string, bool) {
	body, _, ok := ExtractBodyPart(msg)
	return body, ok
}

// ExtractBodyPart is ExtractBody plus the media type of the part found.
func ExtractBodyPart(msg *Message) (string, string, bool) {
	if !msg.HasBody() {
		return "", "", false
	}
	part := firstTextPart(msg.envelope.Root)
	if part == nil {
		return "", "", false
	}
	contentType := part.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	return string(part.Content), contentType, true
}

func firstTextPart(part *enmime.Part) *enmime.Part {
	if part.FirstChild == nil {
		if isMultipart(part) {
			return nil
		}
		if part.ContentType == "" || strings.HasPrefix(strings.ToLower(part.ContentType), "text/") {
			return part
		}
		return nil
	}
	for child := part.FirstChild; child != nil; child = child.NextSibling {
		if found := firstTextPart(child); found != nil {
			return found
		}
	}
	return nil
}

// CountAttachments counts the top-level parts of a multipart message, body included.
func CountAttachments(msg *Message) int {
	if !msg.HasBody() || !isMultipart(msg.envelope.Root) {
		return 0
	}
	count := 0
	for child := msg.envelope.Root.FirstChild; child != nil; child = child.NextSibling {
		count++
	}
	return count
}

func isMultipart(part *enmime.Part) bool {
	return strings.HasPrefix(strings.ToLower(part.ContentType), "multipart/")
}
