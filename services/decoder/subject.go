package decoder

import (
	"io"
	"mime"
	"regexp"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"

	mberrors "github.com/customeros/mailbackup/internal/errors"
)

var encodedWordRegex = regexp.MustCompile(`=\?[^?\s]+\?[bBqQ]\?[^?\s]*\?=`)

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	return charset.NewReaderLabel(label, input)
}

// ExtractSubject returns the decoded subject. Decoding is best effort: any failure
// gives back the raw header value.
func ExtractSubject(msg *Message, def string) string {
	raw := msg.Header("Subject")
	if raw == "" {
		return def
	}
	subject, err := DecodeSubject(raw)
	if err != nil {
		return raw
	}
	return subject
}

// DecodeSubject decodes encoded words in raw. Unknown charsets and results that are
// not valid UTF-8 fail with ErrDecode.
func DecodeSubject(raw string) (string, error) {
	if !encodedWordRegex.MatchString(raw) {
		return raw, nil
	}
	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		return raw, errors.Wrapf(mberrors.ErrDecode, "subject %q: %v", raw, err)
	}
	if !utf8.ValidString(decoded) {
		return raw, errors.Wrapf(mberrors.ErrDecode, "subject %q is not valid text", raw)
	}
	return decoded, nil
}
