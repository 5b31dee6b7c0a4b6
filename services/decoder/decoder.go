package decoder

import (
	"strings"
	"time"

	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/utils"
)

// DecodedMessage is the structured form of one raw message
type DecodedMessage struct {
	Identity    string
	Sender      string
	Subject     string
	Body        string
	BodyType    string
	SearchText  string
	Attachments int
	Date        time.Time
	Digest      string
	Raw         []byte
}

type Decoder struct {
	log logger.Logger
	now func() time.Time
}

func NewDecoder(log logger.Logger) *Decoder {
	return &Decoder{log: log, now: utils.Now}
}

// Decode parses raw and extracts every field. Only an unreadable message fails;
// subject and HTML flattening problems are logged and degrade to raw values.
// Text fields are cleaned to valid UTF-8 and cut to their column widths.
func (d *Decoder) Decode(raw []byte) (*DecodedMessage, error) {
	msg, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	digest := ContentDigest(raw)
	decoded := &DecodedMessage{
		Identity:    ExtractIdentity(msg),
		Sender:      TruncateRunes(CleanText(ExtractSender(msg, "")), MaxSenderLength),
		Date:        ExtractDate(msg, d.now()),
		Attachments: CountAttachments(msg),
		Digest:      digest,
		Raw:         raw,
	}
	if decoded.Identity == "" {
		decoded.Identity = PlaceholderIdentity(digest)
	}

	rawSubject := msg.Header("Subject")
	subject, err := DecodeSubject(rawSubject)
	if err != nil {
		d.log.Warnf("Cannot decode subject %q of %s: %v", rawSubject, decoded.Identity, err)
	}
	decoded.Subject = TruncateRunes(CleanText(subject), MaxSubjectLength)

	if body, contentType, ok := ExtractBodyPart(msg); ok {
		body = CleanText(body)
		decoded.Body = body
		decoded.BodyType = contentType
		decoded.SearchText = body
		if strings.EqualFold(contentType, "text/html") {
			text, err := HTMLToPlainText(body)
			if err != nil {
				d.log.Warnf("Cannot flatten html body of %s: %v", decoded.Identity, err)
			} else {
				decoded.SearchText = CleanText(text)
			}
		}
	}

	return decoded, nil
}
