package decoder

import (
	"bytes"
	"net/mail"
	"net/textproto"

	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	mberrors "github.com/customeros/mailbackup/internal/errors"
)

// Message is a parsed RFC 822 message. Header-only messages carry no MIME tree, so
// ExtractBody and CountAttachments report nothing for them.
type Message struct {
	raw      []byte
	header   textproto.MIMEHeader
	envelope *enmime.Envelope
}

// Parse reads a full raw message into its MIME tree.
func Parse(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.Wrap(mberrors.ErrDecode, "empty message")
	}
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(mberrors.ErrDecode, "read envelope: %v", err)
	}
	if envelope.Root == nil {
		return nil, errors.Wrap(mberrors.ErrDecode, "message has no root part")
	}
	return &Message{raw: raw, header: envelope.Root.Header, envelope: envelope}, nil
}

// ParseHeader reads only the header block of raw, which may be a header-only fetch.
func ParseHeader(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.Wrap(mberrors.ErrDecode, "empty header")
	}
	data := raw
	if !bytes.HasSuffix(data, []byte("\n\n")) && !bytes.HasSuffix(data, []byte("\r\n\r\n")) {
		data = append(append([]byte{}, raw...), '\r', '\n', '\r', '\n')
	}
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(mberrors.ErrDecode, "read header: %v", err)
	}
	return &Message{raw: raw, header: textproto.MIMEHeader(msg.Header)}, nil
}

// Header returns the first raw value of key, undecoded.
func (m *Message) Header(key string) string {
	if m == nil || m.header == nil {
		return ""
	}
	return m.header.Get(key)
}

func (m *Message) Raw() []byte {
	return m.raw
}

// HasBody reports whether the MIME tree was parsed.
func (m *Message) HasBody() bool {
	return m != nil && m.envelope != nil && m.envelope.Root != nil
}
