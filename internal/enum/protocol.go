package enum

import "strings"

type Protocol string

const (
	ProtocolPOP3  Protocol = "pop3"
	ProtocolIMAP4 Protocol = "imap4"
)

func (p Protocol) String() string {
	return string(p)
}

func (p Protocol) IsValid() bool {
	switch p {
	case ProtocolPOP3, ProtocolIMAP4:
		return true
	}
	return false
}

func ParseProtocol(s string) Protocol {
	return Protocol(strings.ToLower(strings.TrimSpace(s)))
}
