package decoder

import (
	"mime"
	"net/mail"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
)

var addressParser = mail.AddressParser{WordDecoder: &mime.WordDecoder{CharsetReader: charsetReader}}

// ExtractSender returns the address part of From, dropping any display name.
func ExtractSender(msg *Message, def string) string {
	value := strings.TrimSpace(msg.Header("From"))
	if value == "" {
		return def
	}
	address := parseAddress(value)
	if address == "" {
		return def
	}
	validation := mailvalidate.ValidateEmailSyntax(address)
	if validation.IsValid && validation.CleanEmail != "" {
		return validation.CleanEmail
	}
	return address
}

func parseAddress(value string) string {
	if addr, err := addressParser.Parse(value); err == nil {
		return addr.Address
	}
	if list, err := addressParser.ParseList(value); err == nil && len(list) > 0 {
		return list[0].Address
	}
	if start := strings.LastIndex(value, "<"); start >= 0 {
		if end := strings.Index(value[start:], ">"); end > 0 {
			return strings.TrimSpace(value[start+1 : start+end])
		}
	}
	if strings.Contains(value, "@") && !strings.ContainsAny(value, " \t") {
		return value
	}
	return ""
}
