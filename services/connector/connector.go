package connector

import (
	"regexp"

	"github.com/pkg/errors"

	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/enum"
	mberrors "github.com/customeros/mailbackup/internal/errors"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/models"
)

var directoryPattern = regexp.MustCompile(`^"([\p{L}\p{N}_/\[\] .-]+)"$`)

// New returns the connector for the account's protocol. The session is not opened.
func New(account *models.EmailAccount, log logger.Logger) (interfaces.MailConnector, error) {
	if account == nil {
		return nil, errors.Wrap(mberrors.ErrInvalidAccount, "account is nil")
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	switch account.Protocol {
	case enum.ProtocolIMAP4:
		return NewIMAPConnector(account, log), nil
	case enum.ProtocolPOP3:
		return NewPOP3Connector(account, log), nil
	default:
		return nil, errors.Wrapf(mberrors.ErrInvalidAccount, "unknown protocol %q", account.Protocol)
	}
}

// ParseDirectoryListing keeps the listing tokens that are quoted folder names and
// returns them unquoted. Anything else is skipped.
func ParseDirectoryListing(tokens []string) []string {
	names := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if name, ok := parseDirectoryName(token); ok {
			names = append(names, name)
		}
	}
	return names
}

func parseDirectoryName(token string) (string, bool) {
	match := directoryPattern.FindStringSubmatch(token)
	if match == nil {
		return "", false
	}
	return match[1], true
}

func quoteDirectoryName(name string) string {
	return `"` + name + `"`
}
