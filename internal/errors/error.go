package errors

import "github.com/pkg/errors"

var (
	// connector errors
	ErrConnection    = errors.New("mail server connection failed")
	ErrAuth          = errors.New("mail server rejected credentials")
	ErrInvalidFilter = errors.New("invalid message search filter")
	// ErrLocaleUnavailable is never returned: IMAP dates are rendered from a fixed month
	// table, so no process locale is ever consulted.
	ErrLocaleUnavailable = errors.New("time locale unavailable")

	// decoder errors
	ErrDecode = errors.New("message could not be decoded")

	// account errors
	ErrAccountNotFound = errors.New("email account not found")
	ErrInvalidAccount  = errors.New("email account configuration is invalid")
)
