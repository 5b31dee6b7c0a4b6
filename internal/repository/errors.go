package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"

	mberrors "github.com/customeros/mailbackup/internal/errors"
)

var (
	ErrInvalidInput = errors.New("invalid input parameters")
)

// postgres class 22: data exception (bad encoding, value too long, ...)
const pgDataExceptionClass = "22"

// classifyDataError wraps postgres data exceptions in ErrDecode.
func classifyDataError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, pgDataExceptionClass) {
		return pkgerrors.Wrapf(mberrors.ErrDecode, "sqlstate %s: %s", pgErr.Code, pgErr.Message)
	}
	return err
}
