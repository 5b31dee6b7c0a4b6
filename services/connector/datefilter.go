package connector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	mberrors "github.com/customeros/mailbackup/internal/errors"
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// ResolveCutoff turns a search filter's Before value into a date. The bool is false
// when no date filter applies.
func ResolveCutoff(before any) (time.Time, bool, error) {
	switch v := before.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false, nil
		}
		return v, true, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false, nil
		}
		return *v, true, nil
	case string:
		t, err := ParseIMAPDate(v)
		if err != nil {
			return time.Time{}, false, err
		}
		return t, true, nil
	default:
		return time.Time{}, false, errors.Wrapf(mberrors.ErrInvalidFilter, "unsupported before value of type %T", before)
	}
}

// ParseIMAPDate reads a DD-Mon-YYYY date. Month names are matched against a fixed
// English table, ignoring case.
func ParseIMAPDate(value string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 3 {
		return time.Time{}, errors.Wrapf(mberrors.ErrInvalidFilter, "%q is not a DD-Mon-YYYY date", value)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) > 2 {
		return time.Time{}, errors.Wrapf(mberrors.ErrInvalidFilter, "%q has no valid day", value)
	}
	month := monthNumber(parts[1])
	if month == 0 {
		return time.Time{}, errors.Wrapf(mberrors.ErrInvalidFilter, "%q has no valid month", value)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil || len(parts[2]) != 4 {
		return time.Time{}, errors.Wrapf(mberrors.ErrInvalidFilter, "%q has no valid year", value)
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, errors.Wrapf(mberrors.ErrInvalidFilter, "%q is not a calendar date", value)
	}
	return t, nil
}

// FormatIMAPDate renders t as D-Mon-YYYY, the IMAP SEARCH date form.
func FormatIMAPDate(t time.Time) string {
	return fmt.Sprintf("%d-%s-%04d", t.Day(), monthNames[t.Month()-1], t.Year())
}

func monthNumber(name string) time.Month {
	for i, m := range monthNames {
		if strings.EqualFold(m, name) {
			return time.Month(i + 1)
		}
	}
	return 0
}
