package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/usagelens/pkg/validation"
)

var (
	ErrMissingValue     = errors.New("missing value")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidBool      = errors.New("invalid boolean")
	ErrInvalidCount     = errors.New("invalid count")
	ErrNegativeCount    = errors.New("negative count")
)

var wholeDecimal = regexp.MustCompile(`^[0-9]+\.0+$`)

// Accepted ISO-8601 shapes, tried in order. Layouts without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func ParseTimestamp(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, ErrMissingValue
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w %q", ErrInvalidTimestamp, value)
}

// ParseEmail returns the address with surrounding space removed; casing is kept.
func ParseEmail(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrMissingValue
	}
	if !validation.IsValidEmail(value) {
		return "", fmt.Errorf("%w %q", ErrInvalidEmail, value)
	}
	return value, nil
}

func ParseBool(raw string) (bool, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		return false, ErrMissingValue
	case "true", "t", "1", "yes", "y":
		return true, nil
	case "false", "f", "0", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("%w %q", ErrInvalidBool, strings.TrimSpace(raw))
	}
}

// ParseCount accepts a non-negative base-10 integer. A whole number with a
// zero fraction such as "12.0" is accepted because spreadsheet exports
// produce it; any other decimal form is rejected.
func ParseCount(raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, ErrMissingValue
	}
	digits := value
	if wholeDecimal.MatchString(value) {
		digits = value[:strings.IndexByte(value, '.')]
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidCount, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w %d", ErrNegativeCount, n)
	}
	return n, nil
}

// ParseOptionalCount treats a blank cell as absent rather than zero.
func ParseOptionalCount(raw string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	n, err := ParseCount(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
