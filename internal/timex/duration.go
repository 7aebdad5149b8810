// Package timex parses the compact duration strings used for token lifetimes
// ("15m", "7d") and provides a Duration type that decodes them from JSON and
// environment variables.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidFormat is returned for anything that is not <digits><unit> with
// unit one of s, m, h, d.
var ErrInvalidFormat = errors.New("invalid duration format")

// ParseDuration parses "<integer><unit>" where unit is s, m, h or d.
// Unlike time.ParseDuration it accepts days and rejects signs, fractions,
// compound values ("1h30m") and a missing unit.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	digits, unit := s[:len(s)-1], s[len(s)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
	}

	var base time.Duration
	switch unit {
	case 's':
		base = time.Second
	case 'm':
		base = time.Minute
	case 'h':
		base = time.Hour
	case 'd':
		base = 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if n > int64(1<<63-1)/int64(base) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidFormat, s)
	}

	return time.Duration(n) * base, nil
}

// Duration wraps time.Duration for config DTOs. It decodes from a compact
// duration string or, in JSON, from an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		d.Duration = time.Duration(v)
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFormat, string(b))
	}
}
