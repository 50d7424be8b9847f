// Package types contains the option types shared by the purple configuration
// layers. Nullable ones follow gopkg.in/guregu/null.v3, so a config layer can
// tell "unset" apart from a zero value.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that is written as a human readable string and
// read from strings like "1d2h" or from a number of milliseconds.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// ParseExtendedDuration parses a Go duration that may start with a number of
// days. A bare number is a number of milliseconds.
func ParseExtendedDuration(s string) (time.Duration, error) {
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(ms * float64(time.Millisecond)), nil
	}

	daysPart, rest, ok := strings.Cut(s, "d")
	if !ok {
		return time.ParseDuration(s)
	}
	days, err := strconv.ParseInt(daysPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number of days in %q", s)
	}
	var extra time.Duration
	if rest != "" {
		if extra, err = time.ParseDuration(rest); err != nil {
			return 0, err
		}
		if extra < 0 {
			return 0, fmt.Errorf("invalid time format '%s'", rest)
		}
	}
	if strings.HasPrefix(daysPart, "-") {
		extra = -extra
	}
	return time.Duration(days)*24*time.Hour + extra, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(data []byte) error {
	v, err := ParseExtendedDuration(string(data))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalJSON accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("'%s' is not a valid duration value", data)
	}
	*d = Duration(ms * float64(time.Millisecond))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// NullDuration is a Duration that may be unset.
type NullDuration struct {
	Duration
	Valid bool
}

// UnmarshalText sets d from data. Empty text unsets it.
func (d *NullDuration) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = NullDuration{}
		return nil
	}
	if err := d.Duration.UnmarshalText(data); err != nil {
		return err
	}
	d.Valid = true
	return nil
}

// UnmarshalJSON sets d from data. JSON null unsets it.
func (d *NullDuration) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = NullDuration{}
		return nil
	}
	if err := d.Duration.UnmarshalJSON(data); err != nil {
		return err
	}
	d.Valid = true
	return nil
}

// MarshalJSON writes null for unset durations.
func (d NullDuration) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return d.Duration.MarshalJSON()
}

// TimeDuration returns the duration, which is zero when d is unset.
func (d NullDuration) TimeDuration() time.Duration {
	if !d.Valid {
		return 0
	}
	return time.Duration(d.Duration)
}
