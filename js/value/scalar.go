package value

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var errNotAFunction = errors.New("value is not a function")

// isoFormat is the format JSON.stringify uses for dates.
const isoFormat = "2006-01-02T15:04:05.000Z"

// base carries the behaviour shared by every kind; each variant overrides
// what applies to it.
type base struct{}

func (base) IsScalar() bool                     { return false }
func (base) IsArray() bool                      { return false }
func (base) IsObject() bool                     { return false }
func (base) IsFunction() bool                   { return false }
func (base) IsBinary() bool                     { return false }
func (base) Keys() []string                     { return nil }
func (base) HasMember(string) bool              { return false }
func (base) Member(string) Value                { return nil }
func (base) Array() []Value                     { return nil }
func (base) ToString() (string, bool)           { return "", false }
func (base) ToInt() (int, bool)                 { return 0, false }
func (base) ToInt64() (int64, bool)             { return 0, false }
func (base) ToFloat() (float64, bool)           { return 0, false }
func (base) ToBool() (bool, bool)               { return false, false }
func (base) ToBytes() ([]byte, bool)            { return nil, false }
func (base) Call(...interface{}) (Value, error) { return nil, errNotAFunction }

// scalar is a string, number, boolean or date.
type scalar struct {
	base
	v   interface{}
	str *string
}

func newScalar(v interface{}) *scalar {
	switch n := v.(type) {
	case int:
		v = int64(n)
	case int32:
		v = int64(n)
	case float32:
		v = float64(n)
	}
	return &scalar{v: v}
}

func (s *scalar) Kind() Kind     { return KindScalar }
func (s *scalar) IsScalar() bool { return true }
func (s *scalar) Raw() interface{} {
	return s.v
}

func (s *scalar) Native() interface{} {
	switch v := s.v.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case time.Time:
		return v.UTC().Format(isoFormat)
	default:
		return v
	}
}

func (s *scalar) ToString() (string, bool) {
	if s.str != nil {
		return *s.str, true
	}
	switch v := s.v.(type) {
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return formatNumber(v), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		return v.UTC().Format(isoFormat), true
	default:
		return "", false
	}
}

func (s *scalar) ToInt64() (int64, bool) {
	switch v := s.v.(type) {
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func (s *scalar) ToInt() (int, bool) {
	n, ok := s.ToInt64()
	if !ok || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, false
	}
	return int(n), true
}

func (s *scalar) ToFloat() (float64, bool) {
	switch v := s.v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (s *scalar) ToBool() (bool, bool) {
	switch v := s.v.(type) {
	case bool:
		return v, true
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true"), true
	default:
		return false, false
	}
}

// formatNumber renders a float the way JavaScript prints numbers for the
// common ranges.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Replace(strconv.FormatFloat(f, 'g', -1, 64), "e-0", "e-", 1)
}

// binary is a byte sequence handle.
type binary struct {
	base
	b   []byte
	raw interface{}
}

func (b *binary) Kind() Kind              { return KindBinary }
func (b *binary) IsBinary() bool          { return true }
func (b *binary) ToBytes() ([]byte, bool) { return b.b, true }
func (b *binary) Native() interface{}     { return b.b }
func (b *binary) Raw() interface{}        { return b.raw }
