package response

import (
	"github.com/purplejs/purplejs/js/value"
)

// The media types bodies are inferred as.
const (
	TypeText   = "text/plain; charset=utf-8"
	TypeJSON   = "application/json; charset=utf-8"
	TypeBinary = "application/octet-stream"
)

// BodySerializer infers the content type of body values and encodes them.
type BodySerializer interface {
	// FindType returns the media type of v, or "" if v is absent.
	FindType(v value.Value) string
	// ToBody encodes v. It returns nil if v is absent.
	ToBody(v value.Value) []byte
}

// DefaultSerializer sends strings as text, binary values as they are and
// everything else as JSON.
type DefaultSerializer struct{}

var _ BodySerializer = DefaultSerializer{}

// FindType is part of the BodySerializer interface.
func (DefaultSerializer) FindType(v value.Value) string {
	switch value.KindOf(v) {
	case value.KindNull:
		return ""
	case value.KindBinary:
		return TypeBinary
	case value.KindScalar:
		if _, ok := v.ToString(); ok {
			return TypeText
		}
		return TypeJSON
	default:
		return TypeJSON
	}
}

// ToBody is part of the BodySerializer interface.
func (DefaultSerializer) ToBody(v value.Value) []byte {
	switch value.KindOf(v) {
	case value.KindNull:
		return nil
	case value.KindBinary:
		b, _ := v.ToBytes()
		return b
	case value.KindScalar:
		if s, ok := v.ToString(); ok {
			return []byte(s)
		}
		return value.JSON(v)
	default:
		return value.JSON(v)
	}
}
