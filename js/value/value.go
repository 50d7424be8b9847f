// Package value implements a read-only view over values produced by guest
// scripts. A Value is a tagged variant (scalar, array, object, function or
// binary) with string-keyed member lookup and try-coercions that report
// "absent" instead of failing. A nil Value is absent: undefined and null
// script values never produce a non-nil Value.
package value

// Kind is the variant tag of a Value.
type Kind uint8

// The possible value kinds.
const (
	KindNull Kind = iota
	KindScalar
	KindArray
	KindObject
	KindFunction
	KindBinary
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Value is a handle on a script-produced value. Implementations are read-only
// and are only safe for concurrent use if the value they wrap is.
type Value interface {
	Kind() Kind

	IsScalar() bool
	IsArray() bool
	IsObject() bool
	IsFunction() bool
	IsBinary() bool

	// Keys returns the member names of an object in a stable order. It is
	// empty for every other kind.
	Keys() []string
	// HasMember reports whether Member(name) would return a non-nil value.
	HasMember(name string) bool
	// Member returns the named member of an object, or nil if it is absent,
	// undefined or null.
	Member(name string) Value
	// Array returns the elements of an array. Null and undefined elements are
	// nil.
	Array() []Value

	ToString() (string, bool)
	ToInt() (int, bool)
	ToInt64() (int64, bool)
	ToFloat() (float64, bool)
	ToBool() (bool, bool)
	ToBytes() ([]byte, bool)

	// Native converts the value into a tree of native Go values:
	// map[string]interface{}, []interface{}, string, int64, float64, bool,
	// []byte and nil. Functions and cyclic references are dropped the way
	// JSON.stringify drops them.
	Native() interface{}

	// Call invokes a function value. It returns an error for every other kind.
	Call(args ...interface{}) (Value, error)

	// Raw returns the wrapped handle.
	Raw() interface{}
}

// ByteSource is implemented by host values that carry binary content, such as
// opened resources. Script values backed by a ByteSource are binary.
type ByteSource interface {
	Bytes() []byte
}

// KindOf returns the kind of v, treating nil as KindNull.
func KindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

// IsNull reports whether v is absent.
func IsNull(v Value) bool {
	return v == nil
}

// Native returns v.Native(), or nil for an absent value.
func Native(v Value) interface{} {
	if v == nil {
		return nil
	}
	return v.Native()
}

// MemberString returns the string coercion of the named member of v.
func MemberString(v Value, name string) (string, bool) {
	if v == nil {
		return "", false
	}
	m := v.Member(name)
	if m == nil {
		return "", false
	}
	return m.ToString()
}

// MemberInt returns the integer coercion of the named member of v.
func MemberInt(v Value, name string) (int, bool) {
	if v == nil {
		return 0, false
	}
	m := v.Member(name)
	if m == nil {
		return 0, false
	}
	return m.ToInt()
}

// MemberBool returns the boolean coercion of the named member of v.
func MemberBool(v Value, name string) (bool, bool) {
	if v == nil {
		return false, false
	}
	m := v.Member(name)
	if m == nil {
		return false, false
	}
	return m.ToBool()
}
