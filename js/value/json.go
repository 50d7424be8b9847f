package value

import (
	"bytes"
	"encoding/json"
)

// JSON returns the canonical JSON encoding of the native form of v: object
// keys sorted, no HTML escaping and no trailing newline. Absent values and
// anything that can't be encoded become null.
func JSON(v Value) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Native(v)); err != nil {
		return []byte("null")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
