// Package common contains helpers shared by the engine and the native modules
// that are exposed to scripts.
package common

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Throw raises err in rt. Exceptions thrown by scripts are raised unchanged
// so their stack survives.
func Throw(rt *goja.Runtime, err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex)
	}
	panic(rt.NewGoError(err))
}

// ToBytes returns the content of a string, a byte slice or an ArrayBuffer.
func ToBytes(data interface{}) ([]byte, error) {
	switch v := data.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case goja.ArrayBuffer:
		return v.Bytes(), nil
	case *goja.ArrayBuffer:
		return v.Bytes(), nil
	}
	return nil, fmt.Errorf("invalid type %T, expected string, []byte or ArrayBuffer", data)
}

// UnwrapGojaInterruptedError returns the value rt.Interrupt was called with,
// if it is an error, and err otherwise.
func UnwrapGojaInterruptedError(err error) error {
	var ierr *goja.InterruptedError
	if !errors.As(err, &ierr) {
		return err
	}
	if cause, ok := ierr.Value().(error); ok {
		return cause
	}
	return err
}
