package value

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Func is the signature of native functions wrapped by Of.
type Func func(args ...interface{}) (interface{}, error)

// Of wraps a native Go value. Maps with string keys become objects (with
// sorted keys), slices become arrays, []byte and ByteSource become binary
// values, and structs are seen through their JSON encoding. Of(nil) is nil.
func Of(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return nil
	case Value:
		return x
	case string, bool, int64, float64, int, int32, float32, time.Time:
		return newScalar(x)
	case []byte:
		return &binary{b: x, raw: x}
	case ByteSource:
		return &binary{b: x.Bytes(), raw: x}
	case map[string]interface{}:
		return newNativeObject(x)
	case []interface{}:
		return &nativeArray{s: x}
	case Func:
		return &nativeFunc{fn: x}
	case func(args ...interface{}) (interface{}, error):
		return &nativeFunc{fn: x}
	case json.RawMessage:
		var decoded interface{}
		if err := json.Unmarshal(x, &decoded); err != nil {
			return nil
		}
		return Of(decoded)
	}
	return ofReflect(reflect.ValueOf(v))
}

func ofReflect(rv reflect.Value) Value {
	switch rv.Kind() { //nolint:exhaustive
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return ofReflect(rv.Elem())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return newScalar(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return newScalar(int64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return newScalar(rv.Float())
	case reflect.String:
		return newScalar(rv.String())
	case reflect.Bool:
		return newScalar(rv.Bool())
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		m := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		return newNativeObject(m)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		s := make([]interface{}, rv.Len())
		for i := range s {
			s[i] = rv.Index(i).Interface()
		}
		return &nativeArray{s: s}
	case reflect.Struct:
		data, err := json.Marshal(rv.Interface())
		if err != nil {
			return nil
		}
		return Of(json.RawMessage(data))
	default:
		return nil
	}
}

type nativeObject struct {
	base
	m    map[string]interface{}
	keys []string
}

func newNativeObject(m map[string]interface{}) *nativeObject {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &nativeObject{m: m, keys: keys}
}

func (o *nativeObject) Kind() Kind       { return KindObject }
func (o *nativeObject) IsObject() bool   { return true }
func (o *nativeObject) Raw() interface{} { return o.m }

func (o *nativeObject) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

func (o *nativeObject) HasMember(name string) bool {
	return o.Member(name) != nil
}

func (o *nativeObject) Member(name string) Value {
	v, ok := o.m[name]
	if !ok {
		return nil
	}
	return Of(v)
}

func (o *nativeObject) Native() interface{} {
	result := make(map[string]interface{}, len(o.keys))
	for _, k := range o.keys {
		m := Of(o.m[k])
		if m != nil && m.IsFunction() {
			continue
		}
		result[k] = Native(m)
	}
	return result
}

type nativeArray struct {
	base
	s []interface{}
}

func (a *nativeArray) Kind() Kind       { return KindArray }
func (a *nativeArray) IsArray() bool    { return true }
func (a *nativeArray) Raw() interface{} { return a.s }

func (a *nativeArray) Array() []Value {
	result := make([]Value, len(a.s))
	for i, v := range a.s {
		result[i] = Of(v)
	}
	return result
}

func (a *nativeArray) Native() interface{} {
	result := make([]interface{}, len(a.s))
	for i, v := range a.s {
		e := Of(v)
		if e != nil && e.IsFunction() {
			continue
		}
		result[i] = Native(e)
	}
	return result
}

type nativeFunc struct {
	base
	fn Func
}

func (f *nativeFunc) Kind() Kind          { return KindFunction }
func (f *nativeFunc) IsFunction() bool    { return true }
func (f *nativeFunc) Raw() interface{}    { return f.fn }
func (f *nativeFunc) Native() interface{} { return nil }

func (f *nativeFunc) Call(args ...interface{}) (Value, error) {
	result, err := f.fn(args...)
	if err != nil {
		return nil, err
	}
	return Of(result), nil
}
