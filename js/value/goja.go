package value

import (
	"reflect"
	"strconv"

	"github.com/dop251/goja"
)

// MaxArrayLength is the number of elements Array reads at most. Longer arrays
// are cut to it.
const MaxArrayLength = 1 << 20

//nolint:gochecknoglobals
var (
	bytesType       = reflect.TypeOf([]byte(nil))
	arrayBufferType = reflect.TypeOf(goja.ArrayBuffer{})
	byteSourceType  = reflect.TypeOf((*ByteSource)(nil)).Elem()
)

// New wraps a goja value that belongs to rt. Undefined and null yield nil.
func New(rt *goja.Runtime, v goja.Value) Value {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return &gojaFunc{rt: rt, v: v, fn: fn}
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		s := v.String()
		sc := newScalar(v.Export())
		if _, isStr := sc.v.(string); !isStr {
			sc.str = &s
		}
		return sc
	}

	switch obj.ClassName() {
	case "Array":
		return &gojaArray{rt: rt, obj: obj}
	case "Date", "String", "Number", "Boolean":
		return newScalar(obj.Export())
	}

	if b, ok := exportBytes(obj); ok {
		return &binary{b: b, raw: obj}
	}
	return &gojaObject{rt: rt, obj: obj}
}

func exportBytes(obj *goja.Object) ([]byte, bool) {
	t := obj.ExportType()
	if t == nil {
		return nil, false
	}
	if t != bytesType && t != arrayBufferType && t != reflect.PtrTo(arrayBufferType) && !t.Implements(byteSourceType) {
		return nil, false
	}
	switch x := obj.Export().(type) {
	case []byte:
		return x, true
	case goja.ArrayBuffer:
		return x.Bytes(), true
	case *goja.ArrayBuffer:
		return x.Bytes(), true
	case ByteSource:
		return x.Bytes(), true
	}
	return nil, false
}

// ToGoja converts an argument into a goja value of rt, unwrapping Values
// that already belong to a runtime.
func ToGoja(rt *goja.Runtime, v interface{}) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return x
	case Value:
		if gv, ok := x.Raw().(goja.Value); ok {
			return gv
		}
		return rt.ToValue(x.Native())
	default:
		return rt.ToValue(x)
	}
}

// guard runs f, which may run script getters and proxy traps, and reports
// whether it finished. Exceptions thrown by the script and interrupts of rt
// make it report false. The call goes through a native function so goja
// unwinds its own state for both.
func guard(rt *goja.Runtime, f func()) bool {
	call, _ := goja.AssertFunction(rt.ToValue(func(goja.FunctionCall) goja.Value {
		f()
		return goja.Undefined()
	}))
	_, err := call(goja.Undefined())
	return err == nil
}

// get reads the property name of obj. A property whose getter throws is
// undefined.
func get(rt *goja.Runtime, obj *goja.Object, name string) goja.Value {
	var v goja.Value
	if !guard(rt, func() { v = obj.Get(name) }) {
		return nil
	}
	return v
}

type gojaObject struct {
	base
	rt  *goja.Runtime
	obj *goja.Object
}

func (o *gojaObject) Kind() Kind       { return KindObject }
func (o *gojaObject) IsObject() bool   { return true }
func (o *gojaObject) Raw() interface{} { return o.obj }

// Keys returns the enumerable own keys of the object, or none if listing
// them throws.
func (o *gojaObject) Keys() []string {
	var keys []string
	if !guard(o.rt, func() { keys = o.obj.Keys() }) || keys == nil {
		return []string{}
	}
	return keys
}

func (o *gojaObject) HasMember(name string) bool {
	return o.Member(name) != nil
}

func (o *gojaObject) Member(name string) Value {
	return New(o.rt, get(o.rt, o.obj, name))
}

func (o *gojaObject) Native() interface{} {
	return nativeOf(o, map[*goja.Object]bool{})
}

type gojaArray struct {
	base
	rt  *goja.Runtime
	obj *goja.Object
}

func (a *gojaArray) Kind() Kind       { return KindArray }
func (a *gojaArray) IsArray() bool    { return true }
func (a *gojaArray) Raw() interface{} { return a.obj }

func (a *gojaArray) Array() []Value {
	var length int64
	if !guard(a.rt, func() { length = a.obj.Get("length").ToInteger() }) || length <= 0 {
		return []Value{}
	}
	if length > MaxArrayLength {
		length = MaxArrayLength
	}
	result := make([]Value, length)
	// Elements whose getter throws stay nil; reading resumes after them.
	for i := 0; i < len(result); i++ {
		guard(a.rt, func() {
			for ; i < len(result); i++ {
				result[i] = New(a.rt, a.obj.Get(strconv.Itoa(i)))
			}
		})
	}
	return result
}

func (a *gojaArray) Native() interface{} {
	return nativeOf(a, map[*goja.Object]bool{})
}

type gojaFunc struct {
	base
	rt *goja.Runtime
	v  goja.Value
	fn goja.Callable
}

func (f *gojaFunc) Kind() Kind          { return KindFunction }
func (f *gojaFunc) IsFunction() bool    { return true }
func (f *gojaFunc) Raw() interface{}    { return f.v }
func (f *gojaFunc) Native() interface{} { return nil }

func (f *gojaFunc) Call(args ...interface{}) (Value, error) {
	jsArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		jsArgs[i] = ToGoja(f.rt, arg)
	}
	result, err := f.fn(goja.Undefined(), jsArgs...)
	if err != nil {
		return nil, err
	}
	return New(f.rt, result), nil
}

// nativeOf converts goja objects and arrays while tracking the objects on the
// current path, so cyclic structures end in null instead of recursing forever.
func nativeOf(v Value, seen map[*goja.Object]bool) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case *gojaObject:
		if seen[x.obj] {
			return nil
		}
		seen[x.obj] = true
		defer delete(seen, x.obj)

		keys := x.Keys()
		result := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			m := x.Member(k)
			if m != nil && m.IsFunction() {
				continue
			}
			result[k] = nativeOf(m, seen)
		}
		return result
	case *gojaArray:
		if seen[x.obj] {
			return nil
		}
		seen[x.obj] = true
		defer delete(seen, x.obj)

		elems := x.Array()
		result := make([]interface{}, len(elems))
		for i, e := range elems {
			if e != nil && e.IsFunction() {
				continue
			}
			result[i] = nativeOf(e, seen)
		}
		return result
	default:
		return v.Native()
	}
}
