package value

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalValue(t *testing.T, rt *goja.Runtime, src string) Value {
	t.Helper()
	v, err := rt.RunString(src)
	require.NoError(t, err)
	return New(rt, v)
}

func TestNewAbsent(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	assert.Nil(t, New(rt, nil))
	assert.Nil(t, evalValue(t, rt, "undefined"))
	assert.Nil(t, evalValue(t, rt, "null"))
}

func TestNewScalars(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	v := evalValue(t, rt, "404")
	require.NotNil(t, v)
	assert.True(t, v.IsScalar())
	n, ok := v.ToInt()
	assert.True(t, ok)
	assert.Equal(t, 404, n)
	s, _ := v.ToString()
	assert.Equal(t, "404", s)

	v = evalValue(t, rt, "0.5")
	s, _ = v.ToString()
	assert.Equal(t, "0.5", s)
	f, _ := v.ToFloat()
	assert.Equal(t, 0.5, f)

	v = evalValue(t, rt, "'hello'")
	s, ok = v.ToString()
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	v = evalValue(t, rt, "true")
	b, ok := v.ToBool()
	assert.True(t, ok)
	assert.True(t, b)

	v = evalValue(t, rt, "new Date(Date.UTC(2020, 0, 2))")
	require.NotNil(t, v)
	assert.True(t, v.IsScalar())
	assert.Equal(t, "2020-01-02T00:00:00.000Z", v.Native())
}

func TestNewObject(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	v := evalValue(t, rt, `({status: 404, body: "not found", empty: null, fn: function() {}, nested: {a: [1, 2]}})`)
	require.NotNil(t, v)
	assert.Equal(t, KindObject, v.Kind())
	assert.Equal(t, []string{"status", "body", "empty", "fn", "nested"}, v.Keys())
	assert.True(t, v.HasMember("status"))
	assert.False(t, v.HasMember("empty"))
	assert.False(t, v.HasMember("missing"))
	assert.True(t, v.Member("fn").IsFunction())

	status, ok := MemberInt(v, "status")
	assert.True(t, ok)
	assert.Equal(t, 404, status)

	assert.Equal(t, map[string]interface{}{
		"status": int64(404),
		"body":   "not found",
		"empty":  nil,
		"nested": map[string]interface{}{"a": []interface{}{int64(1), int64(2)}},
	}, v.Native())
}

func TestNewArray(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	v := evalValue(t, rt, `[1, "two", null, function() {}]`)
	require.NotNil(t, v)
	assert.True(t, v.IsArray())
	elems := v.Array()
	require.Len(t, elems, 4)
	assert.Nil(t, elems[2])
	assert.True(t, elems[3].IsFunction())
	assert.Equal(t, []interface{}{int64(1), "two", nil, nil}, v.Native())
}

func TestNewCyclic(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	v := evalValue(t, rt, `var o = {name: "loop"}; o.self = o; o`)
	require.NotNil(t, v)
	assert.Equal(t, map[string]interface{}{"name": "loop", "self": nil}, v.Native())
	assert.Equal(t, `{"name":"loop","self":null}`, string(JSON(v)))
}

func TestNewBinary(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	require.NoError(t, rt.Set("data", rt.NewArrayBuffer([]byte("abc"))))
	v := evalValue(t, rt, "data")
	require.NotNil(t, v)
	assert.True(t, v.IsBinary())
	b, ok := v.ToBytes()
	assert.True(t, ok)
	assert.Equal(t, []byte("abc"), b)

	require.NoError(t, rt.Set("res", &resource{data: []byte("xyz")}))
	v = evalValue(t, rt, "res")
	require.NotNil(t, v)
	assert.True(t, v.IsBinary())
}

func TestNewFunctionCall(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	fn := evalValue(t, rt, `(function(a, b) { return {sum: a + b.n}; })`)
	require.NotNil(t, fn)
	assert.True(t, fn.IsFunction())

	res, err := fn.Call(1, Of(map[string]interface{}{"n": 2}))
	require.NoError(t, err)
	n, ok := MemberInt(res, "sum")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	thrower := evalValue(t, rt, `(function() { throw new Error("boom"); })`)
	_, err = thrower.Call()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestToGoja(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	obj := evalValue(t, rt, `({a: 1})`)
	assert.Same(t, obj.Raw(), ToGoja(rt, obj))
	assert.True(t, goja.IsNull(ToGoja(rt, nil)))
	assert.Equal(t, int64(7), ToGoja(rt, Of(7)).Export())
}

type resource struct {
	data []byte
}

func (r *resource) Bytes() []byte { return r.data }

func TestNewThrowingReads(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	v := evalValue(t, rt, `({a: 1, get b() { throw new Error("boom"); }})`)
	assert.Equal(t, []string{"a", "b"}, v.Keys())
	assert.Nil(t, v.Member("b"))
	assert.False(t, v.HasMember("b"))
	assert.Equal(t, map[string]interface{}{"a": int64(1), "b": nil}, v.Native())

	v = evalValue(t, rt, `new Proxy({}, {ownKeys: function() { throw new Error("boom"); }})`)
	require.NotPanics(t, func() { assert.Empty(t, v.Keys()) })
	assert.Equal(t, map[string]interface{}{}, v.Native())

	v = evalValue(t, rt, `new Proxy({}, {get: function() { throw new Error("boom"); }})`)
	require.NotPanics(t, func() { assert.Nil(t, v.Member("x")) })

	v = evalValue(t, rt, `(function() {
		var a = [1, 2, 3];
		Object.defineProperty(a, 1, {get: function() { throw new Error("boom"); }});
		return a;
	})()`)
	elems := v.Array()
	require.Len(t, elems, 3)
	assert.NotNil(t, elems[0])
	assert.Nil(t, elems[1])
	assert.NotNil(t, elems[2])

	_, err := rt.RunString(`"still usable"`)
	require.NoError(t, err)
}

func TestNewLongArray(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	v := evalValue(t, rt, `var a = [1]; a.length = 4e9; a`)
	require.True(t, v.IsArray())
	elems := v.Array()
	assert.Len(t, elems, MaxArrayLength)
	assert.NotNil(t, elems[0])
	assert.Nil(t, elems[1])
}

func TestNewObjectKeysFollowMutation(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	v := evalValue(t, rt, `var o = {a: 1}; o`)
	assert.Equal(t, []string{"a"}, v.Keys())

	_, err := rt.RunString(`o.b = 2; delete o.a;`)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, v.Keys())
	assert.Equal(t, map[string]interface{}{"b": int64(2)}, v.Native())
}
