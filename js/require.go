package js

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/dop251/goja"

	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/errext/exitcodes"
	"github.com/purplejs/purplejs/loader"
)

// NativePrefix is the prefix of the names of built-in native modules.
const NativePrefix = "purple/"

const (
	wrapperHead = "(function(exports, module, require, resolve, __, __FILE__, __DIR__){\n"
	wrapperTail = "\n})"
)

type module struct {
	url    *url.URL
	object *goja.Object
	ctx    *moduleContext
}

func (m *module) exports() goja.Value {
	return m.object.Get("exports")
}

func (e *Engine) isNative(specifier string) bool {
	if _, ok := e.natives[specifier]; ok {
		return true
	}
	return strings.HasPrefix(specifier, NativePrefix)
}

func (e *Engine) resolve(base *url.URL, specifier string) (*url.URL, error) {
	if specifier == "" {
		return nil, errors.New("require() can't be used with an empty specifier")
	}
	if e.isNative(specifier) {
		return &url.URL{Opaque: specifier}, nil
	}
	return loader.Resolve(base, specifier)
}

// candidates returns the URLs a module could be loaded from, in the order
// they are tried.
func candidates(u *url.URL) []*url.URL {
	switch path.Ext(u.Path) {
	case ".js", ".json":
		return []*url.URL{u}
	}
	withSuffix := func(suffix string) *url.URL {
		c := *u
		c.Path = strings.TrimSuffix(c.Path, "/") + suffix
		return &c
	}
	return []*url.URL{withSuffix(".js"), withSuffix(".json"), withSuffix("/index.js"), u}
}

// find returns the first candidate that exists. Modules that can't be found
// locally, like remote ones, are loaded from the resolved URL as is.
func (e *Engine) find(u *url.URL) *url.URL {
	if u.Scheme != "file" {
		return u
	}
	for _, c := range candidates(u) {
		if loader.Exists(e.env.Filesystems, c) {
			return c
		}
	}
	return u
}

func (e *Engine) mock(keys ...string) (goja.Value, bool) {
	for _, k := range keys {
		if v, ok := e.mocks[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// require loads the module specifier relative to base and returns the URL it
// was loaded from together with its exports.
func (e *Engine) require(base *url.URL, specifier string) (*url.URL, goja.Value, error) {
	if v, ok := e.mock(specifier); ok {
		return &url.URL{Opaque: specifier}, v, nil
	}
	if e.isNative(specifier) {
		v, err := e.requireNative(specifier)
		return &url.URL{Opaque: specifier}, v, err
	}

	resolved, err := e.resolve(base, specifier)
	if err != nil {
		return nil, nil, err
	}
	keys := []string{resolved.String()}
	for _, c := range candidates(resolved) {
		keys = append(keys, c.String())
	}
	if v, ok := e.mock(keys...); ok {
		return resolved, v, nil
	}

	u := e.find(resolved)
	key := u.String()
	if m, ok := e.loading[key]; ok {
		return u, m.exports(), nil
	}
	if !e.env.IsDev() {
		if m, ok := e.cache[key]; ok {
			return u, m.exports(), nil
		}
	}

	m, err := e.load(u, specifier)
	if err != nil {
		return nil, nil, err
	}
	return u, m.exports(), nil
}

func (e *Engine) requireNative(name string) (goja.Value, error) {
	if v, ok := e.exports[name]; ok {
		return v, nil
	}
	fn, ok := e.natives[name]
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", name)
	}
	ctx := e.newModuleContext(&url.URL{Opaque: name})
	exports, err := fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize module %s: %w", name, err)
	}
	v := e.rt.ToValue(exports)
	e.exports[name] = v
	return v, nil
}

func (e *Engine) load(u *url.URL, specifier string) (*module, error) {
	data, err := loader.Load(e.logger, e.env.Filesystems, u, specifier)
	if err != nil {
		return nil, err
	}

	key := u.String()
	m := &module{url: u, object: e.rt.NewObject(), ctx: e.newModuleContext(u)}
	_ = m.object.Set("id", key)

	if path.Ext(u.Path) == ".json" {
		parsed, err := e.parseJSON(string(data.Data))
		if err != nil {
			return nil, fmt.Errorf("couldn't parse %s: %w", key, err)
		}
		_ = m.object.Set("exports", parsed)
		e.cache[key] = m
		return m, nil
	}

	exports := e.rt.NewObject()
	_ = m.object.Set("exports", exports)

	pgm, err := goja.Compile(key, wrapperHead+string(data.Data)+wrapperTail, false)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.ScriptException)
	}

	fn, err := e.rt.RunProgram(pgm)
	if err != nil {
		return nil, wrapError(err)
	}
	call, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, fmt.Errorf("couldn't compile %s", key)
	}

	// circular requires see the partial exports
	e.loading[key] = m
	defer delete(e.loading, key)

	dir := loader.Dir(u)
	_, err = call(exports,
		exports,
		m.object,
		e.rt.ToValue(m.ctx.requireFunc),
		e.rt.ToValue(m.ctx.resolveFunc),
		e.rt.ToValue(m.ctx.helper()),
		e.rt.ToValue(key),
		e.rt.ToValue(dir.String()),
	)
	if err != nil {
		return nil, wrapError(err)
	}
	e.cache[key] = m
	return m, nil
}

func (e *Engine) parseJSON(src string) (goja.Value, error) {
	parse, ok := goja.AssertFunction(e.rt.Get("JSON").ToObject(e.rt).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse isn't available")
	}
	v, err := parse(goja.Undefined(), e.rt.ToValue(src))
	if err != nil {
		return nil, wrapError(err)
	}
	return v, nil
}
