package js

import (
	"net/url"

	"github.com/dop251/goja"

	"github.com/purplejs/purplejs/js/common"
	"github.com/purplejs/purplejs/js/value"
	"github.com/purplejs/purplejs/loader"
)

// ExecutionContext is what a loaded module sees of the engine. Every module
// gets its own context, bound to the URL it was loaded from.
type ExecutionContext interface {
	// Resource returns the URL of the module.
	Resource() *url.URL
	Environment() *Environment
	// Require loads a module relative to this one.
	Require(path string) (value.Value, error)
	// Resolve returns the URL path would be loaded from, relative to this
	// module.
	Resolve(path string) (*url.URL, error)
	// Disposer registers a function that runs when the engine is disposed.
	Disposer(fn func())
	ToScriptValue(v interface{}) value.Value
	ToNativeObject(v interface{}) interface{}
	// RegisterMock makes requires of path, relative to this module, return v
	// instead of loading anything.
	RegisterMock(path string, v interface{}) error
	Instance(name string) (interface{}, error)
	Supplier(name string) (Supplier, error)
	Optional(name string) (interface{}, bool, error)
	NewBean(name string) (interface{}, error)
	// Runtime returns the runtime the module runs in.
	Runtime() *goja.Runtime
}

type moduleContext struct {
	engine   *Engine
	resource *url.URL
	dir      *url.URL
}

var _ ExecutionContext = &moduleContext{}

func (e *Engine) newModuleContext(u *url.URL) *moduleContext {
	dir := e.env.Root
	if u.Opaque == "" {
		dir = loader.Dir(u)
	}
	return &moduleContext{engine: e, resource: u, dir: dir}
}

func (c *moduleContext) Resource() *url.URL {
	return c.resource
}

func (c *moduleContext) Environment() *Environment {
	return c.engine.env
}

func (c *moduleContext) Require(path string) (value.Value, error) {
	var v value.Value
	err := catch(c.engine.rt, func() error {
		_, exports, err := c.engine.require(c.dir, path)
		if err != nil {
			return err
		}
		v = value.New(c.engine.rt, exports)
		return nil
	})
	return v, err
}

func (c *moduleContext) Resolve(path string) (*url.URL, error) {
	return c.engine.resolve(c.dir, path)
}

func (c *moduleContext) Disposer(fn func()) {
	c.engine.addDisposer(fn)
}

func (c *moduleContext) ToScriptValue(v interface{}) value.Value {
	return c.engine.ToScriptValue(v)
}

func (c *moduleContext) ToNativeObject(v interface{}) interface{} {
	return c.engine.ToNativeObject(v)
}

func (c *moduleContext) RegisterMock(path string, v interface{}) error {
	key := path
	if !c.engine.isNative(path) {
		u, err := c.Resolve(path)
		if err != nil {
			return err
		}
		key = u.String()
	}
	c.engine.mocks[key] = value.ToGoja(c.engine.rt, v)
	return nil
}

func (c *moduleContext) Instance(name string) (interface{}, error) {
	return c.engine.Instance(name)
}

func (c *moduleContext) Supplier(name string) (Supplier, error) {
	return c.engine.Supplier(name)
}

func (c *moduleContext) Optional(name string) (interface{}, bool, error) {
	return c.engine.Optional(name)
}

func (c *moduleContext) NewBean(name string) (interface{}, error) {
	return c.engine.NewBean(name)
}

func (c *moduleContext) Runtime() *goja.Runtime {
	return c.engine.rt
}

func (c *moduleContext) requireFunc(path string) goja.Value {
	_, v, err := c.engine.require(c.dir, path)
	if err != nil {
		common.Throw(c.engine.rt, err)
	}
	return v
}

func (c *moduleContext) resolveFunc(path string) string {
	u, err := c.Resolve(path)
	if err != nil {
		common.Throw(c.engine.rt, err)
	}
	return u.String()
}

func (c *moduleContext) helper() *helper {
	return &helper{ctx: c, RunMode: c.engine.env.RunMode.String()}
}

// helper is the `__` object modules get.
type helper struct {
	ctx *moduleContext

	RunMode string `js:"runMode"`
}

func (h *helper) Instance(name string) (interface{}, error) {
	return h.ctx.Instance(name)
}

func (h *helper) NewBean(name string) (interface{}, error) {
	return h.ctx.NewBean(name)
}

func (h *helper) Optional(name string) interface{} {
	v, ok, err := h.ctx.Optional(name)
	if err != nil {
		common.Throw(h.ctx.engine.rt, err)
	}
	if !ok {
		return nil
	}
	return v
}

func (h *helper) ToNativeObject(v goja.Value) interface{} {
	return h.ctx.ToNativeObject(v)
}

func (h *helper) ToScriptValue(v goja.Value) goja.Value {
	native := h.ctx.ToNativeObject(v)
	if native == nil {
		return goja.Null()
	}
	return h.ctx.engine.rt.ToValue(native)
}

func (h *helper) RegisterMock(path string, v goja.Value) error {
	return h.ctx.RegisterMock(path, v)
}

func (h *helper) Disposer(fn goja.Callable) {
	logger := h.ctx.engine.logger
	h.ctx.Disposer(func() {
		if _, err := fn(goja.Undefined()); err != nil {
			logger.WithError(wrapError(err)).Error("A script disposer failed")
		}
	})
}

func (h *helper) Env(name string) interface{} {
	if v, ok := h.ctx.engine.env.LookupEnv(name); ok {
		return v
	}
	return nil
}

func (h *helper) Resource() string {
	return h.ctx.resource.String()
}
