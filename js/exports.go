package js

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dop251/goja"

	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/js/value"
)

// Exports are the exports of a loaded module.
type Exports struct {
	engine   *Engine
	resource *url.URL
	raw      goja.Value
}

func newExports(e *Engine, u *url.URL, raw goja.Value) *Exports {
	return &Exports{engine: e, resource: u, raw: raw}
}

// Resource returns the URL the module was loaded from.
func (x *Exports) Resource() *url.URL {
	return x.resource
}

// Value returns the exports as a script value.
func (x *Exports) Value() value.Value {
	return value.New(x.engine.rt, x.raw)
}

// HasMethod reports whether the module exports a function called name.
func (x *Exports) HasMethod(name string) bool {
	_, ok := x.method(name)
	return ok
}

func (x *Exports) method(name string) (goja.Callable, bool) {
	obj, ok := x.raw.(*goja.Object)
	if !ok {
		return nil, false
	}
	var fn goja.Callable
	ok = false
	x.engine.rt.Try(func() { fn, ok = goja.AssertFunction(obj.Get(name)) })
	return fn, ok
}

// ExecuteMethod calls the exported function name with args, which may be
// native values or script values.
func (x *Exports) ExecuteMethod(name string, args ...interface{}) (value.Value, error) {
	return x.ExecuteMethodContext(context.Background(), name, args...)
}

// ExecuteMethodContext is like ExecuteMethod, but interrupts the script once
// ctx is done.
func (x *Exports) ExecuteMethodContext(ctx context.Context, name string, args ...interface{}) (value.Value, error) {
	var result value.Value
	err := x.ExecuteMethodWith(ctx, name, func(v value.Value) { result = v }, args...)
	return result, err
}

// ExecuteMethodWith is like ExecuteMethodContext, but hands the result to use
// before the interruption by ctx is disarmed. Getters that use runs through
// the result are stopped once ctx is done as well, and the call then fails
// with an interrupt error.
func (x *Exports) ExecuteMethodWith(
	ctx context.Context, name string, use func(value.Value), args ...interface{},
) error {
	fn, ok := x.method(name)
	if !ok {
		return fmt.Errorf("%s doesn't export a function named %q", x.resource, name)
	}

	rt := x.engine.rt
	jsArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		jsArgs[i] = value.ToGoja(rt, arg)
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			rt.Interrupt(&errext.InterruptError{Reason: errext.ContextCanceled})
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-stopped
		rt.ClearInterrupt()
	}()

	err := catch(rt, func() error {
		result, err := fn(x.raw, jsArgs...)
		if err != nil {
			return wrapError(err)
		}
		use(value.New(rt, result))
		return nil
	})
	if err == nil && ctx.Err() != nil {
		err = &errext.InterruptError{Reason: errext.ContextCanceled}
	}
	return err
}
