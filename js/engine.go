// Package js runs CommonJS style script applications on top of goja.
package js

import (
	"net/url"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"

	"github.com/purplejs/purplejs/js/value"
)

// Engine loads and runs the modules of one script application inside a
// single goja runtime. It isn't safe for concurrent use, see Pool.
type Engine struct {
	rt     *goja.Runtime
	env    *Environment
	logger logrus.FieldLogger
	beans  *beans

	natives map[string]NativeModuleFunc
	// exports of the native modules that were already required
	exports map[string]goja.Value
	mocks   map[string]goja.Value
	cache   map[string]*module
	loading map[string]*module

	disposeMu   sync.Mutex
	disposers   []func()
	disposed    bool
	disposeOnce sync.Once
}

// Runtime returns the goja runtime of the engine.
func (e *Engine) Runtime() *goja.Runtime {
	return e.rt
}

// Environment returns what the engine was built with.
func (e *Engine) Environment() *Environment {
	return e.env
}

// Require loads the module at path, relative to the root of the engine, and
// returns its exports.
func (e *Engine) Require(path string) (*Exports, error) {
	var exports *Exports
	err := catch(e.rt, func() error {
		u, v, err := e.require(e.env.Root, e.hostPath(path))
		if err != nil {
			return err
		}
		exports = newExports(e, u, v)
		return nil
	})
	return exports, err
}

// RequireValue is like Require but returns the exports as a script value.
func (e *Engine) RequireValue(path string) (value.Value, error) {
	exports, err := e.Require(path)
	if err != nil {
		return nil, err
	}
	return exports.Value(), nil
}

// Resolve returns the URL path would be loaded from.
func (e *Engine) Resolve(path string) (*url.URL, error) {
	return e.resolve(e.env.Root, e.hostPath(path))
}

// hostPath makes paths given by the host relative to the root, instead of
// the lib directory bare specifiers in scripts are looked up in.
func (e *Engine) hostPath(p string) string {
	if p == "" || p[0] == '.' || p[0] == '/' || strings.Contains(p, "://") || e.isNative(p) {
		return p
	}
	return "/" + p
}

// ToScriptValue wraps a native or script value.
func (e *Engine) ToScriptValue(v interface{}) value.Value {
	switch x := v.(type) {
	case nil:
		return nil
	case value.Value:
		return x
	case goja.Value:
		return value.New(e.rt, x)
	default:
		return value.New(e.rt, e.rt.ToValue(x))
	}
}

// ToNativeObject converts script values into native Go values. Everything
// else is returned as is.
func (e *Engine) ToNativeObject(v interface{}) interface{} {
	switch x := v.(type) {
	case value.Value:
		return x.Native()
	case goja.Value:
		return value.Native(value.New(e.rt, x))
	default:
		return v
	}
}

// Instance returns the bean bound under name.
func (e *Engine) Instance(name string) (interface{}, error) {
	return e.beans.instance(name)
}

// Supplier returns a function that looks up the bean bound under name.
func (e *Engine) Supplier(name string) (Supplier, error) {
	return e.beans.supplier(name)
}

// Optional returns the bean bound under name, if there is one.
func (e *Engine) Optional(name string) (interface{}, bool, error) {
	return e.beans.optional(name)
}

// NewBean creates a new value of the factory bound under name.
func (e *Engine) NewBean(name string) (interface{}, error) {
	return e.beans.newBean(name)
}

func (e *Engine) addDisposer(fn func()) {
	e.disposeMu.Lock()
	defer e.disposeMu.Unlock()
	if e.disposed {
		e.logger.Warn("A disposer was registered after the engine was disposed, running it right away")
		runDisposers(e.logger, []func(){fn})
		return
	}
	e.disposers = append(e.disposers, fn)
}

// Dispose runs the registered disposers in registration order. Only the
// first call has an effect.
func (e *Engine) Dispose() {
	e.disposeOnce.Do(func() {
		e.disposeMu.Lock()
		disposers := e.disposers
		e.disposers = nil
		e.disposed = true
		e.disposeMu.Unlock()

		runDisposers(e.logger, disposers)
	})
}

func runDisposers(logger logrus.FieldLogger, disposers []func()) {
	for _, fn := range disposers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.WithField("panic", r).Error("A disposer panicked")
				}
			}()
			fn()
		}()
	}
}
