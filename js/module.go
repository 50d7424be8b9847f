package js

// Module contributes bindings to an engine while it's being built.
type Module interface {
	Configure(b Binder) error
}

// ModuleFunc adapts a function to the Module interface.
type ModuleFunc func(b Binder) error

// Configure calls f(b).
func (f ModuleFunc) Configure(b Binder) error {
	return f(b)
}

// NativeModuleFunc creates the exports of a native module. It's called once
// per engine, the first time a script requires the module.
type NativeModuleFunc func(ctx ExecutionContext) (interface{}, error)

// Binder is what modules configure an engine through.
type Binder interface {
	// GlobalVariable sets a variable on the global object of the runtime.
	GlobalVariable(name string, v interface{})
	// Instance binds a singleton bean.
	Instance(name string, v interface{})
	// Provider binds a singleton bean created on first use.
	Provider(name string, fn func() (interface{}, error))
	// Factory binds a bean of which every NewBean call creates a new value.
	Factory(name string, fn func() (interface{}, error))
	// NativeModule registers a module that scripts can require by name.
	NativeModule(name string, fn NativeModuleFunc)
	// Disposer registers a function that is called when the engine is
	// disposed.
	Disposer(fn func())
	// Environment returns the environment of the engine that is being built.
	Environment() *Environment
}

type binder struct {
	env       *Environment
	beans     *beans
	globals   map[string]interface{}
	order     []string
	natives   map[string]NativeModuleFunc
	disposers []func()
}

func newBinder(env *Environment) *binder {
	return &binder{
		env:     env,
		beans:   newBeans(),
		globals: make(map[string]interface{}),
		natives: make(map[string]NativeModuleFunc),
	}
}

func (b *binder) GlobalVariable(name string, v interface{}) {
	if _, ok := b.globals[name]; !ok {
		b.order = append(b.order, name)
	}
	b.globals[name] = v
}

func (b *binder) Instance(name string, v interface{}) {
	b.beans.instances[name] = v
}

func (b *binder) Provider(name string, fn func() (interface{}, error)) {
	b.beans.providers[name] = &provider{fn: fn}
}

func (b *binder) Factory(name string, fn func() (interface{}, error)) {
	b.beans.factories[name] = fn
}

func (b *binder) NativeModule(name string, fn NativeModuleFunc) {
	b.natives[name] = fn
}

func (b *binder) Disposer(fn func()) {
	b.disposers = append(b.disposers, fn)
}

func (b *binder) Environment() *Environment {
	return b.env
}
