package js

import (
	"fmt"
	"io"
	"net/url"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"

	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/errext/exitcodes"
	"github.com/purplejs/purplejs/js/common"
	"github.com/purplejs/purplejs/lib/fsext"
	"github.com/purplejs/purplejs/loader"
)

// Builder collects everything an Engine is made of.
type Builder struct {
	modules     []Module
	logger      logrus.FieldLogger
	filesystems map[string]fsext.Fs
	root        *url.URL
	runMode     RunMode
	env         map[string]string
}

// NewBuilder returns a builder for an engine in prod mode, without any files.
func NewBuilder() *Builder {
	return &Builder{}
}

// Module adds modules that will configure the engine, in order.
func (b *Builder) Module(modules ...Module) *Builder {
	b.modules = append(b.modules, modules...)
	return b
}

// Logger sets the logger of the engine and of the script consoles.
func (b *Builder) Logger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// Filesystems sets the per-scheme filesystems modules are loaded from.
func (b *Builder) Filesystems(filesystems map[string]fsext.Fs) *Builder {
	b.filesystems = filesystems
	return b
}

// Root sets the URL relative paths passed to the engine are resolved against.
func (b *Builder) Root(root *url.URL) *Builder {
	b.root = root
	return b
}

// RunMode sets the run mode.
func (b *Builder) RunMode(mode RunMode) *Builder {
	b.runMode = mode
	return b
}

// Env sets the environment variables visible to scripts.
func (b *Builder) Env(env map[string]string) *Builder {
	b.env = env
	return b
}

// Build creates the engine and configures it with every module. If a module
// fails, the disposers registered so far are run before the error is returned.
func (b *Builder) Build() (*Engine, error) {
	env := &Environment{
		RunMode:     b.runMode,
		Env:         b.env,
		Logger:      b.logger,
		Filesystems: b.filesystems,
		Root:        b.root,
	}
	if env.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		env.Logger = l
	}
	if env.Filesystems == nil {
		env.Filesystems = loader.CreateFilesystems(fsext.NewMemMapFs(), 0)
	}
	if env.Root == nil {
		env.Root = &url.URL{Scheme: "file", Path: "/"}
	}
	if env.Env == nil {
		env.Env = make(map[string]string)
	}

	bnd := newBinder(env)
	for _, m := range b.modules {
		if err := m.Configure(bnd); err != nil {
			runDisposers(env.Logger, bnd.disposers)
			return nil, errext.WithExitCodeIfNone(
				fmt.Errorf("couldn't configure engine module: %w", err), exitcodes.GenericEngine)
		}
	}

	rt := goja.New()
	rt.SetFieldNameMapper(common.FieldNameMapper{})

	e := &Engine{
		rt:        rt,
		env:       env,
		logger:    env.Logger,
		beans:     bnd.beans,
		natives:   bnd.natives,
		exports:   make(map[string]goja.Value),
		mocks:     make(map[string]goja.Value),
		cache:     make(map[string]*module),
		loading:   make(map[string]*module),
		disposers: bnd.disposers,
	}

	if err := rt.Set("console", newConsole(env.Logger)); err != nil {
		return nil, err
	}
	for _, name := range bnd.order {
		if err := rt.Set(name, bnd.globals[name]); err != nil {
			e.Dispose()
			return nil, fmt.Errorf("couldn't set the global variable %q: %w", name, err)
		}
	}
	return e, nil
}
