// Package enginetest runs script applications in Go tests.
//
// A harness builds an engine in test run mode over a directory of scripts
// (testdata by default) and binds the __TEST__ global, which scripts use to
// make assertions:
//
//	__TEST__.assertEquals(expected, actual, "message");
//	__TEST__.assertTrue(cond, "message");
//	__TEST__.fail("message");
//	__TEST__.log("value", value);
//
// Failed assertions throw, so they surface as errors of the script call
// that made them.
package enginetest

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/purplejs/purplejs/js"
	"github.com/purplejs/purplejs/js/value"
	"github.com/purplejs/purplejs/lib/fsext"
	"github.com/purplejs/purplejs/lib/testutils"
	"github.com/purplejs/purplejs/loader"
)

// Harness owns an engine for the duration of a test.
type Harness struct {
	t      testing.TB
	engine *js.Engine
}

type options struct {
	dir         string
	prefix      string
	fs          fsext.Fs
	logger      logrus.FieldLogger
	modules     []js.Module
	env         map[string]string
	runDisposer bool
}

// Option configures a harness.
type Option func(*options)

// WithDir sets the directory scripts are loaded from.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithPrefix mounts a subdirectory of the script directory as the root.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithFs loads scripts from fs instead of a directory.
func WithFs(fs fsext.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithLogger replaces the logger that writes to the test log.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithModule adds modules that configure the engine.
func WithModule(modules ...js.Module) Option {
	return func(o *options) { o.modules = append(o.modules, modules...) }
}

// WithEnv sets the environment variables of the engine.
func WithEnv(env map[string]string) Option {
	return func(o *options) { o.env = env }
}

// WithoutDisposer leaves disposing the engine to the test.
func WithoutDisposer() Option {
	return func(o *options) { o.runDisposer = false }
}

// New builds the engine of a test.
func New(t testing.TB, opts ...Option) *Harness {
	t.Helper()
	o := &options{dir: "testdata", runDisposer: true}
	for _, opt := range opts {
		opt(o)
	}

	fs := o.fs
	if fs == nil {
		dir, err := filepath.Abs(filepath.Join(o.dir, filepath.FromSlash(o.prefix)))
		require.NoError(t, err)
		fs = fsext.NewBasePathFs(fsext.NewOsFs(), dir)
	} else if o.prefix != "" {
		fs = fsext.NewBasePathFs(fs, "/"+strings.Trim(o.prefix, "/"))
	}
	logger := o.logger
	if logger == nil {
		logger = testutils.NewLogger(t)
	}

	tool := &testTool{logger: logger.WithField("source", "test")}
	builder := js.NewBuilder().
		Logger(logger).
		Filesystems(loader.CreateFilesystems(fs, 0)).
		RunMode(js.RunModeTest).
		Env(o.env).
		Module(js.ModuleFunc(func(b js.Binder) error {
			b.GlobalVariable("__TEST__", tool)
			return nil
		})).
		Module(o.modules...)

	engine, err := builder.Build()
	require.NoError(t, err)
	if o.runDisposer {
		t.Cleanup(engine.Dispose)
	}
	return &Harness{t: t, engine: engine}
}

// Engine returns the engine of the harness.
func (h *Harness) Engine() *js.Engine {
	return h.engine
}

// Run requires the script at path and fails the test if that fails.
func (h *Harness) Run(path string) *js.Exports {
	h.t.Helper()
	exports, err := h.engine.Require(path)
	require.NoError(h.t, err, "couldn't run %s", path)
	return exports
}

// RunFunc calls the function fn exported by the script at path.
func (h *Harness) RunFunc(path, fn string, args ...interface{}) value.Value {
	h.t.Helper()
	exports := h.Run(path)
	v, err := exports.ExecuteMethod(fn, args...)
	require.NoError(h.t, err, "couldn't run %s of %s", fn, path)
	return v
}

// testTool is the __TEST__ global.
type testTool struct {
	logger logrus.FieldLogger
}

func (tt *testTool) AssertEquals(expected, actual interface{}, msg ...string) error {
	e, a := value.JSON(value.Of(expected)), value.JSON(value.Of(actual))
	if string(e) == string(a) {
		return nil
	}
	return fmt.Errorf("%sexpected %s but was %s", prefix(msg), e, a)
}

func (tt *testTool) AssertTrue(cond bool, msg ...string) error {
	if cond {
		return nil
	}
	return fmt.Errorf("%sexpected true but was false", prefix(msg))
}

func (tt *testTool) Fail(msg ...string) error {
	if len(msg) == 0 {
		return fmt.Errorf("failed")
	}
	return fmt.Errorf("%s", strings.Join(msg, " "))
}

func (tt *testTool) Log(args ...interface{}) {
	parts := make([]string, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			parts[i] = s
			continue
		}
		parts[i] = string(value.JSON(value.Of(arg)))
	}
	tt.logger.Info(strings.Join(parts, " "))
}

func prefix(msg []string) string {
	if len(msg) == 0 || msg[0] == "" {
		return ""
	}
	return strings.Join(msg, " ") + ": "
}
