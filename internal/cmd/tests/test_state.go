// Package tests contains helpers for testing purple commands without
// touching the operating system.
package tests

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purplejs/purplejs/cmd/state"
	"github.com/purplejs/purplejs/lib/fsext"
	"github.com/purplejs/purplejs/lib/testutils"
)

// GlobalTestState wraps a GlobalState backed by an in-memory file system and
// buffers.
type GlobalTestState struct {
	*state.GlobalState
	Cancel func()

	Stdout, Stderr *bytes.Buffer
	LoggerHook     *testutils.LogHook

	Cwd string

	ExpectedExitCode int
}

// NewGlobalTestState returns a GlobalTestState. The test fails if the
// command exits with something other than ExpectedExitCode.
func NewGlobalTestState(tb testing.TB) *GlobalTestState {
	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)

	fs := fsext.NewMemMapFs()
	cwd := "/test/"
	require.NoError(tb, fs.MkdirAll(cwd, 0o755))

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.Out = testutils.NewTestOutput(tb)
	hook := testutils.NewLogHook()
	logger.AddHook(hook)

	ts := &GlobalTestState{
		Cwd:        cwd,
		Cancel:     cancel,
		LoggerHook: hook,
		Stdout:     new(bytes.Buffer),
		Stderr:     new(bytes.Buffer),
	}

	osExitCalled := false
	defaultOsExitHandle := func(exitCode int) {
		cancel()
		osExitCalled = true
		assert.Equal(tb, ts.ExpectedExitCode, exitCode)
	}

	tb.Cleanup(func() {
		if ts.ExpectedExitCode > 0 {
			assert.True(tb, osExitCalled, "expected exit code %d but the command didn't exit", ts.ExpectedExitCode)
		}
	})

	outMutex := &sync.Mutex{}
	defaultFlags := state.GetDefaultGlobalOptions("/home/.config")
	defaultFlags.NoColor = true

	ts.GlobalState = &state.GlobalState{
		Ctx:            ctx,
		FS:             fs,
		Getwd:          func() (string, error) { return ts.Cwd, nil },
		BinaryName:     "purple",
		CmdArgs:        []string{},
		Env:            map[string]string{},
		DefaultFlags:   defaultFlags,
		Flags:          defaultFlags,
		OutMutex:       outMutex,
		Stdout:         &state.ConsoleWriter{Writer: ts.Stdout, Mutex: outMutex},
		Stderr:         &state.ConsoleWriter{Writer: ts.Stderr, Mutex: outMutex},
		Stdin:          new(bytes.Buffer),
		OSExit:         defaultOsExitHandle,
		SignalNotify:   func(chan<- os.Signal, ...os.Signal) {},
		SignalStop:     func(chan<- os.Signal) {},
		Logger:         logger,
		FallbackLogger: testutils.NewLogger(tb).WithField("fallback", true),
	}
	return ts
}
