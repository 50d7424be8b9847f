// Package state holds the process-wide state purple commands share, so that
// tests can replace the operating system with fakes.
package state

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/purplejs/purplejs/lib/fsext"
)

// GlobalState contains the GlobalOptions and accessors for the outside world.
type GlobalState struct {
	Ctx context.Context

	FS         fsext.Fs
	Getwd      func() (string, error)
	BinaryName string
	CmdArgs    []string
	Env        map[string]string

	DefaultFlags, Flags GlobalOptions

	OutMutex       *sync.Mutex
	Stdout, Stderr *ConsoleWriter
	Stdin          io.Reader

	OSExit       func(int)
	SignalNotify func(chan<- os.Signal, ...os.Signal)
	SignalStop   func(chan<- os.Signal)

	Logger         *logrus.Logger
	FallbackLogger logrus.FieldLogger
}

// NewGlobalState returns a GlobalState backed by the operating system.
func NewGlobalState(ctx context.Context) *GlobalState {
	isDumbTerm := os.Getenv("TERM") == "dumb"
	stdoutTTY := !isDumbTerm && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	stderrTTY := !isDumbTerm && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	outMutex := &sync.Mutex{}
	stdout := &ConsoleWriter{colorable.NewColorable(os.Stdout), stdoutTTY, outMutex}
	stderr := &ConsoleWriter{colorable.NewColorable(os.Stderr), stderrTTY, outMutex}

	env := BuildEnvMap(os.Environ())
	defaultFlags := GetDefaultGlobalOptions(userConfigDir())
	globalFlags := consolidateGlobalFlags(defaultFlags, env)

	logLevel := logrus.InfoLevel
	if globalFlags.Verbose {
		logLevel = logrus.DebugLevel
	}

	if globalFlags.NoColor {
		stdout.Writer = colorable.NewNonColorable(os.Stdout)
		stderr.Writer = colorable.NewNonColorable(os.Stderr)
	}

	return &GlobalState{
		Ctx:          ctx,
		FS:           fsext.NewOsFs(),
		Getwd:        os.Getwd,
		BinaryName:   filepath.Base(os.Args[0]),
		CmdArgs:      os.Args,
		Env:          env,
		DefaultFlags: defaultFlags,
		Flags:        globalFlags,
		OutMutex:     outMutex,
		Stdout:       stdout,
		Stderr:       stderr,
		Stdin:        os.Stdin,
		OSExit:       os.Exit,
		SignalNotify: signal.Notify,
		SignalStop:   signal.Stop,
		Logger: &logrus.Logger{
			Out:       stderr,
			Formatter: &logrus.TextFormatter{ForceColors: stderrTTY, DisableColors: globalFlags.NoColor},
			Hooks:     make(logrus.LevelHooks),
			Level:     logLevel,
		},
		FallbackLogger: &logrus.Logger{
			Out:       stderr,
			Formatter: new(logrus.TextFormatter),
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
	}
}

func userConfigDir() string {
	confDir, err := os.UserConfigDir()
	if err != nil {
		return ".config"
	}
	return confDir
}

// BuildEnvMap returns a map from raw environment lines like "KEY=value".
func BuildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}
