package js

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/purplejs/purplejs/lib/fsext"
)

// RunMode tells scripts and the engine what kind of deployment they run in.
type RunMode uint8

// The supported run modes. The zero value is RunModeProd.
const (
	RunModeProd RunMode = iota
	RunModeDev
	RunModeTest
)

// ParseRunMode parses the textual form of a run mode.
func ParseRunMode(s string) (RunMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prod", "production":
		return RunModeProd, nil
	case "dev", "development":
		return RunModeDev, nil
	case "test":
		return RunModeTest, nil
	default:
		return RunModeProd, fmt.Errorf("invalid run mode %q, expected one of prod, dev or test", s)
	}
}

func (m RunMode) String() string {
	switch m {
	case RunModeDev:
		return "dev"
	case RunModeTest:
		return "test"
	default:
		return "prod"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RunMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RunMode) UnmarshalText(data []byte) error {
	v, err := ParseRunMode(string(data))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Environment is what an engine was built with. It is shared by every module
// the engine loads and must not be modified after Build.
type Environment struct {
	RunMode     RunMode
	Env         map[string]string
	Logger      logrus.FieldLogger
	Filesystems map[string]fsext.Fs
	Root        *url.URL
}

// IsDev reports whether modules should be reloaded on every require.
func (e *Environment) IsDev() bool {
	return e.RunMode == RunModeDev
}

// LookupEnv returns the value of an environment variable given to the engine.
func (e *Environment) LookupEnv(key string) (string, bool) {
	v, ok := e.Env[key]
	return v, ok
}
