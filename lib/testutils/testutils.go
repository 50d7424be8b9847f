// Package testutils contains the helpers purple tests share.
package testutils

import (
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// LogHook records the entries of the levels it was created for.
type LogHook struct {
	levels  []logrus.Level
	mu      sync.Mutex
	entries []logrus.Entry
}

var _ logrus.Hook = &LogHook{}

// NewLogHook returns a hook for levels, or for every level if none are given.
func NewLogHook(levels ...logrus.Level) *LogHook {
	if len(levels) == 0 {
		levels = logrus.AllLevels
	}
	return &LogHook{levels: levels}
}

// Levels implements logrus.Hook.
func (h *LogHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook.
func (h *LogHook) Fire(e *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, *e)
	return nil
}

// Drain returns the recorded entries and forgets them.
func (h *LogHook) Drain() []logrus.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.entries
	h.entries = nil
	return entries
}

// Contains reports whether a message of level containing contents was
// recorded. The entries are kept.
func (h *LogHook) Contains(level logrus.Level, contents string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return LogContains(h.entries, level, contents)
}

// LastEntry returns the last recorded entry, or nil.
func (h *LogHook) LastEntry() *logrus.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return nil
	}
	return &h.entries[len(h.entries)-1]
}

// LogContains reports whether one of entries has level and a message
// containing contents.
func LogContains(entries []logrus.Entry, level logrus.Level, contents string) bool {
	for _, entry := range entries {
		if entry.Level == level && strings.Contains(entry.Message, contents) {
			return true
		}
	}
	return false
}

type testOutput struct{ testing.TB }

func (to testOutput) Write(p []byte) (int, error) {
	to.Logf("%s", p)
	return len(p), nil
}

// NewTestOutput returns a writer to the log of the test.
func NewTestOutput(t testing.TB) io.Writer {
	return testOutput{t}
}

// NewLogger returns a debug level logger writing to the log of the test.
func NewLogger(t testing.TB) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(NewTestOutput(t))
	l.SetLevel(logrus.DebugLevel)
	return l
}

// NewLoggerWithHook returns NewLogger(t) with a hook recording levels.
func NewLoggerWithHook(t testing.TB, levels ...logrus.Level) (*logrus.Logger, *LogHook) {
	l := NewLogger(t)
	hook := NewLogHook(levels...)
	l.AddHook(hook)
	return l, hook
}
