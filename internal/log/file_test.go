package log

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct {
	io.Writer
	closed chan struct{}
}

func (nc *nopCloser) Close() error {
	close(nc.closed)
	return nil
}

func TestParseFileOptions(t *testing.T) {
	t.Parallel()

	tests := [...]struct {
		line       string
		errMessage string
		path       string
		levels     []logrus.Level
		formatter  logrus.Formatter
		truncate   bool
	}{
		{line: "file", errMessage: `the log file option "file" isn't a key=value pair`},
		{line: "file=/purple.log,level=info", path: "/purple.log", levels: logrus.AllLevels[:5]},
		{line: "file=/purple.log", path: "/purple.log", levels: logrus.AllLevels},
		{line: "file=,level=info", errMessage: "the log file path is empty"},
		{line: "file=/tmp/purple.log,level=tea", errMessage: "unknown log level tea"},
		{line: "file=/tmp/purple.log,level=", errMessage: "unknown log level "},
		{line: "file=/tmp/purple.log,unknown", errMessage: `the log file option "unknown" isn't a key=value pair`},
		{line: "file=/tmp/purple.log,unknown=x", errMessage: "unknown log file option unknown"},
		{
			line: "file=app.log,format=json,truncate=true", path: "app.log", levels: logrus.AllLevels,
			formatter: &logrus.JSONFormatter{}, truncate: true,
		},
		{
			line: "file=app.log,format=text,level=error", path: "app.log", levels: logrus.AllLevels[:3],
			formatter: &logrus.TextFormatter{DisableColors: true},
		},
		{line: "file=app.log,format=xml", errMessage: `unknown log file format "xml"`},
		{line: "file=app.log,truncate=sometimes", errMessage: "the log file option truncate isn't a bool"},
		{
			line:       "unknown=something",
			errMessage: "a log file is configured as `file=<path>[,level=<level>]` but got `unknown=something`",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.line, func(t *testing.T) {
			t.Parallel()

			opts, err := ParseFileOptions(test.line)
			if test.errMessage != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.errMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.path, opts.Path)
			assert.Equal(t, test.levels, opts.Levels)
			assert.Equal(t, test.formatter, opts.Formatter)
			assert.Equal(t, test.truncate, opts.Truncate)
		})
	}
}

func TestOpenFileHook(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/app/logs", 0o755))
	getwd := func() (string, error) { return "/app", nil }

	hook, err := OpenFileHook(fs, getwd, logrus.New(), "file=logs/purple.log,level=warning")
	require.NoError(t, err)
	assert.Equal(t, logrus.AllLevels[:4], hook.Levels())
	require.NoError(t, hook.file.Close())
	exists, err := afero.Exists(fs, "/app/logs/purple.log")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = OpenFileHook(fs, getwd, logrus.New(), "file=/missing/purple.log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `the directory "/missing" of the log file doesn't exist`)

	_, err = OpenFileHook(fs, func() (string, error) { return "", errors.New("gone") },
		logrus.New(), "file=purple.log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the working directory is unknown: gone")

	_, err = OpenFileHook(fs, getwd, logrus.New(), "file=/app/purple.log,format=yaml")
	require.Error(t, err)
}

func runFileHook(t *testing.T, fs afero.Fs, line string, log func(*logrus.Logger)) {
	t.Helper()

	hook, err := OpenFileHook(fs, func() (string, error) { return "/", nil }, logrus.New(), line)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hook.Listen(ctx)
		close(done)
	}()

	logger := logrus.New()
	logger.AddHook(hook)
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	log(logger)

	cancel()
	<-done
}

func TestFileHookTruncate(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	runFileHook(t, fs, "file=/purple.log", func(l *logrus.Logger) { l.Info("first") })
	runFileHook(t, fs, "file=/purple.log", func(l *logrus.Logger) { l.Info("second") })
	data, err := afero.ReadFile(fs, "/purple.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")

	runFileHook(t, fs, "file=/purple.log,truncate=true", func(l *logrus.Logger) { l.Info("third") })
	data, err = afero.ReadFile(fs, "/purple.log")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "first")
	assert.Contains(t, string(data), "third")
}

func TestFileHookFormat(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	runFileHook(t, fs, "file=/text.log", func(l *logrus.Logger) { l.WithField("app", "demo").Warn("kept") })
	data, err := afero.ReadFile(fs, "/text.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=warning msg=kept app=demo")

	runFileHook(t, fs, "file=/json.log,format=json,level=warning", func(l *logrus.Logger) {
		l.Info("dropped")
		l.WithField("app", "demo").Error("kept")
	})
	data, err = afero.ReadFile(fs, "/json.log")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.Contains(t, string(data), `"app":"demo"`)
}

func TestFileHookFire(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	nc := &nopCloser{
		Writer: &buffer,
		closed: make(chan struct{}),
	}
	hook := newFileHook(nc, logrus.New(), FileOptions{Levels: logrus.AllLevels})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hook.Listen(ctx)
		close(done)
	}()

	logger := logrus.New()
	logger.AddHook(hook)
	logger.SetOutput(io.Discard)
	for i := 0; i < 3*pendingLines; i++ {
		logger.Info("example log line")
	}

	cancel()
	<-done
	<-nc.closed

	assert.Equal(t, 3*pendingLines, bytes.Count(buffer.Bytes(), []byte("example log line")))
}
