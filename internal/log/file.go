package log

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/purplejs/purplejs/lib/fsext"
)

// AsyncHook is a logrus hook that writes entries from its own goroutine,
// started by Listen and stopped when ctx is done.
type AsyncHook interface {
	logrus.Hook
	Listen(ctx context.Context)
}

// pendingLines is how many formatted entries wait for Listen before Fire
// blocks.
const pendingLines = 100

// FileOptions configure a FileHook. They are read from a log output of the
// form file=<path>[,level=<level>][,format=text|json][,truncate=<bool>].
type FileOptions struct {
	Path string
	// Levels are the levels written, all of them by default.
	Levels []logrus.Level
	// Formatter replaces the formatter of the logger for the file. Nil keeps
	// it.
	Formatter logrus.Formatter
	// Truncate empties the file when it's opened instead of appending to it.
	Truncate bool
}

// ParseFileOptions reads the options of a file log output.
func ParseFileOptions(line string) (FileOptions, error) {
	opts := FileOptions{Levels: logrus.AllLevels}
	if output, _, _ := strings.Cut(line, "="); output != "file" {
		return opts, fmt.Errorf("a log file is configured as `file=<path>[,level=<level>]` but got `%s`", line)
	}

	for _, token := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			return opts, fmt.Errorf("the log file option %q isn't a key=value pair", token)
		}
		switch key {
		case "file":
			if value == "" {
				return opts, errors.New("the log file path is empty")
			}
			opts.Path = value
		case "level":
			levels, err := parseLevels(value)
			if err != nil {
				return opts, err
			}
			opts.Levels = levels
		case "format":
			switch value {
			case "json":
				opts.Formatter = &logrus.JSONFormatter{}
			case "text":
				opts.Formatter = &logrus.TextFormatter{DisableColors: true}
			default:
				return opts, fmt.Errorf("unknown log file format %q", value)
			}
		case "truncate":
			truncate, err := strconv.ParseBool(value)
			if err != nil {
				return opts, fmt.Errorf("the log file option truncate isn't a bool: %w", err)
			}
			opts.Truncate = truncate
		default:
			return opts, fmt.Errorf("unknown log file option %s", key)
		}
	}
	return opts, nil
}

// FileHook writes log entries to a file of the application filesystem.
type FileHook struct {
	opts     FileOptions
	fallback logrus.FieldLogger
	lines    chan []byte
	file     io.WriteCloser
	buf      *bufio.Writer
}

var _ AsyncHook = &FileHook{}

// OpenFileHook parses line and opens the file it names, resolving relative
// paths against the directory getwd returns. Write errors are reported to
// fallback.
func OpenFileHook(
	filesystem fsext.Fs, getwd func() (string, error),
	fallback logrus.FieldLogger, line string,
) (*FileHook, error) {
	opts, err := ParseFileOptions(line)
	if err != nil {
		return nil, err
	}
	file, err := openLogFile(filesystem, getwd, opts)
	if err != nil {
		return nil, err
	}
	return newFileHook(file, fallback, opts), nil
}

func newFileHook(file io.WriteCloser, fallback logrus.FieldLogger, opts FileOptions) *FileHook {
	return &FileHook{
		opts:     opts,
		fallback: fallback,
		lines:    make(chan []byte, pendingLines),
		file:     file,
		buf:      bufio.NewWriter(file),
	}
}

func openLogFile(filesystem fsext.Fs, getwd func() (string, error), opts FileOptions) (io.WriteCloser, error) {
	path := opts.Path
	if !filepath.IsAbs(path) {
		cwd, err := getwd()
		if err != nil {
			return nil, fmt.Errorf("the log file %q is relative but the working directory is unknown: %w", path, err)
		}
		path = filepath.Join(cwd, path)
	}

	dir := filepath.Dir(path)
	if _, err := filesystem.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("the directory %q of the log file doesn't exist", dir)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if opts.Truncate {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := filesystem.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("couldn't open the log file %s: %w", path, err)
	}
	return file, nil
}

// Listen writes the lines fired until ctx is done, then flushes and closes
// the file.
func (h *FileHook) Listen(ctx context.Context) {
	for {
		select {
		case line := <-h.lines:
			h.write(line)
		case <-ctx.Done():
			h.close()
			return
		}
	}
}

func (h *FileHook) write(line []byte) {
	if _, err := h.buf.Write(line); err != nil {
		h.fallback.WithError(err).Error("Couldn't write to the log file")
	}
}

// close writes what is still pending, nothing is fired anymore by then.
func (h *FileHook) close() {
	for {
		select {
		case line := <-h.lines:
			h.write(line)
		default:
			if err := h.buf.Flush(); err != nil {
				h.fallback.WithError(err).Error("Couldn't flush the log file")
			}
			if err := h.file.Close(); err != nil {
				h.fallback.WithError(err).Error("Couldn't close the log file")
			}
			return
		}
	}
}

// Fire formats entry and queues it for Listen.
func (h *FileHook) Fire(entry *logrus.Entry) error {
	var (
		line []byte
		err  error
	)
	if h.opts.Formatter != nil {
		line, err = h.opts.Formatter.Format(entry)
	} else {
		line, err = entry.Bytes()
	}
	if err != nil {
		return fmt.Errorf("couldn't format a log entry: %w", err)
	}
	h.lines <- line
	return nil
}

// Levels returns the levels the file receives.
func (h *FileHook) Levels() []logrus.Level {
	return h.opts.Levels
}

// parseLevels returns level and every level more severe than it.
func parseLevels(level string) ([]logrus.Level, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %s", level)
	}
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= lvl {
			levels = append(levels, l)
		}
	}
	return levels, nil
}
