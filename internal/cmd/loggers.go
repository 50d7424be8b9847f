package cmd

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/purplejs/purplejs/internal/log"
)

const waitLoggerCloseTimeout = 5 * time.Second

// rawFormatter writes only the message of entries.
type rawFormatter struct{}

func (rawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// setupLoggers applies the log flags to the logger of the global state. The
// goroutines it starts end once stop is closed.
func (c *rootCommand) setupLoggers(stop <-chan struct{}) error {
	gs := c.globalState
	if gs.Flags.Verbose {
		gs.Logger.SetLevel(logrus.DebugLevel)
	}

	var hook log.AsyncHook
	colors := false
	switch line := gs.Flags.LogOutput; {
	case line == "stderr":
		colors = !gs.Flags.NoColor && gs.Stderr.IsTTY
		gs.Logger.SetOutput(gs.Stderr)
	case line == "stdout":
		colors = !gs.Flags.NoColor && gs.Stdout.IsTTY
		gs.Logger.SetOutput(gs.Stdout)
	case line == "none":
		gs.Logger.SetOutput(io.Discard)
	case strings.HasPrefix(line, "file"):
		var err error
		if hook, err = log.OpenFileHook(gs.FS, gs.Getwd, gs.FallbackLogger, line); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported log output '%s'", line)
	}

	switch gs.Flags.LogFormat {
	case "raw":
		gs.Logger.SetFormatter(rawFormatter{})
	case "json":
		gs.Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		gs.Logger.SetFormatter(&logrus.TextFormatter{ForceColors: colors, DisableColors: gs.Flags.NoColor})
	}
	gs.Logger.Debugf("Logging to %s in the %s format", gs.Flags.LogOutput, gs.Flags.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	if hook != nil {
		c.logsToFile = true
		gs.Logger.AddHook(hook)
		gs.Logger.SetOutput(io.Discard)
		c.loggersWg.Add(1)
		go func() {
			defer c.loggersWg.Done()
			hook.Listen(ctx)
		}()
	}

	// the standard logger is used by net/http among others
	w := gs.Logger.Writer()
	stdlog.SetOutput(w)
	c.loggersWg.Add(1)
	go func() {
		defer c.loggersWg.Done()
		<-stop
		cancel()
		_ = w.Close()
	}()
	return nil
}

// stopLoggers stops the goroutines of setupLoggers and waits for them, up
// to waitLoggerCloseTimeout.
func (c *rootCommand) stopLoggers() {
	done := make(chan struct{})
	go func() {
		c.loggersWg.Wait()
		close(done)
	}()
	close(c.stopLoggersCh)
	select {
	case <-done:
	case <-time.After(waitLoggerCloseTimeout):
		c.globalState.FallbackLogger.Errorf("The logger didn't stop in %s", waitLoggerCloseTimeout)
	}
}
