package js

import (
	"encoding/json"
	"strings"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
)

// console is the console global. Its methods log through logrus, at the level
// they are named after.
type console struct {
	logger logrus.FieldLogger
}

func newConsole(logger logrus.FieldLogger) *console {
	return &console{logger: logger.WithField("source", "console")}
}

func (c *console) Log(args ...goja.Value)   { c.logger.Info(formatArgs(args)) }
func (c *console) Info(args ...goja.Value)  { c.logger.Info(formatArgs(args)) }
func (c *console) Debug(args ...goja.Value) { c.logger.Debug(formatArgs(args)) }
func (c *console) Warn(args ...goja.Value)  { c.logger.Warn(formatArgs(args)) }
func (c *console) Error(args ...goja.Value) { c.logger.Error(formatArgs(args)) }

// formatArgs joins args with spaces. Objects other than errors are written as
// JSON.
func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatArg(arg)
	}
	return strings.Join(parts, " ")
}

func formatArg(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if _, ok := goja.AssertFunction(v); ok {
		return "[object Function]"
	}
	if o, ok := v.(*goja.Object); ok && o.ClassName() != "Error" {
		if b, err := json.Marshal(o); err == nil {
			return string(b)
		}
	}
	return v.String()
}
