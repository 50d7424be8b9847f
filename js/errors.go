package js

import (
	"errors"

	"github.com/dop251/goja"

	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/errext/exitcodes"
	"github.com/purplejs/purplejs/js/common"
)

// scriptException is an uncaught exception thrown by a script.
type scriptException struct {
	err *goja.Exception
}

var _ errext.Exception = &scriptException{}

func (e *scriptException) Error() string {
	return e.err.Error()
}

func (e *scriptException) StackTrace() string {
	return e.err.String()
}

func (e *scriptException) ExitCode() exitcodes.ExitCode {
	return exitcodes.ScriptException
}

func (e *scriptException) Unwrap() error {
	return e.err
}

// wrapError turns errors returned by goja into errors carrying exit codes.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if unwrapped := common.UnwrapGojaInterruptedError(err); unwrapped != err { //nolint:errorlint
			return unwrapped
		}
		return &errext.InterruptError{Reason: interrupted.String()}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &scriptException{err: ex}
	}
	return err
}

// catch runs fn and turns panics with JS values, which is how native code
// throws, into errors.
func catch(rt *goja.Runtime, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch x := r.(type) {
		case *goja.Exception:
			err = wrapError(x)
		case goja.Value:
			if o, ok := x.(*goja.Object); ok {
				if e, ok := o.Export().(error); ok {
					err = e
					return
				}
			}
			err = errors.New(x.String())
		case *goja.InterruptedError:
			err = wrapError(x)
		default:
			panic(r)
		}
	}()
	return fn()
}
