// Package errext attaches process exit codes to errors and formats errors
// for logging. Errors raised by scripts carry their JavaScript stack.
package errext

import (
	"errors"

	"github.com/purplejs/purplejs/errext/exitcodes"
)

// HasExitCode is implemented by errors that decide the exit code of purple.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

// Exception is an error thrown by a script.
type Exception interface {
	HasExitCode
	StackTrace() string
}

type withExitCode struct {
	error
	code exitcodes.ExitCode
}

func (e withExitCode) Unwrap() error                { return e.error }
func (e withExitCode) ExitCode() exitcodes.ExitCode { return e.code }

// WithExitCodeIfNone attaches code to err unless something in its chain
// already has an exit code. A nil err stays nil.
func WithExitCodeIfNone(err error, code exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		return err
	}
	return withExitCode{error: err, code: code}
}

// ContextCanceled is the reason scripts are interrupted with when the context
// they run in is done.
const ContextCanceled = "script execution interrupted"

// InterruptError stops a running script.
type InterruptError struct {
	Reason string
}

func (i *InterruptError) Error() string { return i.Reason }

// ExitCode implements HasExitCode.
func (i *InterruptError) ExitCode() exitcodes.ExitCode { return exitcodes.ScriptAborted }

// IsInterruptError reports whether err stopped a script.
func IsInterruptError(err error) bool {
	var ierr *InterruptError
	return errors.As(err, &ierr)
}

// Format returns the message and the log fields for err. Script exceptions
// are logged with their stack instead of the message.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	msg := err.Error()
	var xerr Exception
	if errors.As(err, &xerr) {
		msg = xerr.StackTrace()
	}

	fields := make(map[string]interface{})
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		fields["exitCode"] = int(ecerr.ExitCode())
	}
	return msg, fields
}
