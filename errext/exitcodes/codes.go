// Package exitcodes lists the exit codes of the purple process.
package exitcodes

// ExitCode is the status purple exits with.
type ExitCode uint8

// Zero is success and -1 is any error without a code of its own.
const (
	GenericEngine     ExitCode = 103
	InvalidConfig     ExitCode = 104
	ExternalAbort     ExitCode = 105
	CannotStartServer ExitCode = 106
	ScriptException   ExitCode = 107
	ScriptAborted     ExitCode = 108
	GoPanic           ExitCode = 109
)
