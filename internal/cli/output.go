package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/spotter/internal/engine"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // engine rejected the call, genesis invalid or scenarios failed
	ExitCommandError = 2 // bad flags, unreadable input, database unavailable
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command result to its exit code. A nil error is
// success; errors without an ExitError in their chain are failures.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every --format json response.
type CLIResponse struct {
	Status string      `json:"status"` // ok | error
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError reports a failure under its engine error kind,
// e.g. "ConsensusNotReached".
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as a CLIResponse.
// Diagnostics go to ErrWriter so they never interleave with JSON on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) emit(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success writes data, printing it with fmt in text mode.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.isJSON() {
		return f.emit(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Result writes data in JSON mode and otherwise lets text render it.
func (f *OutputFormatter) Result(data interface{}, text func(w io.Writer)) error {
	if f.isJSON() {
		return f.Success(data)
	}
	text(f.Writer)
	return nil
}

// Error writes a failure under code. Details are printed in text mode only
// when verbose.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.isJSON() {
		return f.emit(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// EngineError reports a rejected engine call under its error kind and
// returns the matching exit error.
func (f *OutputFormatter) EngineError(err error) error {
	kind := engine.Kind(err)
	if outErr := f.Error(kind, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, kind, err)
}

// VerboseLog prints a diagnostic line when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
