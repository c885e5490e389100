package exit

import (
	"fmt"
	"io"
	"os"
)

const (
	CodeOK = 0
	// CodeError reports a usage, configuration or I/O failure.
	CodeError = 1
	// CodeDataErrors reports that the run finished but lines failed to decode, or
	// the two decoders disagreed, and the run was asked to treat that as failure.
	CodeDataErrors = 2
)

// Result holds the output destination and exit code for program termination.
type Result struct {
	Output   io.Writer
	ExitCode int
	Message  string
}

// Print writes the result message to the configured output destination.
func (r *Result) Print() {
	if r.Message == "" {
		return
	}
	fmt.Fprint(r.Output, r.Message)
}

// Success creates a successful exit result that outputs to stdout with exit code 0.
func Success(message string) *Result {
	return &Result{
		Output:   os.Stdout,
		ExitCode: CodeOK,
		Message:  message,
	}
}

// Error creates an error exit result that outputs to stderr with exit code 1.
func Error(message string) *Result {
	return &Result{
		Output:   os.Stderr,
		ExitCode: CodeError,
		Message:  message,
	}
}

// Errorf creates an error exit result with formatted message.
func Errorf(format string, a ...any) *Result {
	return Error(fmt.Sprintf(format, a...))
}

// DataErrors creates the result of a run that completed with bad lines.
func DataErrors(format string, a ...any) *Result {
	return &Result{
		Output:   os.Stderr,
		ExitCode: CodeDataErrors,
		Message:  fmt.Sprintf(format, a...),
	}
}
