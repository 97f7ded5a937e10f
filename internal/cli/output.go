package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidemark/sealpost/internal/record"
)

// Exit codes. A refused operation (fault, failed verification) exits 1;
// a command error (bad flags, unreadable database) exits 2.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError carries an exit code up to main.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or JSON. Every JSON
// command prints exactly one envelope object, so scripted callers can
// pipe straight into a JSON parser.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output, kept off Writer so JSON stays parseable
	Verbose   bool
}

// envelope is the JSON shape of one command's output: status "ok" with
// data, or status "rejected" with the fault.
type envelope struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Fault  *faultBody `json:"fault,omitempty"`
}

// faultBody is the JSON rendering of a refused operation. Expected and
// Actual are pointers so a genuine zero survives omitempty.
type faultBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Identity string `json:"identity,omitempty"`
	Expected *int64 `json:"expected,omitempty"`
	Actual   *int64 `json:"actual,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(envelope{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Fault outputs a refused operation. Faults carry the values the engine
// observed (current length, current cursor), so a scripted caller can
// retry with fresh preconditions without a second read; JSON exposes
// them as fields, text shows them under --verbose. Non-fault rejections
// (quota, payload ceiling) render with code REJECTED.
func (f *OutputFormatter) Fault(err error) error {
	body := faultBody{Code: "REJECTED", Message: err.Error()}
	var fault *record.Fault
	if errors.As(err, &fault) {
		body.Code = string(fault.Code)
		body.Message = fault.Message
		body.Identity = string(fault.Identity)
		if fault.Expected != 0 || fault.Actual != 0 {
			expected, actual := fault.Expected, fault.Actual
			body.Expected = &expected
			body.Actual = &actual
		}
	}

	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(envelope{Status: "rejected", Fault: &body})
	}

	fmt.Fprintf(f.Writer, "rejected [%s]: %s\n", body.Code, body.Message)
	if f.Verbose && body.Expected != nil {
		fmt.Fprintf(f.Writer, "  expected %d, observed %d\n", *body.Expected, *body.Actual)
	}
	return nil
}

// VerboseLog outputs a diagnostic line when verbose mode is enabled.
// Goes to ErrWriter when set so it never interleaves with JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
