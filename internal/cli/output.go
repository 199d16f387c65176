package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/refdrift/internal/config"
	"github.com/roach88/refdrift/internal/env"
	"github.com/roach88/refdrift/internal/notebook"
	"github.com/roach88/refdrift/internal/orchestrator"
	"github.com/roach88/refdrift/internal/version"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution, differences included
	ExitFailure      = 1 // Fatal run failure (install, notebook, I/O)
	ExitCommandError = 2 // Command error (invalid version, bad flags, missing paths)
)

// Error codes reported in JSON responses.
const (
	CodeInvalidVersion = "E_VERSION"
	CodeNotebook       = "E_NOTEBOOK"
	CodeEnvironment    = "E_ENVIRONMENT"
	CodeConfig         = "E_CONFIG"
	CodeNoNotebooks    = "E_NO_NOTEBOOKS"
	CodeRun            = "E_RUN"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
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
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classifyRunError maps a comparison failure to an exit code and a JSON
// error code. Usage problems exit 2; everything else that stops a run exits 1.
func classifyRunError(err error) (int, string) {
	switch {
	case version.IsInvalidVersion(err):
		return ExitCommandError, CodeInvalidVersion
	case config.IsValidationError(err):
		return ExitCommandError, CodeConfig
	case errors.Is(err, orchestrator.ErrNoNotebooks):
		return ExitCommandError, CodeNoNotebooks
	case notebook.IsExecutionError(err):
		return ExitFailure, CodeNotebook
	case errors.Is(err, env.ErrEnvironmentBusy),
		errors.Is(err, env.ErrEnvironmentMissing),
		errors.Is(err, env.ErrMissingSourceURL):
		return ExitFailure, CodeEnvironment
	default:
		return ExitFailure, CodeRun
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`           // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`   // success payload
	Error  *CLIError   `json:"error,omitempty"`  // error details
	RunID  string      `json:"run_id,omitempty"` // comparison run, when there is one
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E_VERSION", "E_RUN", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Encode writes resp as indented JSON regardless of format.
func (f *OutputFormatter) Encode(resp CLIResponse) error {
	return f.encode(resp)
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
