package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/orchestrator"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected request, failed scenario
	ExitCommandError = 2 // Command error (bad flags, unreadable files, database not found, etc.)
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
// Returns ExitSuccess for nil and ExitFailure if the error is not an
// ExitError.
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // orchestrator code or adapter kind
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Emit outputs data as a JSON response, or through text in text mode.
func (f *OutputFormatter) Emit(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	text(f.Writer)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
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

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
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

// Reject reports an orchestrator rejection or adapter failure and returns
// an ExitFailure. Any other error is returned as is.
func (f *OutputFormatter) Reject(err error) error {
	code := string(orchestrator.CodeOf(err))
	if code == "" {
		var ae *adapter.Error
		if !errors.As(err, &ae) {
			return err
		}
		code = string(ae.Kind)
	}
	msg := err.Error()
	var oe *orchestrator.Error
	if errors.As(err, &oe) {
		msg = oe.Message
	}
	if outErr := f.Error(code, msg, nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "request rejected", err)
}

// formatCents renders cents as dollars.
func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}

func writeCard(w io.Writer, c domain.Card) {
	fmt.Fprintf(w, "[%s] %s\n", c.Type, c.Title)
	if c.Summary != "" {
		fmt.Fprintln(w, c.Summary)
	}
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-10s %s\n", name+":", value)
		}
	}
	field("draft", c.DraftID)
	field("execution", c.ExecutionID)
	field("vendor", c.Vendor)
	if c.EstimatedCostCents != nil {
		field("cost", formatCents(*c.EstimatedCostCents))
	}
	if len(c.Actions) > 0 {
		names := make([]string, len(c.Actions))
		for i, a := range c.Actions {
			names[i] = string(a.Type)
		}
		field("actions", strings.Join(names, ", "))
	}
	for _, warning := range c.Warnings {
		field("warning", warning)
	}
	if len(c.Body) > 0 {
		if data, err := domain.MarshalCanonical(map[string]any(c.Body)); err == nil {
			field("body", string(data))
		}
	}
}

func writeIntent(w io.Writer, in domain.Intent) {
	fmt.Fprintf(w, "verb:       %s\n", in.Verb)
	fmt.Fprintf(w, "confidence: %.2f\n", in.Confidence)
	if in.Object != "" {
		fmt.Fprintf(w, "object:     %s\n", in.Object)
	}
	if len(in.Params) > 0 {
		if data, err := domain.MarshalCanonical(map[string]any(in.Params)); err == nil {
			fmt.Fprintf(w, "params:     %s\n", data)
		}
	}
	for _, q := range in.Clarifications {
		fmt.Fprintf(w, "question:   %s %s [%s]\n", q.ID, q.Prompt, strings.Join(q.Choices, ", "))
	}
}

func writeExecutions(w io.Writer, list []domain.ExecutionSummary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No executions.")
		return
	}
	for _, ex := range list {
		cost := "-"
		if ex.FinalCostCents != nil {
			cost = formatCents(*ex.FinalCostCents)
		}
		fmt.Fprintf(w, "%s  %-20s %-12s %-15s %s  %s\n",
			ex.ExecutionID, ex.Verb, ex.Status, ex.Vendor, cost, ex.StartedAt.Format("2006-01-02 15:04:05"))
	}
}

func writeExecution(w io.Writer, d domain.ExecutionDetail) {
	fmt.Fprintf(w, "execution: %s\n", d.ExecutionID)
	fmt.Fprintf(w, "draft:     %s\n", d.DraftID)
	fmt.Fprintf(w, "verb:      %s\n", d.Verb)
	fmt.Fprintf(w, "status:    %s\n", d.Status)
	fmt.Fprintf(w, "command:   %q\n", d.RawCommandText)
	if d.ConfirmationLatencyMS != nil {
		fmt.Fprintf(w, "latency:   %dms\n", *d.ConfirmationLatencyMS)
	}
	if d.ErrorMessage != nil {
		fmt.Fprintf(w, "error:     %s\n", *d.ErrorMessage)
	}
	writeReceipts(w, d.Receipts)
}

func writeReceipts(w io.Writer, receipts []domain.Receipt) {
	for _, r := range receipts {
		fmt.Fprintf(w, "receipt %s %s: %s\n", r.ID, r.Type, r.ContentText)
	}
}

func writeEvents(w io.Writer, events []domain.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	for _, e := range events {
		fmt.Fprintf(w, "%4d  %s  %-26s %-16s %s\n",
			e.Seq, e.CreatedAt.Format("2006-01-02 15:04:05"), e.EventType, e.EntityType, e.EntityID)
	}
}
