package orchestrator

import (
	"errors"
	"fmt"
)

// Error is a request the orchestrator rejected before changing any state.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// DraftID identifies the affected draft, when there is one.
	DraftID string
}

// ErrorCode categorizes rejected requests.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a referenced draft or execution does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeVendorMismatch indicates the draft was built by a different
	// adapter than the one now configured.
	ErrCodeVendorMismatch ErrorCode = "VENDOR_MISMATCH"

	// ErrCodeAlreadyConfirmed indicates the draft already has an IN_PROGRESS
	// or DONE execution.
	ErrCodeAlreadyConfirmed ErrorCode = "ALREADY_CONFIRMED"

	// ErrCodeDraftLocked indicates a modification of a draft that is already
	// executing or executed.
	ErrCodeDraftLocked ErrorCode = "DRAFT_LOCKED"

	// ErrCodeInvalidRequest indicates missing or malformed input.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrCodeUnknownVerb indicates a stored draft whose verb has no pipeline.
	ErrCodeUnknownVerb ErrorCode = "UNKNOWN_VERB"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.DraftID != "" {
		return fmt.Sprintf("%s: %s (draft=%s)", e.Code, e.Message, e.DraftID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, draftID, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), DraftID: draftID}
}

// CodeOf returns the code of an orchestrator error, or "" for any other
// error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND rejection.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsVendorMismatch reports whether err is a VENDOR_MISMATCH rejection.
func IsVendorMismatch(err error) bool {
	return CodeOf(err) == ErrCodeVendorMismatch
}

// IsAlreadyConfirmed reports whether err is an ALREADY_CONFIRMED rejection.
func IsAlreadyConfirmed(err error) bool {
	return CodeOf(err) == ErrCodeAlreadyConfirmed
}

// IsDraftLocked reports whether err is a DRAFT_LOCKED rejection.
func IsDraftLocked(err error) bool {
	return CodeOf(err) == ErrCodeDraftLocked
}

// IsInvalidRequest reports whether err is an INVALID_REQUEST rejection.
func IsInvalidRequest(err error) bool {
	return CodeOf(err) == ErrCodeInvalidRequest
}
