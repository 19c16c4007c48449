package adapter

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of adapter failure categories.
type Kind string

const (
	KindLinkRequired          Kind = "LINK_REQUIRED"
	KindAutomationUnavailable Kind = "AUTOMATION_UNAVAILABLE"
	KindCostDrift             Kind = "COST_DRIFT"
	KindBotDetected           Kind = "BOT_DETECTED"
	KindAdapter               Kind = "ADAPTER_ERROR"
	KindUnknown               Kind = "UNKNOWN"
)

// Retryable reports whether a RETRY without outside intervention can
// succeed. Cost drift and bot checks are retryable after the user has looked
// at them.
func (k Kind) Retryable() bool {
	switch k {
	case KindLinkRequired, KindAutomationUnavailable:
		return false
	default:
		return true
	}
}

// UserActionable reports whether the user has to fix something (link an
// account, start the automation service) before retrying.
func (k Kind) UserActionable() bool {
	return k == KindLinkRequired || k == KindAutomationUnavailable
}

// HTTPStatus maps the kind to the status code used by the HTTP surface.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindLinkRequired:
		return http.StatusPreconditionFailed
	case KindAutomationUnavailable:
		return http.StatusServiceUnavailable
	case KindCostDrift:
		return http.StatusConflict
	case KindBotDetected, KindAdapter:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is an adapter failure from the closed taxonomy.
type Error struct {
	Kind    Kind
	Vendor  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the taxonomy kind of err, or KindUnknown when err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsLinkRequired reports whether err is a link-required failure.
// Uses errors.As to handle wrapped errors.
func IsLinkRequired(err error) bool {
	return KindOf(err) == KindLinkRequired
}

// IsCostDrift reports whether err is a cost-drift failure.
func IsCostDrift(err error) bool {
	return KindOf(err) == KindCostDrift
}

// NewLinkRequiredError reports a missing linked session file.
func NewLinkRequiredError(vendor, label, statePath string) *Error {
	return &Error{
		Kind:    KindLinkRequired,
		Vendor:  vendor,
		Message: fmt.Sprintf("%s session not linked. Create a storage_state file at: %s", label, statePath),
	}
}

// NewAutomationUnavailableError reports that the automation service could
// not be reached.
func NewAutomationUnavailableError(vendor string, err error) *Error {
	return &Error{
		Kind:    KindAutomationUnavailable,
		Vendor:  vendor,
		Message: fmt.Sprintf("browser automation is unavailable: %v", err),
		Err:     err,
	}
}

// NewCostDriftError reports a checkout total outside the allowed drift.
func NewCostDriftError(vendor string, expectedCents, actualCents int64) *Error {
	return &Error{
		Kind:   KindCostDrift,
		Vendor: vendor,
		Message: fmt.Sprintf("Checkout total drifted too far from draft estimate. draft=%d actual=%d",
			expectedCents, actualCents),
	}
}

// NewBotDetectedError reports a captcha or bot wall.
func NewBotDetectedError(vendor, detail string) *Error {
	msg := "Vendor presented a bot check/captcha. Resolve it interactively and retry."
	if detail != "" {
		msg += " " + detail
	}
	return &Error{Kind: KindBotDetected, Vendor: vendor, Message: msg}
}

// NewAdapterError reports any other vendor-side failure.
func NewAdapterError(vendor, message string, err error) *Error {
	return &Error{Kind: KindAdapter, Vendor: vendor, Message: message, Err: err}
}
