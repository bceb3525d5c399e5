package core

import (
	"errors"
	"fmt"
)

// Error represents a classified session error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors by origin and severity.
type ErrorType string

const (
	// ErrConfig is a missing or invalid credential/configuration. Fatal to
	// session start; reported before any network activity.
	ErrConfig ErrorType = "config_error"

	// ErrDevice is a microphone or speaker acquisition failure. Fatal to the
	// in-progress session.
	ErrDevice ErrorType = "device_error"

	// ErrTransport is a live-connection failure (dial, handshake, read, or
	// server-initiated close). Fatal to the session; no automatic reconnect.
	ErrTransport ErrorType = "transport_error"

	// ErrTool is a tool invocation failure. Recoverable: localized to one
	// function call, never tears the session down.
	ErrTool ErrorType = "tool_error"
)

// NewConfigError creates a configuration error.
func NewConfigError(message string) *Error {
	return &Error{
		Type:    ErrConfig,
		Message: message,
	}
}

// NewDeviceError creates a device error wrapping the underlying cause.
func NewDeviceError(message string, cause error) *Error {
	return &Error{
		Type:    ErrDevice,
		Message: message,
		Cause:   cause,
	}
}

// NewTransportError creates a transport error wrapping the underlying cause.
func NewTransportError(message string, cause error) *Error {
	return &Error{
		Type:    ErrTransport,
		Message: message,
		Cause:   cause,
	}
}

// NewToolError creates a tool error. Code carries the tool name so callers
// can attribute the failure to a single function call.
func NewToolError(tool, message string, cause error) *Error {
	return &Error{
		Type:    ErrTool,
		Message: message,
		Code:    tool,
		Cause:   cause,
	}
}

// IsFatal reports whether err forces full session teardown. Tool errors are
// recoverable; everything else (including unclassified errors) is fatal.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type != ErrTool
	}
	return true
}

// Display normalizes err to a human-readable string for surfacing to
// callers. Raw error objects never reach the UI layer.
func Display(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
