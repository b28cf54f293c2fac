package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/halloy/wiwo/internal/transport"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeTransport indicates a socket-level failure (bind, send, closed)
	ErrTypeTransport ErrorType = iota
	// ErrTypeTimeout indicates the device did not answer in time
	ErrTypeTimeout
	// ErrTypeProtocol indicates a reply that violates the wire grammar
	ErrTypeProtocol
	// ErrTypeUnexpectedResponse indicates a well-formed reply that does not
	// fit the current exchange
	ErrTypeUnexpectedResponse
	// ErrTypeSubscribeRejected indicates the device answered the claim
	// handshake without confirming this session
	ErrTypeSubscribeRejected
	// ErrTypeNotSubscribed indicates a command that needs an active
	// subscription was attempted without one
	ErrTypeNotSubscribed
	// ErrTypeUnsupported indicates an operation the device kind cannot do
	ErrTypeUnsupported
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeTransport:
		return "Transport Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeProtocol:
		return "Protocol Error"
	case ErrTypeUnexpectedResponse:
		return "Unexpected Response"
	case ErrTypeSubscribeRejected:
		return "Subscribe Rejected"
	case ErrTypeNotSubscribed:
		return "Not Subscribed"
	case ErrTypeUnsupported:
		return "Unsupported Operation"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// SessionError represents an error that occurred during a device session
type SessionError struct {
	Type      ErrorType // Category of error
	Message   string    // Human-readable error message
	DeviceIP  string    // Device IP address (for context)
	Err       error     // Underlying error (if any)
	Retryable bool      // Whether the error is retryable
}

// Error implements the error interface
func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a socket-level error
func NewTransportError(message string, err error) *SessionError {
	// A closed session cannot recover by retrying the same call
	retryable := !errors.Is(err, transport.ErrClosed)
	return &SessionError{
		Type:      ErrTypeTransport,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string, err error) *SessionError {
	return &SessionError{
		Type:      ErrTypeTimeout,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewProtocolError creates a wire-grammar error
func NewProtocolError(message string, err error) *SessionError {
	return &SessionError{
		Type:      ErrTypeProtocol,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

// NewUnexpectedResponseError creates an error for a reply that does not
// fit the exchange in progress
func NewUnexpectedResponseError(message string) *SessionError {
	return &SessionError{
		Type:      ErrTypeUnexpectedResponse,
		Message:   message,
		Retryable: false,
	}
}

// NewSubscribeRejectedError creates an error for a failed claim handshake
func NewSubscribeRejectedError(message string) *SessionError {
	return &SessionError{
		Type:      ErrTypeSubscribeRejected,
		Message:   message,
		Retryable: false,
	}
}

// NewNotSubscribedError creates a precondition error for commands that
// need an active subscription
func NewNotSubscribedError(operation string) *SessionError {
	return &SessionError{
		Type:      ErrTypeNotSubscribed,
		Message:   fmt.Sprintf("%s requires an active subscription", operation),
		Retryable: false,
	}
}

// NewUnsupportedError creates a capability error for an operation the
// device kind cannot perform
func NewUnsupportedError(operation, kind string) *SessionError {
	return &SessionError{
		Type:      ErrTypeUnsupported,
		Message:   fmt.Sprintf("%s is not supported by %s devices", operation, kind),
		Retryable: false,
	}
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	if sessErr, ok := err.(*SessionError); ok {
		return sessErr.Type == ErrTypeTimeout
	}
	return false
}

// IsNotSubscribed checks if an error is a missing-subscription error
func IsNotSubscribed(err error) bool {
	if sessErr, ok := err.(*SessionError); ok {
		return sessErr.Type == ErrTypeNotSubscribed
	}
	return false
}

// IsUnsupported checks if an error is a capability error
func IsUnsupported(err error) bool {
	if sessErr, ok := err.(*SessionError); ok {
		return sessErr.Type == ErrTypeUnsupported
	}
	return false
}

// IsSubscribeRejected checks if an error is a failed claim handshake
func IsSubscribeRejected(err error) bool {
	if sessErr, ok := err.(*SessionError); ok {
		return sessErr.Type == ErrTypeSubscribeRejected
	}
	return false
}

// IsTransportError checks if an error is a socket-level error
func IsTransportError(err error) bool {
	if sessErr, ok := err.(*SessionError); ok {
		return sessErr.Type == ErrTypeTransport
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if sessErr, ok := err.(*SessionError); ok {
		return sessErr.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	sessErr, ok := err.(*SessionError)
	if !ok {
		return err.Error()
	}

	switch sessErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeSubscribeRejected:
		return "Device did not accept this session"
	case ErrTypeNotSubscribed:
		return "Not subscribed - subscribe to the device first"
	case ErrTypeUnsupported:
		return sessErr.Message
	case ErrTypeTransport:
		return "Network error - check connection"
	case ErrTypeProtocol, ErrTypeUnexpectedResponse:
		return "Device sent an unusable reply"
	default:
		return sessErr.Message
	}
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	sessErr, ok := err.(*SessionError)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch sessErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The device did not respond in time.",
			"Troubleshooting:",
			"  • Check that the device is plugged in and its LED is lit",
			"  • Verify you're on the same network segment as the device",
			"  • Ensure UDP port 10000 is not blocked by a firewall",
			"  • Another controller's subscription can claim the device;",
			"    it frees itself about 3 minutes after that controller stops",
		}, "\n")

	case ErrTypeSubscribeRejected:
		return strings.Join([]string{
			"The device answered the handshake but did not confirm this session.",
			"Troubleshooting:",
			"  • Re-scan the network; the device may have changed address",
			"  • Check that the target address really is the device you expect",
		}, "\n")

	case ErrTypeNotSubscribed:
		return "Subscribe to the device before sending commands. The wiwo-ctl commands do this automatically."

	case ErrTypeUnsupported:
		return strings.Join([]string{
			sessErr.Message + ".",
			"Troubleshooting:",
			"  • Run a scan to check the device kind at this address",
			"  • Sockets switch power; blasters capture and replay signals",
		}, "\n")

	case ErrTypeTransport:
		return strings.Join([]string{
			"Local network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Verify no other program holds the needed UDP port",
		}, "\n")

	case ErrTypeProtocol, ErrTypeUnexpectedResponse:
		return strings.Join([]string{
			"The device's reply did not match the expected format.",
			"This may indicate an unsupported firmware revision.",
			"Troubleshooting:",
			"  • Power-cycle the device",
			"  • Re-run with WIWO_LOG_LEVEL=debug and inspect the raw frames",
		}, "\n")

	default:
		return "An error occurred. Please check the error message for details."
	}
}
