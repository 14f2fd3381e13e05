// Package faults defines the typed error taxonomy the HTTP boundary
// classifies on: local faults map straight to a status code, background
// faults are logged and recorded on the owning row instead of crashing
// the task loop.
package faults

import (
	"fmt"
	"net/http"
)

// ValidationFault is a 4xx rejected before any state change. Never retried.
type ValidationFault struct {
	Code    string
	Message string
}

func (e *ValidationFault) Error() string  { return e.Message }
func (e *ValidationFault) HTTPStatus() int { return http.StatusBadRequest }
func (e *ValidationFault) FaultCode() string { return e.Code }

func Validation(code, format string, args ...interface{}) *ValidationFault {
	return &ValidationFault{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AuthFault signals an unrecognized API key. Never retried.
type AuthFault struct {
	Message string
}

func (e *AuthFault) Error() string    { return e.Message }
func (e *AuthFault) HTTPStatus() int  { return http.StatusUnauthorized }
func (e *AuthFault) FaultCode() string { return "INVALID_API_KEY" }

func Auth(message string) *AuthFault {
	return &AuthFault{Message: message}
}

// DomainFault is a business-rule violation: not retried, surfaced verbatim.
type DomainFault struct {
	Code    string
	Message string
	Status  int
}

func (e *DomainFault) Error() string    { return e.Message }
func (e *DomainFault) HTTPStatus() int  {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}
func (e *DomainFault) FaultCode() string { return e.Code }

func Domain(code, format string, args ...interface{}) *DomainFault {
	return &DomainFault{Code: code, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

func DomainWithStatus(code string, status int, format string, args ...interface{}) *DomainFault {
	return &DomainFault{Code: code, Message: fmt.Sprintf(format, args...), Status: status}
}

// GatewayFault is raised by a Gateway Port adapter. It is persisted on the
// owning PaymentAttempt and the Payment settles to FAILED; the intake
// caller receives the mapped HTTP status, defaulting to 500 if absent.
type GatewayFault struct {
	Message      string
	ProviderCode string
	HTTPStatusCode int
	Cause        error
}

func (e *GatewayFault) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *GatewayFault) Unwrap() error { return e.Cause }

func (e *GatewayFault) HTTPStatus() int {
	if e.HTTPStatusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatusCode
}

func (e *GatewayFault) FaultCode() string {
	if e.ProviderCode != "" {
		return e.ProviderCode
	}
	return "GATEWAY_ERROR"
}

// TransportFault covers webhook delivery failures (non-2xx, transport
// error, timeout). Retried via the scheduler's backoff; never surfaced
// synchronously to any caller.
type TransportFault struct {
	Kind    string // "http_status" | "transport_error" | "timeout"
	Detail  string
}

func (e *TransportFault) Error() string {
	return fmt.Sprintf("%s:%s", e.Kind, e.Detail)
}

// InternalFault is logged with a correlation id and returned as a
// sanitized 500; it never leaks stack traces or internal detail.
type InternalFault struct {
	Message string
	Cause   error
}

func (e *InternalFault) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalFault) Unwrap() error    { return e.Cause }
func (e *InternalFault) HTTPStatus() int  { return http.StatusInternalServerError }
func (e *InternalFault) FaultCode() string { return "INTERNAL_ERROR" }

func Internal(message string, cause error) *InternalFault {
	return &InternalFault{Message: message, Cause: cause}
}

// HTTPFault is implemented by every local fault kind so the HTTP boundary
// can classify any error with a single type switch.
type HTTPFault interface {
	error
	HTTPStatus() int
	FaultCode() string
}
