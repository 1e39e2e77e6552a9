package client

import (
	"fmt"
	"time"
)

// Error types carried by InvocationError, normalized across transports so
// consumers never branch on transport-specific shapes.
const (
	ErrorTypeTransient      = "transient"
	ErrorTypeAuthExpired    = "auth_expired"
	ErrorTypeAuthentication = "authentication_failed"
	ErrorTypeForbidden      = "forbidden"
	ErrorTypeValidation     = "validation"
	ErrorTypeNotFound       = "not_found"
	ErrorTypeFunction       = "function"
	ErrorTypeCanceled       = "canceled"
)

// InvocationError is the single failure shape surfaced by the client.
type InvocationError struct {
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Type      string    `json:"type"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *InvocationError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Type, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// errorTypeForCode maps envelope error codes onto client error types.
func errorTypeForCode(code string) string {
	switch code {
	case "VALIDATION_ERROR":
		return ErrorTypeValidation
	case "ENTITY_NOT_FOUND":
		return ErrorTypeNotFound
	default:
		return ErrorTypeFunction
	}
}
