package dispatch

import (
	"encoding/json"
	"time"
)

// Error codes carried in error envelopes. The set is closed: callers switch
// on these to decide whether an outcome is retryable.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnknownFunction = "UNKNOWN_FUNCTION"
	CodeEntityNotFound  = "ENTITY_NOT_FOUND"
	CodeHandlerError    = "HANDLER_ERROR"
)

// Metadata marks a successful envelope.
type Metadata struct {
	Success   bool      `json:"success"`
	Function  string    `json:"function"`
	Timestamp time.Time `json:"timestamp"`
}

// FieldError is one entry of a validation failure's field-level error list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Envelope is the uniform result of a dispatch: the handler payload's fields
// plus `_metadata`, or an error object. It is the sole contract between the
// registry and every caller.
type Envelope map[string]any

// IsError reports whether the envelope carries an error outcome.
func (e Envelope) IsError() bool {
	v, ok := e["error"].(bool)
	return ok && v
}

// Code returns the error code for error envelopes, "" otherwise.
func (e Envelope) Code() string {
	code, _ := e["code"].(string)
	return code
}

func successEnvelope(function string, payload any, at time.Time) Envelope {
	env := Envelope{}

	// Object payloads are spread into the envelope; anything else (lists,
	// scalars) is carried under "data" so the envelope stays an object.
	if payload != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			var fields map[string]any
			if err := json.Unmarshal(data, &fields); err == nil {
				for k, v := range fields {
					env[k] = v
				}
			} else {
				var generic any
				_ = json.Unmarshal(data, &generic)
				env["data"] = generic
			}
		}
	}

	env["_metadata"] = Metadata{Success: true, Function: function, Timestamp: at}
	return env
}

func errorEnvelope(function, code, message string, at time.Time) Envelope {
	return Envelope{
		"error":     true,
		"message":   message,
		"code":      code,
		"function":  function,
		"timestamp": at,
	}
}
