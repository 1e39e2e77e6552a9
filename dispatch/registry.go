// Package dispatch maps operation names to validated, executable handlers
// and wraps every outcome in a uniform envelope.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"loan-desk-api/logger"
	"math"
	"strings"
	"time"
)

// Kind is the primitive type expected for an argument field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	}
	return "unknown"
}

// Field describes one argument of an operation. Identifier fields are
// upper-cased and trimmed during validation, and the normalized value is
// propagated to every alias, so handlers never special-case casing,
// whitespace or naming style.
type Field struct {
	Name       string
	Kind       Kind
	Required   bool
	Identifier bool
	Aliases    []string
}

// Descriptor is the static registration record of an operation.
type Descriptor struct {
	Name   string
	Fields []Field
}

// Args is the normalized argument bag passed to handlers.
type Args map[string]any

func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

func (a Args) Int(name string) int {
	switch v := a[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (a Args) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// HandlerFunc executes one operation over normalized arguments. A handler
// reports business-level absence with *NotFoundError; any other error (or a
// panic) is classified as a handler failure.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

type registration struct {
	descriptor Descriptor
	handler    HandlerFunc
}

// Registry is the lookup table from operation name to validated handler.
// Registrations happen once at startup; Execute is safe for concurrent use
// afterwards.
type Registry struct {
	operations map[string]registration
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		operations: make(map[string]registration),
		now:        time.Now,
	}
}

// Register adds an operation. A duplicate name is a programming error and
// fails fast at startup.
func (r *Registry) Register(descriptor Descriptor, handler HandlerFunc) {
	if descriptor.Name == "" {
		panic("dispatch: operation name must not be empty")
	}
	if handler == nil {
		panic(fmt.Sprintf("dispatch: nil handler for operation %q", descriptor.Name))
	}
	if _, exists := r.operations[descriptor.Name]; exists {
		panic(fmt.Sprintf("dispatch: operation %q registered twice", descriptor.Name))
	}
	r.operations[descriptor.Name] = registration{descriptor: descriptor, handler: handler}
}

// Names returns the registered operation names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.operations))
	for name := range r.operations {
		names = append(names, name)
	}
	return names
}

// Validate checks args against the operation's schema and returns the
// normalized argument bag or the field-level error list. Unknown operations
// report ok=false with no errors.
func (r *Registry) Validate(name string, args map[string]any) (Args, []FieldError, bool) {
	reg, ok := r.operations[name]
	if !ok {
		return nil, nil, false
	}
	normalized, fieldErrors := normalizeArgs(reg.descriptor, args)
	return normalized, fieldErrors, true
}

// Execute runs the named operation and returns exactly one envelope. No
// error, panic included, escapes past this boundary.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Envelope {
	reg, ok := r.operations[name]
	if !ok {
		return errorEnvelope(name, CodeUnknownFunction,
			fmt.Sprintf("unknown function: %s", name), r.now())
	}

	normalized, fieldErrors := normalizeArgs(reg.descriptor, args)
	if len(fieldErrors) > 0 {
		env := errorEnvelope(name, CodeValidationError, "invalid arguments", r.now())
		env["details"] = fieldErrors
		return env
	}

	payload, err := r.invoke(ctx, reg.handler, normalized)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			env := errorEnvelope(name, CodeEntityNotFound, notFound.Error(), r.now())
			env["entity"] = notFound.Entity
			env["entity_id"] = notFound.ID
			return env
		}
		logger.Log.WithError(err).WithField("function", name).Error("Handler failed")
		return errorEnvelope(name, CodeHandlerError, err.Error(), r.now())
	}

	return successEnvelope(name, payload, r.now())
}

// invoke contains a panicking handler, converting the panic into an error.
func (r *Registry) invoke(ctx context.Context, handler HandlerFunc, args Args) (payload any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, args)
}

func normalizeArgs(descriptor Descriptor, args map[string]any) (Args, []FieldError) {
	normalized := Args{}
	for k, v := range args {
		normalized[k] = v
	}

	var fieldErrors []FieldError
	for _, field := range descriptor.Fields {
		value, present := lookupField(args, field)
		if !present {
			if field.Required {
				fieldErrors = append(fieldErrors, FieldError{
					Field:   field.Name,
					Message: fmt.Sprintf("%s is required", field.Name),
				})
			}
			continue
		}

		coerced, ok := coerce(value, field.Kind)
		if !ok {
			fieldErrors = append(fieldErrors, FieldError{
				Field:   field.Name,
				Message: fmt.Sprintf("%s must be a %s", field.Name, field.Kind),
			})
			continue
		}

		if field.Identifier {
			if s, isString := coerced.(string); isString {
				coerced = strings.ToUpper(strings.TrimSpace(s))
			}
		}

		// The normalized value lands under the canonical name and every
		// alias, whichever spelling the handler reads.
		normalized[field.Name] = coerced
		for _, alias := range field.Aliases {
			normalized[alias] = coerced
		}
	}

	return normalized, fieldErrors
}

func lookupField(args map[string]any, field Field) (any, bool) {
	if v, ok := args[field.Name]; ok && v != nil {
		return v, true
	}
	for _, alias := range field.Aliases {
		if v, ok := args[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// coerce checks a decoded JSON value against the expected kind. JSON numbers
// arrive as float64; integer fields accept them only when integral.
func coerce(value any, kind Kind) (any, bool) {
	switch kind {
	case KindString:
		s, ok := value.(string)
		return s, ok
	case KindInt:
		switch v := value.(type) {
		case int:
			return v, true
		case float64:
			if v == math.Trunc(v) {
				return int(v), true
			}
		}
		return nil, false
	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		}
		return nil, false
	case KindBool:
		b, ok := value.(bool)
		return b, ok
	}
	return nil, false
}
