package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newLoanRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.Register(Descriptor{
		Name: "getLoanDetails",
		Fields: []Field{
			{Name: "loan_id", Kind: KindString, Required: true, Identifier: true, Aliases: []string{"loanId"}},
		},
	}, func(ctx context.Context, args Args) (any, error) {
		id := args.String("loan_id")
		if id == "L404" {
			return nil, NewNotFoundError("loan", id)
		}
		return map[string]any{"id": id, "status": "active"}, nil
	})
	return reg
}

func TestRegistry_Register_DuplicatePanics(t *testing.T) {
	reg := newLoanRegistry(t)
	assert.Panics(t, func() {
		reg.Register(Descriptor{Name: "getLoanDetails"}, func(context.Context, Args) (any, error) {
			return nil, nil
		})
	})
}

// Execute must return an envelope on every path and never let anything
// escape, panics included.
func TestRegistry_Execute_NeverThrows(t *testing.T) {
	reg := newLoanRegistry(t)
	reg.Register(Descriptor{Name: "explode"}, func(context.Context, Args) (any, error) {
		panic("boom")
	})
	reg.Register(Descriptor{Name: "fail"}, func(context.Context, Args) (any, error) {
		return nil, errors.New("backend unavailable")
	})

	t.Run("valid args", func(t *testing.T) {
		env := reg.Execute(context.Background(), "getLoanDetails", map[string]any{"loan_id": "L001"})
		assert.False(t, env.IsError())
		assert.Equal(t, "L001", env["id"])

		meta, ok := env["_metadata"].(Metadata)
		assert.True(t, ok)
		assert.True(t, meta.Success)
		assert.Equal(t, "getLoanDetails", meta.Function)
	})

	t.Run("missing required args", func(t *testing.T) {
		env := reg.Execute(context.Background(), "getLoanDetails", map[string]any{})
		assert.True(t, env.IsError())
		assert.Equal(t, CodeValidationError, env.Code())

		details, ok := env["details"].([]FieldError)
		assert.True(t, ok)
		assert.Len(t, details, 1)
		assert.Equal(t, "loan_id", details[0].Field)
	})

	t.Run("handler panics", func(t *testing.T) {
		var env Envelope
		assert.NotPanics(t, func() {
			env = reg.Execute(context.Background(), "explode", map[string]any{})
		})
		assert.True(t, env.IsError())
		assert.Equal(t, CodeHandlerError, env.Code())
	})

	t.Run("handler error", func(t *testing.T) {
		env := reg.Execute(context.Background(), "fail", map[string]any{})
		assert.True(t, env.IsError())
		assert.Equal(t, CodeHandlerError, env.Code())
		assert.Equal(t, "backend unavailable", env["message"])
	})
}

func TestRegistry_Execute_UnknownFunction(t *testing.T) {
	reg := newLoanRegistry(t)
	env := reg.Execute(context.Background(), "noSuchFunction", map[string]any{})
	assert.True(t, env.IsError())
	assert.Equal(t, CodeUnknownFunction, env.Code())
	assert.Equal(t, "noSuchFunction", env["function"])
}

func TestRegistry_Execute_EntityNotFound(t *testing.T) {
	reg := newLoanRegistry(t)
	env := reg.Execute(context.Background(), "getLoanDetails", map[string]any{"loan_id": "l404"})
	assert.True(t, env.IsError())
	assert.Equal(t, CodeEntityNotFound, env.Code())
	assert.Equal(t, "loan", env["entity"])
	assert.Equal(t, "L404", env["entity_id"])
}

// Identifier normalization is idempotent: dirty and clean spellings of the
// same id validate to identical argument bags.
func TestRegistry_Validate_IDNormalizationIdempotent(t *testing.T) {
	reg := newLoanRegistry(t)

	dirty, errs, ok := reg.Validate("getLoanDetails", map[string]any{"loan_id": "l001 "})
	assert.True(t, ok)
	assert.Empty(t, errs)

	clean, errs, ok := reg.Validate("getLoanDetails", map[string]any{"loan_id": "L001"})
	assert.True(t, ok)
	assert.Empty(t, errs)

	assert.Equal(t, clean["loan_id"], dirty["loan_id"])
	assert.Equal(t, "L001", dirty["loan_id"])
}

// The normalized value is propagated to every alias the handler might read.
func TestRegistry_Validate_AliasPropagation(t *testing.T) {
	reg := newLoanRegistry(t)

	t.Run("canonical name fills alias", func(t *testing.T) {
		args, errs, ok := reg.Validate("getLoanDetails", map[string]any{"loan_id": " l002"})
		assert.True(t, ok)
		assert.Empty(t, errs)
		assert.Equal(t, "L002", args["loan_id"])
		assert.Equal(t, "L002", args["loanId"])
	})

	t.Run("alias fills canonical name", func(t *testing.T) {
		args, errs, ok := reg.Validate("getLoanDetails", map[string]any{"loanId": "l003"})
		assert.True(t, ok)
		assert.Empty(t, errs)
		assert.Equal(t, "L003", args["loan_id"])
		assert.Equal(t, "L003", args["loanId"])
	})
}

func TestRegistry_Validate_TypeChecking(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Descriptor{
		Name: "listLoans",
		Fields: []Field{
			{Name: "limit", Kind: KindInt},
			{Name: "status", Kind: KindString},
		},
	}, func(ctx context.Context, args Args) (any, error) { return nil, nil })

	t.Run("json number accepted as integral int", func(t *testing.T) {
		args, errs, ok := reg.Validate("listLoans", map[string]any{"limit": float64(25)})
		assert.True(t, ok)
		assert.Empty(t, errs)
		assert.Equal(t, 25, args["limit"])
	})

	t.Run("fractional number rejected for int", func(t *testing.T) {
		_, errs, ok := reg.Validate("listLoans", map[string]any{"limit": 2.5})
		assert.True(t, ok)
		assert.Len(t, errs, 1)
		assert.Equal(t, "limit", errs[0].Field)
	})

	t.Run("wrong primitive rejected", func(t *testing.T) {
		_, errs, ok := reg.Validate("listLoans", map[string]any{"status": 7.0})
		assert.True(t, ok)
		assert.Len(t, errs, 1)
	})

	t.Run("unknown operation", func(t *testing.T) {
		_, _, ok := reg.Validate("nope", map[string]any{})
		assert.False(t, ok)
	})
}

// List payloads stay an object by riding under "data".
func TestRegistry_Execute_ListPayloadWrapped(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Descriptor{Name: "listThings"}, func(context.Context, Args) (any, error) {
		return []string{"a", "b"}, nil
	})

	env := reg.Execute(context.Background(), "listThings", nil)
	assert.False(t, env.IsError())
	assert.Equal(t, []any{"a", "b"}, env["data"])
}
