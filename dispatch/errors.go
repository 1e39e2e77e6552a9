package dispatch

import "fmt"

// NotFoundError signals business-level absence of an entity. Handlers return
// it explicitly so the registry classifies by type, never by message text.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}
