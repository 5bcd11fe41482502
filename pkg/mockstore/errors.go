package mockstore

import (
	"errors"
	"fmt"
)

// ErrReadOnly is returned when a write is attempted inside Store.View.
var ErrReadOnly = errors.New("mockstore: write inside read-only transaction")

// NotFoundError is returned when a collection or record is not found.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
	}
	return fmt.Sprintf("collection %q not found", e.Collection)
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *NotFoundError) Hint() string {
	if e.ID != "" {
		return fmt.Sprintf("Check that id %q exists in %s. List the collection to see available ids.", e.ID, e.Collection)
	}
	return fmt.Sprintf("Collection %q is not registered with the mock store.", e.Collection)
}

// ConflictError is returned when a record with the same id already exists.
type ConflictError struct {
	Collection string
	ID         string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Collection, e.ID)
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ConflictError) Hint() string {
	return fmt.Sprintf("Record %q already exists. Update it instead or omit the id.", e.ID)
}

// ValidationError is returned when input validation fails.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return e.Message
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ValidationError) Hint() string {
	if e.Field != "" {
		return fmt.Sprintf("Check the value of %q in the operation variables.", e.Field)
	}
	return "Check the operation variables and required fields."
}

// HintError is implemented by errors that provide resolution hints.
type HintError interface {
	error
	Hint() string
}

// HintOf returns the hint carried by err, or "".
func HintOf(err error) string {
	var h HintError
	if errors.As(err, &h) {
		return h.Hint()
	}
	return ""
}
