package service

import (
	"errors"
	"fmt"

	"caja/backend/internal/store"
)

var ErrAdminRequired = errors.New("admin role required")

// ValidationError names the offending field. It matches
// store.ErrInvalidTransaction so callers can map it to a 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == store.ErrInvalidTransaction
}

func invalid(field string, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type UniquenessConflictError struct {
	Field string
	Value string
}

func (e *UniquenessConflictError) Error() string {
	switch e.Field {
	case "document_id":
		return fmt.Sprintf("ya existe un usuario con el documento %s", e.Value)
	case "email":
		return fmt.Sprintf("el correo %s ya está en uso", e.Value)
	default:
		return fmt.Sprintf("%s %s already exists", e.Field, e.Value)
	}
}

func (e *UniquenessConflictError) Is(target error) bool {
	return target == store.ErrConflict
}
