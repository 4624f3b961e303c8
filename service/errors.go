package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("task was modified by another request")
	ErrIllegalState = errors.New("illegal status transition")
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field         string      `json:"field"`
	Message       string      `json:"message"`
	RejectedValue interface{} `json:"rejectedValue"`
}

// ValidationError carries every offending field; errors.Is(err, ErrValidation) holds.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func notFound(id int64) error {
	return fmt.Errorf("%w with id: %d", ErrNotFound, id)
}
