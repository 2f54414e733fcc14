package service

import (
	"errors"

	"github.com/iyhunko/product-catalog/internal/repository"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when the referenced product does not exist.
	ErrNotFound = repository.ErrNotFound
)

// ValidationError carries the client-facing reason a request was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
