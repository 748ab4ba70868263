package services

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to the HTTP layer. Handlers map these to status
// codes; everything else is an internal error.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %s", ErrValidation, err)
}
