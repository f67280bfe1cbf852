package models

import "errors"

// Error taxonomy shared across stores and services. Callers match with
// errors.Is; everything else is treated as a transient backend failure.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)
