// Package apperr holds the error kinds shared by every domain package.
// Domain errors wrap one of these so the HTTP layer can pick a status code.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
	ErrConflict = errors.New("conflict")
)
