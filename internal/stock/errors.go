package stock

import (
	"errors"
	"fmt"

	"stockguard/internal/apperr"
)

var (
	ErrProductNotFound   = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrInsufficientStock = fmt.Errorf("insufficient stock: %w", apperr.ErrConflict)
	ErrInvalidQuantity   = fmt.Errorf("quantity must be a positive number: %w", apperr.ErrInvalid)

	// ErrConcurrentUpdate means a lot's version moved between read and write.
	ErrConcurrentUpdate = errors.New("stock lot was modified concurrently")
	// ErrMalformedRow is returned for lots that break the ledger invariants.
	ErrMalformedRow = errors.New("malformed stock lot")
)
