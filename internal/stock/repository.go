package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockguard/internal/apperr"
	"stockguard/internal/models"
)

// Order is the lot traversal order.
type Order int

const (
	// FIFO walks oldest lots first. Used for deduction.
	FIFO Order = iota
	// LIFO walks newest lots first. Used for restoration.
	LIFO
)

func (o Order) String() string {
	if o == LIFO {
		return "LIFO"
	}
	return "FIFO"
}

func ParseOrder(s string) (Order, error) {
	switch strings.ToUpper(s) {
	case "", "FIFO":
		return FIFO, nil
	case "LIFO":
		return LIFO, nil
	}
	return FIFO, fmt.Errorf("order %q: %w", s, apperr.ErrInvalid)
}

type LotQuery struct {
	EstablishmentID string
	ProductID       string
	Order           Order
	OnlyAvailable   bool // quantity > 0
}

// Repository is what the deduction and restoration engines persist through.
type Repository interface {
	SelectLots(ctx context.Context, q LotQuery) ([]models.StockLot, error)
	InsertLot(ctx context.Context, lot *models.StockLot) error
	// UpdateLotQuantity stores quantity only if lot.Version is still current,
	// then bumps lot.Version. A stale version yields ErrConcurrentUpdate.
	UpdateLotQuantity(ctx context.Context, lot *models.StockLot, quantity float64) error
	Product(ctx context.Context, establishmentID, productID string) (*models.Product, error)
	// WithinTx runs fn against a repository bound to a single transaction.
	WithinTx(ctx context.Context, fn func(Repository) error) error
}

// Queries are the read models behind the stock endpoints.
type Queries interface {
	Repository
	ActiveProducts(ctx context.Context, establishmentID string) ([]models.Product, error)
	AvailableLots(ctx context.Context, establishmentID string) ([]models.StockLot, error)
	ExpiringLots(ctx context.Context, establishmentID string, before time.Time) ([]models.StockLot, error)
}
