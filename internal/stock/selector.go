package stock

import (
	"context"
	"fmt"
	"math"
	"sort"

	"stockguard/internal/models"
)

// SelectLots returns the lots of one product in q.Order, validated.
// An empty slice means the product has no lots; callers decide what that implies.
func SelectLots(ctx context.Context, repo Repository, q LotQuery) ([]models.StockLot, error) {
	rows, err := repo.SelectLots(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select lots of product %s: %w", q.ProductID, err)
	}

	lots := make([]models.StockLot, 0, len(rows))
	for _, l := range rows {
		if err := validateLot(l, q); err != nil {
			return nil, err
		}
		if q.OnlyAvailable && l.Quantity <= 0 {
			continue
		}
		lots = append(lots, l)
	}
	sortLots(lots, q.Order)
	return lots, nil
}

func validateLot(l models.StockLot, q LotQuery) error {
	switch {
	case l.ID == "" || l.ProductID == "":
		return fmt.Errorf("%w: missing id or product", ErrMalformedRow)
	case l.ProductID != q.ProductID || l.EstablishmentID != q.EstablishmentID:
		return fmt.Errorf("%w: lot %s does not belong to product %s", ErrMalformedRow, l.ID, q.ProductID)
	case math.IsNaN(l.Quantity) || math.IsInf(l.Quantity, 0) || l.Quantity < 0:
		return fmt.Errorf("%w: lot %s has quantity %v", ErrMalformedRow, l.ID, l.Quantity)
	case l.Unit == "":
		return fmt.Errorf("%w: lot %s has no unit", ErrMalformedRow, l.ID)
	}
	return nil
}

func sortLots(lots []models.StockLot, o Order) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if o == LIFO {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if o == LIFO {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}
