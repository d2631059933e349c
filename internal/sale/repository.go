// Package sale records sales against the stock ledger and reports on them.
package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockguard/internal/apperr"
	"stockguard/internal/models"

	"gorm.io/gorm"
)

var (
	ErrSaleNotFound     = fmt.Errorf("sale %w", apperr.ErrNotFound)
	ErrMenuItemNotFound = fmt.Errorf("menu item %w", apperr.ErrNotFound)
)

// Repository is the ledger's persistence. Every lookup is scoped to an establishment.
type Repository interface {
	// MenuItem returns an active item with its ingredients.
	MenuItem(ctx context.Context, establishmentID, id string) (*models.MenuItem, error)
	InsertSale(ctx context.Context, s *models.Sale) error
	// Sale returns the sale with its menu item and ingredients.
	Sale(ctx context.Context, establishmentID, id string) (*models.Sale, error)
	DeleteSale(ctx context.Context, establishmentID, id string) error
	ListSales(ctx context.Context, establishmentID string, from, to time.Time) ([]models.Sale, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) MenuItem(ctx context.Context, establishmentID, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.db.WithContext(ctx).Preload("Ingredients").
		Where("id = ? AND establishment_id = ? AND active = ?", id, establishmentID, true).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMenuItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load menu item %s: %w", id, err)
	}
	return &item, nil
}

func (r *GormRepository) InsertSale(ctx context.Context, s *models.Sale) error {
	// the menu item is only a read-side association
	if err := r.db.WithContext(ctx).Omit("MenuItem").Create(s).Error; err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (r *GormRepository) Sale(ctx context.Context, establishmentID, id string) (*models.Sale, error) {
	var s models.Sale
	err := r.db.WithContext(ctx).
		Preload("MenuItem").
		Preload("MenuItem.Ingredients").
		Where("id = ? AND establishment_id = ?", id, establishmentID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSaleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load sale %s: %w", id, err)
	}
	return &s, nil
}

func (r *GormRepository) DeleteSale(ctx context.Context, establishmentID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND establishment_id = ?", id, establishmentID).
		Delete(&models.Sale{})
	if res.Error != nil {
		return fmt.Errorf("delete sale %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSaleNotFound, id)
	}
	return nil
}

// ListSales returns sales in [from, to], newest first. Zero bounds are open.
func (r *GormRepository) ListSales(ctx context.Context, establishmentID string, from, to time.Time) ([]models.Sale, error) {
	dbq := r.db.WithContext(ctx).Preload("MenuItem").Where("establishment_id = ?", establishmentID)
	if !from.IsZero() {
		dbq = dbq.Where("sold_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		dbq = dbq.Where("sold_at <= ?", to.UTC())
	}
	var sales []models.Sale
	if err := dbq.Order("sold_at DESC").Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}
