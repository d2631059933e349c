package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockguard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository implements Repository and Queries on top of gorm.
type GormRepository struct {
	db   *gorm.DB
	inTx bool
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) SelectLots(ctx context.Context, q LotQuery) ([]models.StockLot, error) {
	dir := "ASC"
	if q.Order == LIFO {
		dir = "DESC"
	}

	dbq := r.db.WithContext(ctx).
		Where("establishment_id = ? AND product_id = ?", q.EstablishmentID, q.ProductID)
	if q.OnlyAvailable {
		dbq = dbq.Where("quantity > 0")
	}
	if r.inTx {
		// SQLite ignores row locks, the version check still applies there
		dbq = dbq.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var lots []models.StockLot
	if err := dbq.Order("created_at " + dir).Order("id " + dir).Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *GormRepository) InsertLot(ctx context.Context, lot *models.StockLot) error {
	return r.db.WithContext(ctx).Create(lot).Error
}

func (r *GormRepository) UpdateLotQuantity(ctx context.Context, lot *models.StockLot, quantity float64) error {
	res := r.db.WithContext(ctx).
		Model(&models.StockLot{}).
		Where("id = ? AND establishment_id = ? AND version = ?", lot.ID, lot.EstablishmentID, lot.Version).
		Updates(map[string]any{
			"quantity": quantity,
			"version":  lot.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("lot %s version %d: %w", lot.ID, lot.Version, ErrConcurrentUpdate)
	}
	lot.Quantity = quantity
	lot.Version++
	return nil
}

func (r *GormRepository) Product(ctx context.Context, establishmentID, productID string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND establishment_id = ?", productID, establishmentID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepository) WithinTx(ctx context.Context, fn func(Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx, inTx: true})
	})
}

func (r *GormRepository) ActiveProducts(ctx context.Context, establishmentID string) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("establishment_id = ? AND active = ?", establishmentID, true).
		Order("name ASC").
		Find(&products).Error
	return products, err
}

func (r *GormRepository) AvailableLots(ctx context.Context, establishmentID string) ([]models.StockLot, error) {
	var lots []models.StockLot
	err := r.db.WithContext(ctx).
		Where("establishment_id = ? AND quantity > 0", establishmentID).
		Order("created_at ASC").
		Find(&lots).Error
	return lots, err
}

func (r *GormRepository) ExpiringLots(ctx context.Context, establishmentID string, before time.Time) ([]models.StockLot, error) {
	var lots []models.StockLot
	err := r.db.WithContext(ctx).
		Where("establishment_id = ? AND quantity > 0 AND expires_at IS NOT NULL AND expires_at <= ?", establishmentID, before).
		Order("expires_at ASC").
		Find(&lots).Error
	return lots, err
}
