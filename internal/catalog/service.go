// Package catalog manages the products an establishment stocks and the menu items it sells.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"stockguard/internal/apperr"
	"stockguard/internal/models"
	"stockguard/internal/unit"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound  = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrMenuItemNotFound = fmt.Errorf("menu item %w", apperr.ErrNotFound)
	ErrDuplicateName    = fmt.Errorf("name already used: %w", apperr.ErrConflict)
)

type ProductInput struct {
	Name     string                 `json:"name"`
	Category models.ProductCategory `json:"category"`
	Unit     string                 `json:"unit"`
	MinStock float64                `json:"min_stock"`
	Icon     string                 `json:"icon"`
}

type IngredientInput struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit"`
}

type MenuItemInput struct {
	Name        string            `json:"name"`
	Price       decimal.Decimal   `json:"price"`
	VATRate     decimal.Decimal   `json:"vat_rate"`
	Ingredients []IngredientInput `json:"ingredients"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("catalog")}
}

func (in *ProductInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	switch {
	case in.Name == "":
		return fmt.Errorf("name is required: %w", apperr.ErrInvalid)
	case !in.Category.Valid():
		return fmt.Errorf("category must be frozen, fresh or dry: %w", apperr.ErrInvalid)
	case !unit.Known(in.Unit):
		return fmt.Errorf("unit %q is not supported: %w", in.Unit, apperr.ErrInvalid)
	case math.IsNaN(in.MinStock) || in.MinStock < 0:
		return fmt.Errorf("min_stock must not be negative: %w", apperr.ErrInvalid)
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, establishmentID string, in ProductInput) (*models.Product, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := s.checkProductName(ctx, establishmentID, "", in.Name); err != nil {
		return nil, err
	}

	p := &models.Product{
		EstablishmentID: establishmentID,
		Name:            in.Name,
		Category:        in.Category,
		Unit:            in.Unit,
		MinStock:        in.MinStock,
		Icon:            in.Icon,
		Active:          true,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context, establishmentID string, includeInactive bool) ([]models.Product, error) {
	dbq := s.db.WithContext(ctx).Where("establishment_id = ?", establishmentID)
	if !includeInactive {
		dbq = dbq.Where("active = ?", true)
	}
	var products []models.Product
	if err := dbq.Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, establishmentID, id string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).
		Where("id = ? AND establishment_id = ?", id, establishmentID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct renames or recategorizes a product. Existing lots keep their own unit,
// so the unit may only change within its dimension (kg to g, never kg to units).
func (s *Service) UpdateProduct(ctx context.Context, establishmentID, id string, in ProductInput) (before, after *models.Product, err error) {
	if err := in.normalize(); err != nil {
		return nil, nil, err
	}
	p, err := s.GetProduct(ctx, establishmentID, id)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := unit.Factor(p.Unit, in.Unit); !ok {
		return nil, nil, fmt.Errorf("unit cannot change from %q to %q: %w", p.Unit, in.Unit, apperr.ErrInvalid)
	}
	if err := s.checkProductName(ctx, establishmentID, id, in.Name); err != nil {
		return nil, nil, err
	}

	prev := *p
	p.Name = in.Name
	p.Category = in.Category
	p.Unit = in.Unit
	p.MinStock = in.MinStock
	p.Icon = in.Icon
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, nil, fmt.Errorf("update product: %w", err)
	}
	return &prev, p, nil
}

// DeactivateProduct hides a product without deleting it; lots, sales and recipes keep their reference.
func (s *Service) DeactivateProduct(ctx context.Context, establishmentID, id string) (*models.Product, error) {
	p, err := s.GetProduct(ctx, establishmentID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(p).Update("active", false).Error; err != nil {
		return nil, fmt.Errorf("deactivate product: %w", err)
	}
	p.Active = false
	return p, nil
}

func (s *Service) checkProductName(ctx context.Context, establishmentID, selfID, name string) error {
	var count int64
	dbq := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("establishment_id = ? AND active = ? AND LOWER(name) = ?", establishmentID, true, strings.ToLower(name))
	if selfID != "" {
		dbq = dbq.Where("id <> ?", selfID)
	}
	if err := dbq.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	return nil
}
