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

var maxVATRate = decimal.NewFromInt(1)

// buildIngredients checks every link against the establishment's products.
func (s *Service) buildIngredients(ctx context.Context, tx *gorm.DB, establishmentID string, in []IngredientInput) ([]models.Ingredient, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("at least one ingredient is required: %w", apperr.ErrInvalid)
	}

	out := make([]models.Ingredient, 0, len(in))
	for i, ing := range in {
		if math.IsNaN(ing.Quantity) || math.IsInf(ing.Quantity, 0) || ing.Quantity <= 0 {
			return nil, fmt.Errorf("ingredient %d: quantity must be positive: %w", i, apperr.ErrInvalid)
		}
		var p models.Product
		err := tx.WithContext(ctx).
			Where("id = ? AND establishment_id = ? AND active = ?", ing.ProductID, establishmentID, true).
			First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ingredient %d: %w: %s", i, ErrProductNotFound, ing.ProductID)
		}
		if err != nil {
			return nil, err
		}

		u := strings.TrimSpace(ing.Unit)
		if u == "" {
			u = p.Unit
		}
		if _, ok := unit.Factor(u, p.Unit); !ok {
			return nil, fmt.Errorf("ingredient %d: unit %q cannot be converted to %q: %w", i, u, p.Unit, apperr.ErrInvalid)
		}
		out = append(out, models.Ingredient{ProductID: p.ID, Quantity: ing.Quantity, Unit: u})
	}
	return out, nil
}

func (in *MenuItemInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return fmt.Errorf("name is required: %w", apperr.ErrInvalid)
	case in.Price.IsNegative():
		return fmt.Errorf("price must not be negative: %w", apperr.ErrInvalid)
	case in.VATRate.IsNegative() || in.VATRate.GreaterThanOrEqual(maxVATRate):
		return fmt.Errorf("vat_rate must be in [0,1): %w", apperr.ErrInvalid)
	}
	return nil
}

func (s *Service) CreateMenuItem(ctx context.Context, establishmentID string, in MenuItemInput) (*models.MenuItem, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	item := &models.MenuItem{
		EstablishmentID: establishmentID,
		Name:            in.Name,
		Price:           in.Price,
		VATRate:         in.VATRate,
		Active:          true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ings, err := s.buildIngredients(ctx, tx, establishmentID, in.Ingredients)
		if err != nil {
			return err
		}
		item.Ingredients = ings
		return tx.Create(item).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("menu item created",
		zap.String("establishment_id", establishmentID),
		zap.String("menu_item_id", item.ID),
		zap.Int("ingredients", len(item.Ingredients)),
	)
	return item, nil
}

func (s *Service) ListMenuItems(ctx context.Context, establishmentID string, includeInactive bool) ([]models.MenuItem, error) {
	dbq := s.db.WithContext(ctx).Preload("Ingredients").Where("establishment_id = ?", establishmentID)
	if !includeInactive {
		dbq = dbq.Where("active = ?", true)
	}
	var items []models.MenuItem
	if err := dbq.Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) GetMenuItem(ctx context.Context, establishmentID, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := s.db.WithContext(ctx).Preload("Ingredients").
		Where("id = ? AND establishment_id = ?", id, establishmentID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMenuItemNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateMenuItem replaces the item's fields and its whole recipe in one transaction.
// Past sales keep their recorded price; their stock effects follow the recipe at deletion time.
func (s *Service) UpdateMenuItem(ctx context.Context, establishmentID, id string, in MenuItemInput) (before, after *models.MenuItem, err error) {
	if err := in.normalize(); err != nil {
		return nil, nil, err
	}
	item, err := s.GetMenuItem(ctx, establishmentID, id)
	if err != nil {
		return nil, nil, err
	}
	prev := *item

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ings, err := s.buildIngredients(ctx, tx, establishmentID, in.Ingredients)
		if err != nil {
			return err
		}
		if err := tx.Where("menu_item_id = ?", item.ID).Delete(&models.Ingredient{}).Error; err != nil {
			return fmt.Errorf("delete ingredients: %w", err)
		}
		for i := range ings {
			ings[i].MenuItemID = item.ID
		}
		if err := tx.Create(&ings).Error; err != nil {
			return fmt.Errorf("create ingredients: %w", err)
		}
		err = tx.Model(&models.MenuItem{}).Where("id = ?", item.ID).Updates(map[string]any{
			"name":     in.Name,
			"price":    in.Price,
			"vat_rate": in.VATRate,
		}).Error
		if err != nil {
			return fmt.Errorf("update menu item: %w", err)
		}
		item.Name, item.Price, item.VATRate, item.Ingredients = in.Name, in.Price, in.VATRate, ings
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &prev, item, nil
}

func (s *Service) DeactivateMenuItem(ctx context.Context, establishmentID, id string) (*models.MenuItem, error) {
	item, err := s.GetMenuItem(ctx, establishmentID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.MenuItem{}).Where("id = ?", item.ID).Update("active", false).Error; err != nil {
		return nil, fmt.Errorf("deactivate menu item: %w", err)
	}
	item.Active = false
	return item, nil
}
