// Package waste records stock lost to breakage, spoilage or mistakes and takes it out of the lots.
package waste

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"stockguard/internal/apperr"
	"stockguard/internal/lock"
	"stockguard/internal/models"
	"stockguard/internal/stock"
	"stockguard/internal/unit"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrEntryNotFound = fmt.Errorf("waste entry %w", apperr.ErrNotFound)

// Inventory moves the wasted quantity out of and back into stock lots.
type Inventory interface {
	Deduct(ctx context.Context, establishmentID string, demands []stock.Demand, quantity float64) (stock.Report, error)
	Restore(ctx context.Context, establishmentID string, demands []stock.Demand, quantity float64) error
}

type Input struct {
	ProductID string
	Quantity  float64
	Unit      string // defaults to the product unit
	Note      string // who or what caused the loss
	Date      time.Time
}

// Outcome mirrors a sale receipt: the entry is kept even if stock could not follow.
type Outcome struct {
	Entry      *models.WasteEntry
	Shortfalls []stock.Shortfall
	StockError error
}

type Service struct {
	db     *gorm.DB
	inv    Inventory
	locker lock.Locker
	log    *zap.Logger
}

func NewService(db *gorm.DB, inv Inventory, locker lock.Locker, log *zap.Logger) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Service{db: db, inv: inv, locker: locker, log: log.Named("waste")}
}

func demandOf(e *models.WasteEntry) []stock.Demand {
	return []stock.Demand{{ProductID: e.ProductID, Quantity: e.Quantity, Unit: e.Unit}}
}

func (s *Service) Create(ctx context.Context, establishmentID, userID string, in Input) (*Outcome, error) {
	in.Note = strings.TrimSpace(in.Note)
	switch {
	case math.IsNaN(in.Quantity) || math.IsInf(in.Quantity, 0) || in.Quantity <= 0:
		return nil, stock.ErrInvalidQuantity
	case len(in.Note) < 3:
		return nil, fmt.Errorf("note must be at least 3 characters: %w", apperr.ErrInvalid)
	case in.Date.IsZero():
		return nil, fmt.Errorf("date is required: %w", apperr.ErrInvalid)
	}

	var product models.Product
	err := s.db.WithContext(ctx).
		Where("id = ? AND establishment_id = ?", in.ProductID, establishmentID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", stock.ErrProductNotFound, in.ProductID)
	}
	if err != nil {
		return nil, err
	}

	u := strings.TrimSpace(in.Unit)
	if u == "" {
		u = product.Unit
	}
	if _, ok := unit.Factor(u, product.Unit); !ok {
		return nil, fmt.Errorf("unit %q cannot be converted to %q: %w", u, product.Unit, apperr.ErrInvalid)
	}

	entry := &models.WasteEntry{
		EstablishmentID: establishmentID,
		ProductID:       product.ID,
		UserID:          userID,
		Date:            in.Date.UTC(),
		Quantity:        in.Quantity,
		Unit:            u,
		Note:            in.Note,
	}
	if err := s.db.WithContext(ctx).Omit("Product").Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create waste entry: %w", err)
	}
	entry.Product = &product

	out := &Outcome{Entry: entry}
	report, err := s.inv.Deduct(ctx, establishmentID, demandOf(entry), 1)
	out.Shortfalls = report.Shortfalls
	if err != nil {
		s.log.Error("waste recorded but stock deduction failed",
			zap.String("waste_entry_id", entry.ID),
			zap.Error(err),
		)
		out.StockError = err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, establishmentID, id string) (*models.WasteEntry, error) {
	var e models.WasteEntry
	err := s.db.WithContext(ctx).Preload("Product").
		Where("id = ? AND establishment_id = ?", id, establishmentID).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns entries dated in [from, to], newest first. Zero bounds are open.
func (s *Service) List(ctx context.Context, establishmentID string, from, to time.Time) ([]models.WasteEntry, error) {
	dbq := s.db.WithContext(ctx).Preload("Product").Where("establishment_id = ?", establishmentID)
	if !from.IsZero() {
		dbq = dbq.Where("date >= ?", from.UTC())
	}
	if !to.IsZero() {
		dbq = dbq.Where("date <= ?", to.UTC())
	}
	var entries []models.WasteEntry
	if err := dbq.Order("date DESC, created_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete gives the quantity back to the newest lot, then removes the entry.
// Concurrent deletions of one entry restore its quantity once.
func (s *Service) Delete(ctx context.Context, establishmentID, id string) (*Outcome, error) {
	release, err := s.locker.Acquire(ctx, lock.WasteKey(establishmentID, id))
	if err != nil {
		return nil, fmt.Errorf("acquire waste lock: %w", err)
	}
	defer release()

	e, err := s.Get(ctx, establishmentID, id)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Entry: e}
	if err := s.inv.Restore(ctx, establishmentID, demandOf(e), 1); err != nil {
		s.log.Error("waste stock restoration failed",
			zap.String("waste_entry_id", e.ID),
			zap.Error(err),
		)
		out.StockError = fmt.Errorf("restore stock: %w", err)
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND establishment_id = ?", e.ID, establishmentID).
		Delete(&models.WasteEntry{})
	if res.Error != nil {
		return nil, errors.Join(fmt.Errorf("delete waste entry: %w", res.Error), out.StockError)
	}
	if res.RowsAffected == 0 {
		return nil, errors.Join(fmt.Errorf("%w: %s", ErrEntryNotFound, e.ID), out.StockError)
	}
	return out, nil
}
