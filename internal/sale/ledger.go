package sale

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"stockguard/internal/lock"
	"stockguard/internal/models"
	"stockguard/internal/stock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Inventory is the part of the stock engine the ledger drives.
type Inventory interface {
	Deduct(ctx context.Context, establishmentID string, demands []stock.Demand, quantity float64) (stock.Report, error)
	Restore(ctx context.Context, establishmentID string, demands []stock.Demand, quantity float64) error
	Shortfalls(ctx context.Context, establishmentID string, demands []stock.Demand, quantity float64) ([]stock.Shortfall, error)
}

// Policy controls how the ledger reacts to missing stock.
type Policy struct {
	// BlockOnInsufficientStock refuses a sale the lots cannot cover.
	// When false the sale is recorded and the shortfall only logged.
	BlockOnInsufficientStock bool
}

// Seller identifies who records a sale and for which establishment.
type Seller struct {
	EstablishmentID string
	UserID          string
}

// Receipt is the outcome of a recorded sale.
type Receipt struct {
	Sale       *models.Sale      `json:"sale"`
	Shortfalls []stock.Shortfall `json:"shortfalls,omitempty"`
	// StockError is set when the sale was kept but its deduction failed.
	StockError error `json:"-"`
}

type Ledger struct {
	repo   Repository
	inv    Inventory
	locker lock.Locker
	policy Policy
	log    *zap.Logger
	now    func() time.Time
}

// NewLedger builds a ledger. A nil locker serializes deletions within this process only.
func NewLedger(repo Repository, inv Inventory, locker lock.Locker, policy Policy, log *zap.Logger) *Ledger {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Ledger{
		repo:   repo,
		inv:    inv,
		locker: locker,
		policy: policy,
		log:    log.Named("sale"),
		now:    time.Now,
	}
}

// RecordSale stores a sale of quantity portions of a menu item, then deducts its
// ingredients from stock. Once the sale row exists it is kept even if the deduction fails.
func (l *Ledger) RecordSale(ctx context.Context, seller Seller, menuItemID string, quantity float64) (*Receipt, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return nil, stock.ErrInvalidQuantity
	}

	item, err := l.repo.MenuItem(ctx, seller.EstablishmentID, menuItemID)
	if err != nil {
		return nil, err
	}
	demands := stock.DemandsFor(item.Ingredients)

	if l.policy.BlockOnInsufficientStock {
		missing, err := l.inv.Shortfalls(ctx, seller.EstablishmentID, demands, quantity)
		if err != nil {
			return nil, fmt.Errorf("check stock: %w", err)
		}
		if len(missing) > 0 {
			l.log.Info("sale refused for insufficient stock",
				zap.String("establishment_id", seller.EstablishmentID),
				zap.String("menu_item_id", item.ID),
				zap.Float64("quantity", quantity),
				zap.Int("short_products", len(missing)),
			)
			return &Receipt{Shortfalls: missing}, stock.ErrInsufficientStock
		}
	}

	s := &models.Sale{
		EstablishmentID: seller.EstablishmentID,
		MenuItemID:      item.ID,
		UserID:          seller.UserID,
		Quantity:        quantity,
		UnitPrice:       item.Price,
		TotalPrice:      item.Price.Mul(decimal.NewFromFloat(quantity)).Round(2),
		VATRate:         item.VATRate,
		SoldAt:          l.now().UTC(),
	}
	if err := l.repo.InsertSale(ctx, s); err != nil {
		return nil, err
	}

	receipt := &Receipt{Sale: s}
	report, err := l.inv.Deduct(ctx, seller.EstablishmentID, demands, quantity)
	receipt.Shortfalls = report.Shortfalls
	if err != nil {
		l.log.Error("sale recorded but stock deduction failed",
			zap.String("sale_id", s.ID),
			zap.String("menu_item_id", item.ID),
			zap.Error(err),
		)
		receipt.StockError = err
	}

	l.log.Info("sale recorded",
		zap.String("sale_id", s.ID),
		zap.String("establishment_id", s.EstablishmentID),
		zap.String("menu_item_id", item.ID),
		zap.Float64("quantity", quantity),
		zap.String("total", s.TotalPrice.StringFixed(2)),
	)
	return receipt, nil
}

// Deletion is the outcome of a deleted sale.
type Deletion struct {
	Sale *models.Sale `json:"sale"`
	// StockError is set when the sale was deleted but its stock could not be restored.
	StockError error `json:"-"`
}

// DeleteSale puts the sale's ingredients back into stock and removes the sale.
// The sale is deleted even when restoration fails; the error is only returned
// when the sale itself could not be deleted. Concurrent deletions of one sale
// restore its stock once: the others find it gone.
func (l *Ledger) DeleteSale(ctx context.Context, establishmentID, saleID string) (*Deletion, error) {
	release, err := l.locker.Acquire(ctx, lock.SaleKey(establishmentID, saleID))
	if err != nil {
		return nil, fmt.Errorf("acquire sale lock: %w", err)
	}
	defer release()

	s, err := l.repo.Sale(ctx, establishmentID, saleID)
	if err != nil {
		return nil, err
	}

	d := &Deletion{Sale: s}
	if s.MenuItem == nil {
		l.log.Warn("sale has no menu item, nothing to restore", zap.String("sale_id", s.ID))
	} else if err := l.inv.Restore(ctx, establishmentID, stock.DemandsFor(s.MenuItem.Ingredients), s.Quantity); err != nil {
		l.log.Error("stock restoration failed",
			zap.String("sale_id", s.ID),
			zap.Error(err),
		)
		d.StockError = fmt.Errorf("restore stock: %w", err)
	}

	if err := l.repo.DeleteSale(ctx, establishmentID, s.ID); err != nil {
		return nil, errors.Join(err, d.StockError)
	}

	l.log.Info("sale deleted",
		zap.String("sale_id", s.ID),
		zap.String("establishment_id", establishmentID),
		zap.Bool("stock_restored", d.StockError == nil),
	)
	return d, nil
}

func (l *Ledger) Sales(ctx context.Context, establishmentID string, from, to time.Time) ([]models.Sale, error) {
	return l.repo.ListSales(ctx, establishmentID, from, to)
}
