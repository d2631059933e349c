package stock

import (
	"context"
	"errors"
	"fmt"
	"math"

	"stockguard/internal/lock"
	"stockguard/internal/models"
	"stockguard/internal/unit"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// epsilon absorbs float noise when checking whether demand is fully met.
const epsilon = 1e-9

// Demand is what one portion consumes of a product, in Unit.
type Demand struct {
	ProductID string
	Quantity  float64
	Unit      string
}

func DemandsFor(ingredients []models.Ingredient) []Demand {
	out := make([]Demand, 0, len(ingredients))
	for _, ing := range ingredients {
		out = append(out, Demand{ProductID: ing.ProductID, Quantity: ing.Quantity, Unit: ing.Unit})
	}
	return out
}

// Shortfall is demand that no lot could cover, expressed in Unit.
type Shortfall struct {
	ProductID string  `json:"product_id"`
	Missing   float64 `json:"missing"`
	Unit      string  `json:"unit"`
}

// Report describes the outcome of a deduction.
type Report struct {
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
}

func (r Report) Complete() bool { return len(r.Shortfalls) == 0 }

// Engine moves quantities in and out of stock lots.
// Each product is handled under its own lock and transaction, and lot writes are
// version-checked, so concurrent sales cannot lose updates.
type Engine struct {
	repo       Repository
	conv       *unit.Converter
	locker     lock.Locker
	log        *zap.Logger
	maxRetries int
}

func NewEngine(repo Repository, conv *unit.Converter, locker lock.Locker, log *zap.Logger, maxRetries int) *Engine {
	if locker == nil {
		locker = lock.Nop{}
	}
	return &Engine{
		repo:       repo,
		conv:       conv,
		locker:     locker,
		log:        log.Named("stock"),
		maxRetries: max(maxRetries, 1),
	}
}

// Deduct removes demand × quantity from the lots of every product, oldest lots first.
// Missing stock is reported, not created. A failure on one product does not stop
// the others; all failures are returned together.
func (e *Engine) Deduct(ctx context.Context, establishmentID string, demands []Demand, quantity float64) (Report, error) {
	var report Report
	if err := checkQuantity(quantity); err != nil {
		return report, err
	}

	var merr *multierror.Error
	for _, d := range demands {
		sf, err := e.deductOne(ctx, establishmentID, d, quantity)
		if err != nil {
			e.log.Error("stock deduction failed",
				zap.String("establishment_id", establishmentID),
				zap.String("product_id", d.ProductID),
				zap.Error(err),
			)
			merr = multierror.Append(merr, fmt.Errorf("deduct product %s: %w", d.ProductID, err))
			continue
		}
		if sf != nil {
			e.log.Warn("insufficient stock",
				zap.String("establishment_id", establishmentID),
				zap.String("product_id", sf.ProductID),
				zap.Float64("missing", sf.Missing),
				zap.String("unit", sf.Unit),
			)
			report.Shortfalls = append(report.Shortfalls, *sf)
		}
	}
	return report, merr.ErrorOrNil()
}

func (e *Engine) deductOne(ctx context.Context, establishmentID string, d Demand, quantity float64) (*Shortfall, error) {
	required := d.Quantity * quantity

	var shortfall *Shortfall
	err := e.mutate(ctx, establishmentID, d.ProductID, func(tx Repository) error {
		shortfall = nil
		lots, err := SelectLots(ctx, tx, LotQuery{
			EstablishmentID: establishmentID,
			ProductID:       d.ProductID,
			Order:           FIFO,
			OnlyAvailable:   true,
		})
		if err != nil {
			return err
		}
		if len(lots) == 0 {
			shortfall = &Shortfall{ProductID: d.ProductID, Missing: required, Unit: d.Unit}
			return nil
		}

		stockUnit := lots[0].Unit
		remaining := e.conv.Convert(required, d.Unit, stockUnit)
		for i := range lots {
			if remaining <= epsilon {
				break
			}
			lot := &lots[i]
			// remaining is tracked in the first lot's unit
			available := e.conv.Convert(lot.Quantity, lot.Unit, stockUnit)
			if available <= 0 {
				continue
			}
			take := math.Min(remaining, available)
			left := math.Max(lot.Quantity-e.conv.Convert(take, stockUnit, lot.Unit), 0)
			if err := tx.UpdateLotQuantity(ctx, lot, left); err != nil {
				return fmt.Errorf("update lot %s: %w", lot.ID, err)
			}
			remaining -= take
		}
		if remaining > epsilon {
			shortfall = &Shortfall{ProductID: d.ProductID, Missing: remaining, Unit: stockUnit}
		}
		return nil
	})
	return shortfall, err
}

// Restore adds demand × quantity back. The whole amount goes to the newest lot of each
// product; a product without lots gets a fresh lot with a zero unit price.
func (e *Engine) Restore(ctx context.Context, establishmentID string, demands []Demand, quantity float64) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}

	var merr *multierror.Error
	for _, d := range demands {
		if err := e.restoreOne(ctx, establishmentID, d, quantity); err != nil {
			e.log.Error("stock restoration failed",
				zap.String("establishment_id", establishmentID),
				zap.String("product_id", d.ProductID),
				zap.Error(err),
			)
			merr = multierror.Append(merr, fmt.Errorf("restore product %s: %w", d.ProductID, err))
		}
	}
	return merr.ErrorOrNil()
}

func (e *Engine) restoreOne(ctx context.Context, establishmentID string, d Demand, quantity float64) error {
	total := d.Quantity * quantity

	return e.mutate(ctx, establishmentID, d.ProductID, func(tx Repository) error {
		lots, err := SelectLots(ctx, tx, LotQuery{
			EstablishmentID: establishmentID,
			ProductID:       d.ProductID,
			Order:           LIFO,
		})
		if err != nil {
			return err
		}

		if len(lots) == 0 {
			product, err := tx.Product(ctx, establishmentID, d.ProductID)
			if err != nil {
				return err
			}
			lot := &models.StockLot{
				EstablishmentID: establishmentID,
				ProductID:       d.ProductID,
				Quantity:        e.conv.Convert(total, d.Unit, product.Unit),
				Unit:            product.Unit,
				UnitPrice:       decimal.Zero,
			}
			if err := tx.InsertLot(ctx, lot); err != nil {
				return fmt.Errorf("insert lot: %w", err)
			}
			e.log.Info("restored stock into a new lot",
				zap.String("product_id", d.ProductID),
				zap.String("lot_id", lot.ID),
				zap.Float64("quantity", lot.Quantity),
			)
			return nil
		}

		newest := &lots[0]
		add := e.conv.Convert(total, d.Unit, newest.Unit)
		if err := tx.UpdateLotQuantity(ctx, newest, newest.Quantity+add); err != nil {
			return fmt.Errorf("update lot %s: %w", newest.ID, err)
		}
		return nil
	})
}

// Shortfalls reports, without writing anything, which demands the current lots cannot cover.
func (e *Engine) Shortfalls(ctx context.Context, establishmentID string, demands []Demand, quantity float64) ([]Shortfall, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	// a recipe may list the same product twice
	needed := make(map[string]float64)
	units := make(map[string]string)
	var order []string
	for _, d := range demands {
		lots, err := SelectLots(ctx, e.repo, LotQuery{
			EstablishmentID: establishmentID,
			ProductID:       d.ProductID,
			Order:           FIFO,
			OnlyAvailable:   true,
		})
		if err != nil {
			return nil, err
		}
		u, ok := units[d.ProductID]
		if !ok {
			u = d.Unit
			if len(lots) > 0 {
				u = lots[0].Unit
			}
			units[d.ProductID] = u
			order = append(order, d.ProductID)
			var have float64
			for _, l := range lots {
				have += e.conv.Convert(l.Quantity, l.Unit, u)
			}
			needed[d.ProductID] = -have
		}
		needed[d.ProductID] += e.conv.Convert(d.Quantity*quantity, d.Unit, u)
	}

	var out []Shortfall
	for _, id := range order {
		if missing := needed[id]; missing > epsilon {
			out = append(out, Shortfall{ProductID: id, Missing: missing, Unit: units[id]})
		}
	}
	return out, nil
}

// mutate runs fn under the product lock inside a transaction, retrying version conflicts.
// A contended or unreachable lock does not skip the write: row locks and the version
// check still serialize it.
func (e *Engine) mutate(ctx context.Context, establishmentID, productID string, fn func(Repository) error) error {
	release, err := e.locker.Acquire(ctx, lock.StockKey(establishmentID, productID))
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		e.log.Warn("stock lock not acquired, relying on version check",
			zap.String("establishment_id", establishmentID),
			zap.String("product_id", productID),
			zap.Error(err),
		)
		release = func() {}
	case err != nil:
		return fmt.Errorf("acquire stock lock: %w", err)
	}
	defer release()

	for attempt := 1; ; attempt++ {
		err := e.repo.WithinTx(ctx, fn)
		if err == nil || !errors.Is(err, ErrConcurrentUpdate) || attempt >= e.maxRetries {
			return err
		}
		e.log.Debug("retrying after concurrent lot update",
			zap.String("product_id", productID),
			zap.Int("attempt", attempt),
		)
	}
}

func checkQuantity(q float64) error {
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
