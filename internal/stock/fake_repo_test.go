package stock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockguard/internal/models"
)

// fakeRepo is an in-memory Repository. WithinTx rolls back on error.
type fakeRepo struct {
	mu         sync.Mutex
	lots       map[string]models.StockLot
	products   map[string]models.Product
	failUpdate map[string]error // lot id -> error returned by UpdateLotQuantity
	conflicts  int              // number of forced version conflicts left
	updates    int
	seq        int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		lots:       make(map[string]models.StockLot),
		products:   make(map[string]models.Product),
		failUpdate: make(map[string]error),
	}
}

func (f *fakeRepo) addProduct(est, id, unit string) {
	f.products[id] = models.Product{
		Model:           models.Model{ID: id},
		EstablishmentID: est,
		Name:            id,
		Unit:            unit,
		Active:          true,
	}
}

func (f *fakeRepo) addLot(est, id, product string, qty float64, unit string, created time.Time) {
	f.lots[id] = models.StockLot{
		Model:           models.Model{ID: id, CreatedAt: created},
		EstablishmentID: est,
		ProductID:       product,
		Quantity:        qty,
		Unit:            unit,
	}
}

func (f *fakeRepo) lot(id string) models.StockLot {
	return f.lots[id]
}

func (f *fakeRepo) lotsOf(product string) []models.StockLot {
	var out []models.StockLot
	for _, l := range f.lots {
		if l.ProductID == product {
			out = append(out, l)
		}
	}
	return out
}

func (f *fakeRepo) SelectLots(_ context.Context, q LotQuery) ([]models.StockLot, error) {
	var out []models.StockLot
	for _, l := range f.lots {
		if l.EstablishmentID != q.EstablishmentID || l.ProductID != q.ProductID {
			continue
		}
		if q.OnlyAvailable && l.Quantity <= 0 {
			continue
		}
		out = append(out, l)
	}
	// map order is random, SelectLots sorts
	return out, nil
}

func (f *fakeRepo) InsertLot(_ context.Context, lot *models.StockLot) error {
	f.seq++
	if lot.ID == "" {
		lot.ID = fmt.Sprintf("new-%d", f.seq)
	}
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC()
	}
	f.lots[lot.ID] = *lot
	return nil
}

func (f *fakeRepo) UpdateLotQuantity(_ context.Context, lot *models.StockLot, quantity float64) error {
	if err := f.failUpdate[lot.ID]; err != nil {
		return err
	}
	cur, ok := f.lots[lot.ID]
	if !ok || cur.Version != lot.Version {
		return ErrConcurrentUpdate
	}
	if f.conflicts > 0 {
		f.conflicts--
		return ErrConcurrentUpdate
	}
	f.updates++
	cur.Quantity = quantity
	cur.Version++
	f.lots[lot.ID] = cur
	lot.Quantity = quantity
	lot.Version = cur.Version
	return nil
}

func (f *fakeRepo) Product(_ context.Context, est, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok || p.EstablishmentID != est {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (f *fakeRepo) WithinTx(ctx context.Context, fn func(Repository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := make(map[string]models.StockLot, len(f.lots))
	for k, v := range f.lots {
		snapshot[k] = v
	}
	if err := fn(f); err != nil {
		f.lots = snapshot
		return err
	}
	return nil
}
