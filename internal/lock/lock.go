// Package lock serializes stock mutations per establishment and product.
package lock

import (
	"context"
	"fmt"
	"sync"

	"stockguard/internal/apperr"
)

var ErrNotAcquired = fmt.Errorf("system busy, please try again later: %w", apperr.ErrConflict)

// Locker hands out exclusive locks by key. release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// StockKey is the lock key guarding the lots of one product.
func StockKey(establishmentID, productID string) string {
	return fmt.Sprintf("lock:stock:%s:%s", establishmentID, productID)
}

// SaleKey guards the deletion of one sale.
func SaleKey(establishmentID, saleID string) string {
	return fmt.Sprintf("lock:sale:%s:%s", establishmentID, saleID)
}

// WasteKey guards the deletion of one waste entry.
func WasteKey(establishmentID, entryID string) string {
	return fmt.Sprintf("lock:waste:%s:%s", establishmentID, entryID)
}

// Local is an in-process keyed mutex, used when no Redis is configured.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Nop never blocks.
type Nop struct{}

func (Nop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
