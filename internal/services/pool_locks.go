package services

import (
	"context"
	"sync"
	"time"

	"wager-engine/internal/models"

	"github.com/google/uuid"
)

type lockKey struct {
	marketID uuid.UUID
	currency models.Currency
}

// LockTable serializes pool mutations per (market, currency). Bets on
// different markets, or different currencies of the same market, never block
// each other. Each key maps to a one-slot channel used as a mutex so that
// acquisition can be bounded by a timeout.
type LockTable struct {
	mu    sync.Mutex
	slots map[lockKey]chan struct{}
}

// NewLockTable creates an empty lock table. Place, cancel and resolve must
// share the same table or their critical sections will not exclude each other.
func NewLockTable() *LockTable {
	return &LockTable{slots: make(map[lockKey]chan struct{})}
}

func (l *LockTable) slot(key lockKey) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[key] = s
	}
	return s
}

// Acquire takes the lock for one (market, currency) unit, waiting at most
// wait. Returns the release func, or ErrLockTimeout so contended callers fail
// fast instead of queueing indefinitely.
func (l *LockTable) Acquire(ctx context.Context, marketID uuid.UUID, currency models.Currency, wait time.Duration) (func(), error) {
	s := l.slot(lockKey{marketID: marketID, currency: currency})

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcquireMarket takes every currency slot of a market, in the fixed
// AllCurrencies order so concurrent market-wide holders cannot deadlock.
// Resolution needs the whole market quiesced.
func (l *LockTable) AcquireMarket(ctx context.Context, marketID uuid.UUID, wait time.Duration) (func(), error) {
	var releases []func()

	rollback := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, currency := range models.AllCurrencies() {
		release, err := l.Acquire(ctx, marketID, currency, wait)
		if err != nil {
			rollback()
			return nil, err
		}
		releases = append(releases, release)
	}

	return rollback, nil
}
