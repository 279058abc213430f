// Package stats derives summary counters from the committed execution
// record log. All state here is a deterministic fold over the records;
// nothing is mutated independently.
package stats

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/chainagent/chainagent/internal/execution"
)

// GlobalStats summarizes every committed swap.
type GlobalStats struct {
	Swaps      int64    `json:"swaps"`
	QuoteSpent int64    `json:"usdcSpent"`
	BaseBought *big.Int `json:"ethBought"`
}

// UserStats summarizes one user's position. AvailableToday is read
// live from the quota ledger, never stored here.
type UserStats struct {
	User           string   `json:"user"`
	Swaps          int64    `json:"swaps"`
	BaseAccrued    *big.Int `json:"ethAccumulated"`
	AvailableToday int64    `json:"availableToday"`
}

// QuotaReader is the slice of the quota ledger the aggregator needs.
type QuotaReader interface {
	AvailableToday(ctx context.Context, user string, now time.Time) (int64, error)
}

// Cache receives the global snapshot after each fold. Implementations
// are best-effort; a cache failure never fails a fold.
type Cache interface {
	StoreGlobal(ctx context.Context, stats *GlobalStats) error
}

type userAccum struct {
	swaps  int64
	accrue *big.Int
}

// Aggregator folds execution records into global and per-user
// counters.
type Aggregator struct {
	mu     sync.RWMutex
	quota  QuotaReader
	cache  Cache
	global GlobalStats
	users  map[string]*userAccum
	now    func() time.Time
}

func NewAggregator(quota QuotaReader) *Aggregator {
	return &Aggregator{
		quota:  quota,
		global: GlobalStats{BaseBought: new(big.Int)},
		users:  make(map[string]*userAccum),
		now:    time.Now,
	}
}

// SetCache wires an optional write-through cache for the global
// snapshot.
func (a *Aggregator) SetCache(c Cache) {
	a.cache = c
}

// SetNowFunc overrides the clock, for tests.
func (a *Aggregator) SetNowFunc(now func() time.Time) {
	a.now = now
}

var _ execution.Folder = (*Aggregator)(nil)

// Fold applies one committed record. It is called by the engine in
// commit order.
func (a *Aggregator) Fold(rec *execution.Record) {
	a.mu.Lock()
	a.global.Swaps++
	a.global.QuoteSpent += rec.AmountIn
	a.global.BaseBought.Add(a.global.BaseBought, rec.AmountOut)

	u, ok := a.users[rec.User]
	if !ok {
		u = &userAccum{accrue: new(big.Int)}
		a.users[rec.User] = u
	}
	u.swaps++
	u.accrue.Add(u.accrue, rec.AmountOut)
	snapshot := a.globalCopy()
	a.mu.Unlock()

	if a.cache != nil {
		if err := a.cache.StoreGlobal(context.Background(), snapshot); err != nil {
			slog.Warn("failed to cache global stats", "error", err)
		}
	}
}

// Rebuild replays the record log from scratch, replacing all derived
// state. Used during startup.
func (a *Aggregator) Rebuild(records []*execution.Record) {
	a.mu.Lock()
	a.global = GlobalStats{BaseBought: new(big.Int)}
	a.users = make(map[string]*userAccum)
	a.mu.Unlock()
	for _, rec := range records {
		a.Fold(rec)
	}
}

func (a *Aggregator) globalCopy() *GlobalStats {
	return &GlobalStats{
		Swaps:      a.global.Swaps,
		QuoteSpent: a.global.QuoteSpent,
		BaseBought: new(big.Int).Set(a.global.BaseBought),
	}
}

// Global returns a snapshot of the global counters.
func (a *Aggregator) Global(_ context.Context) *GlobalStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.globalCopy()
}

// User returns one user's counters with AvailableToday read live from
// the quota ledger. A user with no swaps and no permission gets a zero
// snapshot.
func (a *Aggregator) User(ctx context.Context, user string) (*UserStats, error) {
	a.mu.RLock()
	s := &UserStats{User: user, BaseAccrued: new(big.Int)}
	if u, ok := a.users[user]; ok {
		s.Swaps = u.swaps
		s.BaseAccrued.Set(u.accrue)
	}
	a.mu.RUnlock()

	if a.quota != nil {
		avail, err := a.quota.AvailableToday(ctx, user, a.now())
		if err == nil {
			s.AvailableToday = avail
		}
	}
	return s, nil
}
