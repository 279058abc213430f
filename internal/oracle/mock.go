package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainagent/chainagent/internal/eventbus"
	"github.com/chainagent/chainagent/pkg/cerr"
)

const bpsDenominator = 10000

// PriceUpdatedPayload is emitted whenever a tracked price changes.
type PriceUpdatedPayload struct {
	Token    string `json:"token"`
	OldPrice int64  `json:"oldPrice"`
	NewPrice int64  `json:"newPrice"`
}

type quote struct {
	current   int64
	reference int64 // anchor the dip is measured against
}

// MockOracle is an in-memory price feed with operator controls for
// simulating dips. Unknown tokens are seeded lazily at the configured
// seed price.
type MockOracle struct {
	mu        sync.RWMutex
	quotes    map[string]*quote
	seedPrice int64
	bus       *eventbus.Bus
}

var _ Oracle = (*MockOracle)(nil)

func NewMockOracle(seedPrice int64, bus *eventbus.Bus) *MockOracle {
	return &MockOracle{
		quotes:    make(map[string]*quote),
		seedPrice: seedPrice,
		bus:       bus,
	}
}

func (o *MockOracle) quoteFor(token string) *quote {
	q, ok := o.quotes[token]
	if !ok {
		q = &quote{current: o.seedPrice, reference: o.seedPrice}
		o.quotes[token] = q
	}
	return q
}

func (o *MockOracle) GetPrice(_ context.Context, token string) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.quoteFor(token).current, nil
}

func (o *MockOracle) CheckPriceDip(_ context.Context, token string, targetDipBps int64) (DipResult, error) {
	if targetDipBps <= 0 || targetDipBps >= bpsDenominator {
		return DipResult{}, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("target dip must be between 1 and %d bps", bpsDenominator-1), nil)
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	q := o.quoteFor(token)
	var dropBps int64
	if q.reference > 0 && q.current < q.reference {
		dropBps = (q.reference - q.current) * bpsDenominator / q.reference
	}
	return DipResult{
		Dipped:  dropBps >= targetDipBps,
		Price:   q.current,
		DropBps: dropBps,
	}, nil
}

// UpdatePrice sets a new price and re-anchors the dip reference to it.
func (o *MockOracle) UpdatePrice(token string, newPrice int64) error {
	if newPrice <= 0 {
		return cerr.NewError(cerr.InvalidArgument, "price must be positive", nil)
	}
	o.mu.Lock()
	q := o.quoteFor(token)
	oldPrice := q.current
	q.current = newPrice
	q.reference = newPrice
	o.mu.Unlock()

	o.bus.PublishNew(eventbus.TypePriceUpdated, token, PriceUpdatedPayload{
		Token:    token,
		OldPrice: oldPrice,
		NewPrice: newPrice,
	})
	return nil
}

// SimulateDip drops the current price by dipBps, keeping the pre-dip
// price as the reference the drop is measured against.
func (o *MockOracle) SimulateDip(token string, dipBps int64) (int64, error) {
	if dipBps <= 0 || dipBps >= bpsDenominator {
		return 0, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("dip must be between 1 and %d bps", bpsDenominator-1), nil)
	}
	o.mu.Lock()
	q := o.quoteFor(token)
	oldPrice := q.current
	q.reference = q.current
	q.current = q.current * (bpsDenominator - dipBps) / bpsDenominator
	newPrice := q.current
	o.mu.Unlock()

	o.bus.PublishNew(eventbus.TypePriceUpdated, token, PriceUpdatedPayload{
		Token:    token,
		OldPrice: oldPrice,
		NewPrice: newPrice,
	})
	return newPrice, nil
}

// Reset restores a token to the seed price.
func (o *MockOracle) Reset(token string) error {
	return o.UpdatePrice(token, o.seedPrice)
}
