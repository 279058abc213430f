// Package oracle supplies the price signal the execution engine gates
// on. Prices are fixed-point integers with 8 implied decimals; drops
// are measured in basis points (100 = 1%).
package oracle

import "context"

// DipResult reports whether the price has dropped far enough below the
// reference price to satisfy a target.
type DipResult struct {
	Dipped  bool  `json:"hasDipped"`
	Price   int64 `json:"currentPrice"`
	DropBps int64 `json:"dropPercentBps"`
}

// Oracle is the read side consumed by the engine. The mutating side
// (price updates, simulated dips) belongs to whatever feeds the oracle
// and is not part of this interface.
type Oracle interface {
	GetPrice(ctx context.Context, token string) (int64, error)
	CheckPriceDip(ctx context.Context, token string, targetDipBps int64) (DipResult, error)
}
