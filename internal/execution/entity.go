package execution

import (
	"math/big"
	"time"
)

// Record is the immutable account of one executed swap. Records are
// append-only: once written they are never updated or deleted, and all
// derived statistics are folds over them.
type Record struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Executor  string    `json:"executor"`
	TokenIn   string    `json:"tokenIn"`
	TokenOut  string    `json:"tokenOut"`
	AmountIn  int64     `json:"amountIn"`
	AmountOut *big.Int  `json:"amountOut"`
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// outScale converts a 6-decimal quote amount priced with 8 decimals
// into an 18-decimal base amount: out = in * 10^20 / price.
var outScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)

// BaseOut computes the 18-decimal base-token amount bought with a
// 6-decimal quote amount at a price with 8 implied decimals.
func BaseOut(amountIn, price int64) *big.Int {
	if price <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).SetInt64(amountIn)
	out.Mul(out, outScale)
	return out.Quo(out, big.NewInt(price))
}
