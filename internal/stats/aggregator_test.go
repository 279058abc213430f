package stats_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainagent/chainagent/internal/execution"
	"github.com/chainagent/chainagent/internal/stats"
)

type fixedQuota struct {
	avail int64
}

func (q *fixedQuota) AvailableToday(context.Context, string, time.Time) (int64, error) {
	return q.avail, nil
}

func rec(user string, amountIn int64, amountOut *big.Int) *execution.Record {
	return &execution.Record{
		ID:        user + "-rec",
		User:      user,
		Executor:  "execution-agent",
		TokenIn:   "USDC",
		TokenOut:  "ETH",
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Price:     2850_00000000,
		Timestamp: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestFoldAccumulatesGlobalAndPerUser(t *testing.T) {
	agg := stats.NewAggregator(&fixedQuota{avail: 40_000000})
	ctx := context.Background()

	agg.Fold(rec("0xalice", 60_000000, big.NewInt(21052631578947368)))
	agg.Fold(rec("0xbob", 30_000000, big.NewInt(10526315789473684)))
	agg.Fold(rec("0xalice", 10_000000, big.NewInt(3508771929824561)))

	g := agg.Global(ctx)
	assert.Equal(t, int64(3), g.Swaps)
	assert.Equal(t, int64(100_000000), g.QuoteSpent)
	assert.Equal(t, "35087719298245613", g.BaseBought.String())

	alice, err := agg.User(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), alice.Swaps)
	assert.Equal(t, "24561403508771929", alice.BaseAccrued.String())
	assert.Equal(t, int64(40_000000), alice.AvailableToday)
}

func TestUserWithNoSwapsIsZero(t *testing.T) {
	agg := stats.NewAggregator(&fixedQuota{})
	s, err := agg.User(context.Background(), "0xnobody")
	require.NoError(t, err)
	assert.Zero(t, s.Swaps)
	assert.Zero(t, s.BaseAccrued.Sign())
}

func TestReadsAreIdempotent(t *testing.T) {
	agg := stats.NewAggregator(&fixedQuota{avail: 100_000000})
	ctx := context.Background()
	agg.Fold(rec("0xalice", 60_000000, big.NewInt(1)))

	first := agg.Global(ctx)
	second := agg.Global(ctx)
	assert.Equal(t, first, second)

	// Mutating a returned snapshot must not leak into the aggregator.
	first.BaseBought.SetInt64(999)
	assert.Equal(t, int64(1), agg.Global(ctx).BaseBought.Int64())
}

func TestRebuildReplacesDerivedState(t *testing.T) {
	agg := stats.NewAggregator(&fixedQuota{})
	ctx := context.Background()
	agg.Fold(rec("0xalice", 60_000000, big.NewInt(5)))

	agg.Rebuild([]*execution.Record{
		rec("0xbob", 30_000000, big.NewInt(7)),
	})

	g := agg.Global(ctx)
	assert.Equal(t, int64(1), g.Swaps)
	assert.Equal(t, int64(30_000000), g.QuoteSpent)
	assert.Equal(t, int64(7), g.BaseBought.Int64())

	alice, err := agg.User(ctx, "0xalice")
	require.NoError(t, err)
	assert.Zero(t, alice.Swaps)
}
