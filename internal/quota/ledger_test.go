package quota_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainagent/chainagent/internal/eventbus"
	"github.com/chainagent/chainagent/internal/permission"
	"github.com/chainagent/chainagent/internal/permission/repositoryimpl"
	"github.com/chainagent/chainagent/internal/quota"
	"github.com/chainagent/chainagent/pkg/cerr"
)

const (
	dailyLimit = 100_000000  // 100 USDC
	totalLimit = 3000_000000 // 3000 USDC
)

func newFixture(t *testing.T) (*permission.Registry, *quota.Ledger, time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	perms := permission.NewRegistry(repositoryimpl.NewMemoryRepository(), eventbus.New())
	perms.SetNowFunc(func() time.Time { return now })
	_, err := perms.Grant(context.Background(), "0xuser", "USDC", dailyLimit, totalLimit, 30, 500)
	require.NoError(t, err)
	return perms, quota.NewLedger(perms), now
}

func TestReserveAndCommit(t *testing.T) {
	ctx := context.Background()
	perms, ledger, now := newFixture(t)

	require.NoError(t, ledger.ReserveAndCommit(ctx, "0xuser", 60_000000, now))
	assert.EqualValues(t, 60_000000, ledger.DailySpent("0xuser", now))
	assert.EqualValues(t, 60_000000, perms.TotalSpent(ctx, "0xuser"))

	avail, err := ledger.AvailableToday(ctx, "0xuser", now)
	require.NoError(t, err)
	assert.EqualValues(t, 40_000000, avail)
}

func TestDailyQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	perms, ledger, now := newFixture(t)

	require.NoError(t, ledger.ReserveAndCommit(ctx, "0xuser", 60_000000, now))

	err := ledger.ReserveAndCommit(ctx, "0xuser", 50_000000, now)
	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.EqualValues(t, 50_000000, exceeded.Requested)
	assert.EqualValues(t, 40_000000, exceeded.Available)

	// the rejected call must not move either counter
	assert.EqualValues(t, 60_000000, ledger.DailySpent("0xuser", now))
	assert.EqualValues(t, 60_000000, perms.TotalSpent(ctx, "0xuser"))
}

func TestLifetimeQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	perms := permission.NewRegistry(repositoryimpl.NewMemoryRepository(), eventbus.New())
	perms.SetNowFunc(func() time.Time { return now })
	_, err := perms.Grant(ctx, "0xuser", "USDC", 100_000000, 150_000000, 30, 500)
	require.NoError(t, err)
	ledger := quota.NewLedger(perms)

	require.NoError(t, ledger.ReserveAndCommit(ctx, "0xuser", 90_000000, now))

	// a day later the daily window is fresh but only 60 USDC of the
	// lifetime limit remains
	nextDay := now.Add(24 * time.Hour)
	err = ledger.ReserveAndCommit(ctx, "0xuser", 70_000000, nextDay)
	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.EqualValues(t, 60_000000, exceeded.Available)
}

func TestMidnightRollover(t *testing.T) {
	ctx := context.Background()
	_, ledger, now := newFixture(t)

	require.NoError(t, ledger.ReserveAndCommit(ctx, "0xuser", dailyLimit, now))

	// daily limit is exhausted for today...
	err := ledger.ReserveAndCommit(ctx, "0xuser", 1, now)
	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.EqualValues(t, 0, exceeded.Available)

	// ...but crossing UTC midnight opens a fresh window with no reset
	nextDay := now.Add(24 * time.Hour)
	assert.EqualValues(t, 0, ledger.DailySpent("0xuser", nextDay))
	require.NoError(t, ledger.ReserveAndCommit(ctx, "0xuser", 50_000000, nextDay))
}

func TestNoPermission(t *testing.T) {
	ctx := context.Background()
	perms := permission.NewRegistry(repositoryimpl.NewMemoryRepository(), eventbus.New())
	ledger := quota.NewLedger(perms)

	err := ledger.ReserveAndCommit(ctx, "0xghost", 1_000000, time.Now())
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	var exceeded *quota.ExceededError
	assert.False(t, errors.As(err, &exceeded))
}

func TestRestoreSeedsDayRecords(t *testing.T) {
	ctx := context.Background()
	_, ledger, now := newFixture(t)

	ledger.Restore("0xuser", now, 30_000000)
	assert.EqualValues(t, 30_000000, ledger.DailySpent("0xuser", now))

	avail, err := ledger.AvailableToday(ctx, "0xuser", now)
	require.NoError(t, err)
	assert.EqualValues(t, 70_000000, avail)
}
