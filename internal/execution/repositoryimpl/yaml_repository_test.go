package repositoryimpl

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainagent/chainagent/internal/execution"
	"github.com/chainagent/chainagent/pkg/cerr"
	"github.com/chainagent/chainagent/pkg/storage"
)

func newRecord(t *testing.T, amountOut string) *execution.Record {
	t.Helper()
	out, ok := new(big.Int).SetString(amountOut, 10)
	require.True(t, ok)
	return &execution.Record{
		ID:        ulid.Make().String(),
		User:      "0xalice",
		Executor:  "execution-agent",
		TokenIn:   "USDC",
		TokenOut:  "ETH",
		AmountIn:  60_000000,
		AmountOut: out,
		Price:     2850_00000000,
		Timestamp: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestYAMLRepositoryRoundTrip(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewYAMLRepository(store)
	ctx := context.Background()

	rec := newRecord(t, "21052631578947368")
	require.NoError(t, repo.Append(ctx, rec))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, rec.ID, all[0].ID)
	assert.Equal(t, rec.AmountIn, all[0].AmountIn)
	assert.Equal(t, 0, rec.AmountOut.Cmp(all[0].AmountOut))
	assert.True(t, rec.Timestamp.Equal(all[0].Timestamp))
}

func TestYAMLRepositoryPreservesWideAmounts(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewYAMLRepository(store)
	ctx := context.Background()

	// Wider than int64.
	rec := newRecord(t, "123456789012345678901234567890")
	require.NoError(t, repo.Append(ctx, rec))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "123456789012345678901234567890", all[0].AmountOut.String())
}

func TestYAMLRepositoryRejectsDuplicateAppend(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewYAMLRepository(store)
	ctx := context.Background()

	rec := newRecord(t, "1")
	require.NoError(t, repo.Append(ctx, rec))
	err = repo.Append(ctx, rec)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))
}

func TestYAMLRepositoryListIsAppendOrder(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewYAMLRepository(store)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		rec := newRecord(t, "1")
		ids = append(ids, rec.ID)
		require.NoError(t, repo.Append(ctx, rec))
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, rec := range all {
		assert.Equal(t, ids[i], rec.ID)
	}
}
