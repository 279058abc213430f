package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainagent/chainagent/internal/eventbus"
)

const seedPrice = 3000_00000000 // $3000, 8 decimals

func TestSimulateDip(t *testing.T) {
	ctx := context.Background()
	o := NewMockOracle(seedPrice, eventbus.New())

	price, err := o.GetPrice(ctx, "ETH")
	require.NoError(t, err)
	assert.EqualValues(t, seedPrice, price)

	newPrice, err := o.SimulateDip("ETH", 500)
	require.NoError(t, err)
	assert.EqualValues(t, 2850_00000000, newPrice)

	res, err := o.CheckPriceDip(ctx, "ETH", 500)
	require.NoError(t, err)
	assert.True(t, res.Dipped)
	assert.EqualValues(t, 2850_00000000, res.Price)
	assert.EqualValues(t, 500, res.DropBps)
}

func TestDipNotMet(t *testing.T) {
	ctx := context.Background()
	o := NewMockOracle(seedPrice, eventbus.New())

	// 3% drop does not satisfy a 5% target.
	_, err := o.SimulateDip("ETH", 300)
	require.NoError(t, err)

	res, err := o.CheckPriceDip(ctx, "ETH", 500)
	require.NoError(t, err)
	assert.False(t, res.Dipped)
	assert.EqualValues(t, 300, res.DropBps)
}

func TestUpdatePriceReanchorsReference(t *testing.T) {
	ctx := context.Background()
	o := NewMockOracle(seedPrice, eventbus.New())

	_, err := o.SimulateDip("ETH", 500)
	require.NoError(t, err)

	// An explicit update resets the reference, so no dip is reported
	// until the price moves again.
	require.NoError(t, o.UpdatePrice("ETH", 2850_00000000))
	res, err := o.CheckPriceDip(ctx, "ETH", 100)
	require.NoError(t, err)
	assert.False(t, res.Dipped)
	assert.EqualValues(t, 0, res.DropBps)
}

func TestResetRestoresSeedPrice(t *testing.T) {
	ctx := context.Background()
	o := NewMockOracle(seedPrice, eventbus.New())

	_, err := o.SimulateDip("ETH", 1000)
	require.NoError(t, err)
	require.NoError(t, o.Reset("ETH"))

	price, err := o.GetPrice(ctx, "ETH")
	require.NoError(t, err)
	assert.EqualValues(t, seedPrice, price)
}

func TestPriceUpdatedEvent(t *testing.T) {
	bus := eventbus.New()
	id, ch := bus.Subscribe(4)
	defer bus.Unsubscribe(id)

	o := NewMockOracle(seedPrice, bus)
	_, err := o.SimulateDip("ETH", 500)
	require.NoError(t, err)

	ev := <-ch
	assert.Equal(t, eventbus.TypePriceUpdated, ev.Type)
	assert.Equal(t, "ETH", ev.ResourceID)
}

func TestInvalidDipBounds(t *testing.T) {
	ctx := context.Background()
	o := NewMockOracle(seedPrice, eventbus.New())

	_, err := o.SimulateDip("ETH", 0)
	assert.Error(t, err)
	_, err = o.SimulateDip("ETH", 10000)
	assert.Error(t, err)
	_, err = o.CheckPriceDip(ctx, "ETH", 0)
	assert.Error(t, err)
}
