package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainagent/chainagent/internal/eventbus"
)

func TestAuditLogRoundTrip(t *testing.T) {
	audit, err := NewAuditLog(t.TempDir())
	require.NoError(t, err)

	day := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(map[string]string{"user": "0xalice"})
	for i := 0; i < 3; i++ {
		require.NoError(t, audit.write(&eventbus.Event{
			ID:         string(rune('a' + i)),
			Type:       eventbus.TypeSwapExecuted,
			ResourceID: "0xalice",
			Payload:    payload,
			CreatedAt:  day.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := audit.ReadDay(day)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, eventbus.TypeSwapExecuted, events[0].Type)
	assert.Equal(t, "0xalice", events[0].ResourceID)
}

func TestAuditLogMissingDayIsEmpty(t *testing.T) {
	audit, err := NewAuditLog(t.TempDir())
	require.NoError(t, err)

	events, err := audit.ReadDay(time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAuditLogSplitsByUTCDay(t *testing.T) {
	audit, err := NewAuditLog(t.TempDir())
	require.NoError(t, err)

	d1 := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)
	require.NoError(t, audit.write(&eventbus.Event{ID: "1", Type: eventbus.TypePriceUpdated, CreatedAt: d1}))
	require.NoError(t, audit.write(&eventbus.Event{ID: "2", Type: eventbus.TypePriceUpdated, CreatedAt: d2}))

	first, err := audit.ReadDay(d1)
	require.NoError(t, err)
	second, err := audit.ReadDay(d2)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
}
