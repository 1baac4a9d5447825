package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	t.Run("full envelope", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_123",
			"type": "subscription.updated",
			"created": 1700000000,
			"data": {
				"object": {
					"subscription": "sub_1",
					"customer": "cus_1",
					"plan": "pro",
					"current_period_start": 1699000000,
					"current_period_end": 1701678000,
					"cancel_at_period_end": true
				}
			}
		}`)
		ev, err := ParseEvent(payload)
		require.NoError(t, err)
		assert.Equal(t, "evt_123", ev.ID)
		assert.Equal(t, EventSubscriptionUpdated, ev.Type)
		assert.Equal(t, "sub_1", ev.Data.Object.SubscriptionID)
		assert.Equal(t, "pro", ev.Data.Object.PlanID)
		assert.True(t, ev.Data.Object.CancelAtPeriodEnd)
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), ev.OccurredAt())
	})

	t.Run("unknown fields ignored", func(t *testing.T) {
		payload := []byte(`{"id":"evt_1","type":"payment.succeeded","created":1,"livemode":true,"api_version":"2024-01-01"}`)
		_, err := ParseEvent(payload)
		assert.NoError(t, err)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{"type":"payment.succeeded","created":1}`))
		assert.Error(t, err)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{"id":"evt_1","created":1}`))
		assert.Error(t, err)
	})

	t.Run("missing created", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{"id":"evt_1","type":"payment.succeeded"}`))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{`))
		assert.Error(t, err)
	})
}
