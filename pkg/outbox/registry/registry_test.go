package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
)

func newRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: " domain-topic "})
	require.NoError(t, err)
	return reg
}

func envelope(t *testing.T, version int, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return body
}

func requireNonRetryable(t *testing.T, err error) {
	t.Helper()
	require.True(t, IsNonRetryable(err), "expected non-retryable error, got %v", err)
}

func TestEveryEventTypeIsRegistered(t *testing.T) {
	reg := newRegistry(t)
	for _, eventType := range enums.OutboxEventTypes() {
		desc, ok := reg.entries[eventType]
		require.True(t, ok, "missing descriptor for %s", eventType)
		assert.Equal(t, "domain-topic", desc.Topic)
		assert.True(t, desc.AggregateType.IsValid(), eventType)
	}
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg := newRegistry(t)
	detailID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload: envelope(t, 1, payloads.OrderCreatedEvent{
			OrderID:      uuid.New(),
			TrackingCode: "BZ-7KQ2M9",
			DetailIDs:    []uuid.UUID{detailID},
		}),
	})
	require.NoError(t, err)

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, []uuid.UUID{detailID}, payload.DetailIDs)
	assert.Equal(t, "BZ-7KQ2M9", payload.TrackingCode)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newRegistry(t)
	good := envelope(t, 1, map[string]any{"order_id": uuid.New()})

	cases := map[string]models.OutboxEvent{
		"unknown event":      {EventType: "coupon_expired", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: good},
		"aggregate mismatch": {EventType: enums.EventOrderCreated, AggregateType: enums.AggregatePayoutRequest, AggregateID: uuid.New(), Payload: good},
		"missing aggregate":  {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, Payload: good},
		"null payload":       {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelope(t, 1, nil)},
		"unknown version":    {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: envelope(t, 7, map[string]any{})},
		"not json":           {EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{`)},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			requireNonRetryable(t, err)
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	reg := newRegistry(t)
	body := envelope(t, 0, payloads.PayoutDecidedEvent{
		PayoutRequestID: uuid.New(),
		Code:            "PR1767225600000",
		TenantType:      enums.TenantTypeShop,
		Status:          enums.PayoutStatusApproved,
	})

	resolved, err := reg.DecodeMessage(string(enums.EventPayoutApproved), body)
	require.NoError(t, err)
	payload, ok := resolved.Payload.(*payloads.PayoutDecidedEvent)
	require.True(t, ok)
	assert.Equal(t, enums.PayoutStatusApproved, payload.Status)
	assert.Equal(t, "PR1767225600000", payload.Code)

	_, err = reg.DecodeMessage("unknown", body)
	requireNonRetryable(t, err)
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "  "})
	require.Error(t, err)
}
