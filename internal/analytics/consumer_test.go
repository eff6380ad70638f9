package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pkgbigquery "github.com/bazaarhq/bazaar-backend/pkg/bigquery"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/idempotency"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/registry"
	"github.com/bazaarhq/bazaar-backend/pkg/pubsub"
)

type memoryStore struct {
	keys map[string]string
}

func (s *memoryStore) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := s.keys[key]
	return v, ok, nil
}

func (s *memoryStore) Claim(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if s.keys == nil {
		s.keys = map[string]string{}
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = value
	return true, nil
}

func (s *memoryStore) Put(_ context.Context, key, value string, _ time.Duration) error {
	s.keys[key] = value
	return nil
}

func (s *memoryStore) Release(_ context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

type fakeWriter struct {
	rows [][]pkgbigquery.SalesEventRow
	err  error
}

func (w *fakeWriter) Write(_ context.Context, rows []pkgbigquery.SalesEventRow) error {
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, rows)
	return nil
}

func newConsumer(t *testing.T, writer *fakeWriter) *Consumer {
	t.Helper()
	events, err := registry.NewEventRegistry(config.PubSubConfig{DomainTopic: "domain"})
	require.NoError(t, err)
	guard, err := idempotency.NewGuard(&memoryStore{}, time.Hour)
	require.NoError(t, err)
	consumer, err := NewConsumer(events, guard, writer, "ZMW", logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard}))
	require.NoError(t, err)
	return consumer
}

func message(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, payload any) pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID.String(), OccurredAt: time.Now().UTC(), Data: data})
	require.NoError(t, err)
	return pubsub.Message{ID: "msg", Data: body, Attributes: map[string]string{"event_type": string(eventType)}}
}

func paidEvent() payloads.OrderPaidEvent {
	shopID := uuid.New()
	return payloads.OrderPaidEvent{
		OrderID:      uuid.New(),
		TrackingCode: "BZ-2001",
		TotalPrice:   decimal.RequireFromString("330"),
		PaidAt:       time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
		Lines: []payloads.SaleLine{
			{OrderDetailID: uuid.New(), ShopID: shopID, ProductID: uuid.New(), Quantity: 2, TotalPrice: decimal.RequireFromString("200"), Commission: decimal.RequireFromString("20"), Balance: decimal.RequireFromString("180")},
			{OrderDetailID: uuid.New(), ShopID: shopID, ProductID: uuid.New(), Quantity: 1, TotalPrice: decimal.RequireFromString("130"), Commission: decimal.RequireFromString("13"), Balance: decimal.RequireFromString("117")},
		},
	}
}

func TestConsumer_OrderPaidWritesOneRowPerLine(t *testing.T) {
	writer := &fakeWriter{}
	consumer := newConsumer(t, writer)
	event := paidEvent()

	require.NoError(t, consumer.Handle(context.Background(), message(t, enums.EventOrderPaid, uuid.New(), event)))
	require.Len(t, writer.rows, 1)
	rows := writer.rows[0]
	require.Len(t, rows, 2)
	require.Equal(t, event.Lines[0].OrderDetailID.String(), rows[0].OrderDetailID)
	require.Equal(t, 180.0, rows[0].Balance)
	require.Equal(t, "ZMW", rows[0].Currency)
	require.Equal(t, event.PaidAt, rows[0].OccurredAt)
}

func TestConsumer_DuplicateIsSkipped(t *testing.T) {
	writer := &fakeWriter{}
	consumer := newConsumer(t, writer)
	msg := message(t, enums.EventOrderPaid, uuid.New(), paidEvent())

	require.NoError(t, consumer.Handle(context.Background(), msg))
	require.NoError(t, consumer.Handle(context.Background(), msg))
	require.Len(t, writer.rows, 1)
}

func TestConsumer_WriteFailureIsRedelivered(t *testing.T) {
	writer := &fakeWriter{err: errors.New("bigquery unavailable")}
	consumer := newConsumer(t, writer)
	msg := message(t, enums.EventOrderPaid, uuid.New(), paidEvent())

	require.Error(t, consumer.Handle(context.Background(), msg))

	writer.err = nil
	require.NoError(t, consumer.Handle(context.Background(), msg))
	require.Len(t, writer.rows, 1)
}

func TestConsumer_PayoutApproved(t *testing.T) {
	writer := &fakeWriter{}
	consumer := newConsumer(t, writer)
	tenantID := uuid.New()

	msg := message(t, enums.EventPayoutApproved, uuid.New(), payloads.PayoutDecidedEvent{
		PayoutRequestID: uuid.New(),
		TenantType:      enums.TenantTypeDelivery,
		TenantID:        tenantID,
		Status:          enums.PayoutStatusApproved,
		Total:           decimal.RequireFromString("500"),
		Commission:      decimal.RequireFromString("50"),
		Balance:         decimal.RequireFromString("450"),
		TotalProduct:    4,
	})
	require.NoError(t, consumer.Handle(context.Background(), msg))
	require.Len(t, writer.rows, 1)
	row := writer.rows[0][0]
	require.Equal(t, "delivery", row.TenantType)
	require.Equal(t, tenantID.String(), row.TenantID)
	require.Equal(t, 450.0, row.Balance)
	require.EqualValues(t, 4, row.Quantity)
}

func TestConsumer_IgnoresUntrackedEvents(t *testing.T) {
	writer := &fakeWriter{}
	consumer := newConsumer(t, writer)

	msg := message(t, enums.EventPayoutRejected, uuid.New(), payloads.PayoutDecidedEvent{Status: enums.PayoutStatusRejected})
	require.NoError(t, consumer.Handle(context.Background(), msg))
	require.NoError(t, consumer.Handle(context.Background(), pubsub.Message{Data: []byte("garbage"), Attributes: map[string]string{"event_type": "order_paid"}}))
	require.Empty(t, writer.rows)
}
