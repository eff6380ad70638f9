// Package registry knows every outbox event type: its aggregate, its topic
// and how to decode each payload version.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
)

type decodeFunc func(json.RawMessage) (any, error)

// EventDescriptor describes one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	// versions maps an envelope version to its payload decoder. A payload
	// shape change adds a version and keeps the old one until old rows drain.
	versions map[int]decodeFunc
}

// ResolvedEvent is an outbox row or delivered message with its payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// jsonAs decodes a payload into a fresh *T.
func jsonAs[T any]() decodeFunc {
	return func(raw json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func event[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		versions:      map[int]decodeFunc{outbox.EnvelopeVersion: jsonAs[T]()},
	}
}

// NewEventRegistry routes every event to the domain topic. Consumers filter
// on the event_type attribute.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, desc := range []EventDescriptor{
		event[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder),
		event[payloads.OrderPaidEvent](enums.EventOrderPaid, enums.AggregateOrder),
		event[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrderDetail),
		event[payloads.RefundRequestedEvent](enums.EventRefundRequested, enums.AggregateOrderDetail),
		event[payloads.DigitalLinkIssuedEvent](enums.EventDigitalLinkIssued, enums.AggregateOrderDetail),
		event[payloads.DeliveryStatusChangedEvent](enums.EventDeliveryStatusChanged, enums.AggregateOrderDetail),
		event[payloads.DriverAssignedEvent](enums.EventDriverAssigned, enums.AggregateDriver),
		event[payloads.DriverPositionUpdatedEvent](enums.EventDriverPositionUpdated, enums.AggregateDriver),
		event[payloads.CompanyVerifiedEvent](enums.EventCompanyVerified, enums.AggregateCompany),
		event[payloads.PayoutRequestedEvent](enums.EventPayoutRequested, enums.AggregatePayoutRequest),
		event[payloads.PayoutDecidedEvent](enums.EventPayoutApproved, enums.AggregatePayoutRequest),
		event[payloads.PayoutDecidedEvent](enums.EventPayoutRejected, enums.AggregatePayoutRequest),
	} {
		desc.Topic = topic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve checks an outbox row against its descriptor and decodes it. Every
// failure is non-retryable: the stored row will not change.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[row.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", row.EventType))
	case desc.AggregateType != row.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, row.AggregateType))
	case row.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}
	return desc.decode(row.Payload)
}

// DecodeMessage decodes a Pub/Sub body using its event_type attribute.
func (r *EventRegistry) DecodeMessage(eventType string, body []byte) (*ResolvedEvent, error) {
	desc, ok := r.entries[enums.OutboxEventType(eventType)]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %q", eventType))
	}
	return desc.decode(body)
}

func (d EventDescriptor) decode(body []byte) (*ResolvedEvent, error) {
	env, err := outbox.DecodeEnvelope(body)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	data := bytes.TrimSpace(env.Data)
	if bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", d.EventType))
	}

	version := env.Version
	if version == 0 {
		version = outbox.EnvelopeVersion
	}
	decode, ok := d.versions[version]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("no decoder for %s@v%d", d.EventType, version))
	}
	payload, err := decode(data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", d.EventType, err))
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}
