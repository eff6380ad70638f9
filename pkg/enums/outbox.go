package enums

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateOrderDetail   OutboxAggregateType = "order_detail"
	AggregatePayoutRequest OutboxAggregateType = "payout_request"
	AggregateCompany       OutboxAggregateType = "company"
	AggregateDriver        OutboxAggregateType = "driver"
)

var aggregateTypes = newSet("aggregate type",
	AggregateOrder,
	AggregateOrderDetail,
	AggregatePayoutRequest,
	AggregateCompany,
	AggregateDriver,
)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderPaid             OutboxEventType = "order_paid"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventRefundRequested       OutboxEventType = "refund_requested"
	EventDigitalLinkIssued     OutboxEventType = "digital_link_issued"
	EventDeliveryStatusChanged OutboxEventType = "delivery_status_changed"
	EventDriverAssigned        OutboxEventType = "driver_assigned"
	EventDriverPositionUpdated OutboxEventType = "driver_position_updated"
	EventCompanyVerified       OutboxEventType = "company_verified"
	EventPayoutRequested       OutboxEventType = "payout_requested"
	EventPayoutApproved        OutboxEventType = "payout_approved"
	EventPayoutRejected        OutboxEventType = "payout_rejected"
)

var eventTypes = newSet("event type",
	EventOrderCreated,
	EventOrderPaid,
	EventOrderStatusChanged,
	EventRefundRequested,
	EventDigitalLinkIssued,
	EventDeliveryStatusChanged,
	EventDriverAssigned,
	EventDriverPositionUpdated,
	EventCompanyVerified,
	EventPayoutRequested,
	EventPayoutApproved,
	EventPayoutRejected,
)

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

// OutboxEventTypes lists every event type in declaration order.
func OutboxEventTypes() []OutboxEventType {
	return append([]OutboxEventType(nil), eventTypes.values...)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse(value)
}
