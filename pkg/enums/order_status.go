package enums

// OrderStatus tracks the fulfilment lifecycle of a single order detail.
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "pending"
	OrderStatusProgressing OrderStatus = "progressing"
	OrderStatusShipping    OrderStatus = "shipping"
	OrderStatusCompleted   OrderStatus = "completed"
	OrderStatusRefunded    OrderStatus = "refunded"
	OrderStatusCancelled   OrderStatus = "cancelled"
)

var orderStatuses = newSet("order status",
	OrderStatusPending,
	OrderStatusProgressing,
	OrderStatusShipping,
	OrderStatusCompleted,
	OrderStatusRefunded,
	OrderStatusCancelled,
)

// completed may still move to refunded; refunded and cancelled are final.
var orderFlow = transitions[OrderStatus]{
	OrderStatusPending:     {OrderStatusProgressing, OrderStatusShipping, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusProgressing: {OrderStatusShipping, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusShipping:    {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:   {OrderStatusRefunded},
}

func (s OrderStatus) String() string { return string(s) }
func (s OrderStatus) IsValid() bool  { return orderStatuses.has(s) }

// IsTerminal reports whether fulfilment has finished for the detail.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusRefunded, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return orderFlow.allows(s, next)
}

func ParseOrderStatus(value string) (OrderStatus, error) { return orderStatuses.parse(value) }
