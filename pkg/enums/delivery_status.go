package enums

// DeliveryStatus tracks the logistics lifecycle of an order detail.
type DeliveryStatus string

const (
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusPickedUp   DeliveryStatus = "picked_up"
	DeliveryStatusOnTheWay   DeliveryStatus = "on_the_way"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusCancelled  DeliveryStatus = "cancelled"
	DeliveryStatusPostponed  DeliveryStatus = "postponed"
)

var deliveryStatuses = newSet("delivery status",
	DeliveryStatusProcessing,
	DeliveryStatusPickedUp,
	DeliveryStatusOnTheWay,
	DeliveryStatusDelivered,
	DeliveryStatusCancelled,
	DeliveryStatusPostponed,
)

// Deliveries only move forward; postponed can resume at any earlier point.
var deliveryFlow = transitions[DeliveryStatus]{
	DeliveryStatusProcessing: {DeliveryStatusPickedUp, DeliveryStatusOnTheWay, DeliveryStatusDelivered, DeliveryStatusCancelled, DeliveryStatusPostponed},
	DeliveryStatusPickedUp:   {DeliveryStatusOnTheWay, DeliveryStatusDelivered, DeliveryStatusCancelled, DeliveryStatusPostponed},
	DeliveryStatusOnTheWay:   {DeliveryStatusDelivered, DeliveryStatusCancelled, DeliveryStatusPostponed},
	DeliveryStatusPostponed:  {DeliveryStatusProcessing, DeliveryStatusPickedUp, DeliveryStatusOnTheWay, DeliveryStatusDelivered, DeliveryStatusCancelled},
}

// ActiveDeliveryStatuses are the statuses in which a driver is still carrying the items.
var ActiveDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusProcessing,
	DeliveryStatusPickedUp,
	DeliveryStatusOnTheWay,
}

func (s DeliveryStatus) String() string { return string(s) }
func (s DeliveryStatus) IsValid() bool  { return deliveryStatuses.has(s) }

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	return deliveryFlow.allows(s, next)
}

func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	return deliveryStatuses.parse(value)
}
