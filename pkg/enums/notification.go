package enums

// NotificationType groups in-app notifications for shops and delivery companies.
type NotificationType string

const (
	NotificationTypeOrderAlert    NotificationType = "order_alert"
	NotificationTypeRefundAlert   NotificationType = "refund_alert"
	NotificationTypeDeliveryAlert NotificationType = "delivery_alert"
	NotificationTypePayoutAlert   NotificationType = "payout_alert"
	NotificationTypeAccountAlert  NotificationType = "account_alert"
)

var notificationTypes = newSet("notification type",
	NotificationTypeOrderAlert,
	NotificationTypeRefundAlert,
	NotificationTypeDeliveryAlert,
	NotificationTypePayoutAlert,
	NotificationTypeAccountAlert,
)

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }

func ParseNotificationType(value string) (NotificationType, error) {
	return notificationTypes.parse(value)
}
