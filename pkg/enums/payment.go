package enums

// PaymentMethod describes how a buyer intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodCOD         PaymentMethod = "cod"
	PaymentMethodPaypal      PaymentMethod = "paypal"
	PaymentMethodStripe      PaymentMethod = "stripe"
	PaymentMethodBraintree   PaymentMethod = "braintree"
	PaymentMethodCybersource PaymentMethod = "cybersource"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
)

var paymentMethods = newSet("payment method",
	PaymentMethodCOD,
	PaymentMethodPaypal,
	PaymentMethodStripe,
	PaymentMethodBraintree,
	PaymentMethodCybersource,
	PaymentMethodMobileMoney,
)

func (p PaymentMethod) String() string { return string(p) }
func (p PaymentMethod) IsValid() bool  { return paymentMethods.has(p) }

func ParsePaymentMethod(value string) (PaymentMethod, error) { return paymentMethods.parse(value) }

// PaymentStatus tracks whether an order has been paid for.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentStatuses = newSet("payment status", PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded)

func (p PaymentStatus) String() string { return string(p) }
func (p PaymentStatus) IsValid() bool  { return paymentStatuses.has(p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) { return paymentStatuses.parse(value) }

// RefundStatus tracks a buyer's refund request.
type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

var refundStatuses = newSet("refund status", RefundStatusPending, RefundStatusApproved, RefundStatusRejected)

func (r RefundStatus) String() string { return string(r) }
func (r RefundStatus) IsValid() bool  { return refundStatuses.has(r) }

func ParseRefundStatus(value string) (RefundStatus, error) { return refundStatuses.parse(value) }
