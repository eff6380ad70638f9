package enums

// PayoutStatus tracks a payout request and mirrors onto its items.
type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "pending"
	PayoutStatusApproved PayoutStatus = "approved"
	PayoutStatusRejected PayoutStatus = "rejected"
)

var payoutStatuses = newSet("payout status", PayoutStatusPending, PayoutStatusApproved, PayoutStatusRejected)

// Approval is final. A rejected request may still be approved as long as
// its order details can be claimed again.
var payoutFlow = transitions[PayoutStatus]{
	PayoutStatusPending:  {PayoutStatusApproved, PayoutStatusRejected},
	PayoutStatusRejected: {PayoutStatusApproved},
}

func (s PayoutStatus) String() string { return string(s) }
func (s PayoutStatus) IsValid() bool  { return payoutStatuses.has(s) }

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	return payoutFlow.allows(s, next)
}

func ParsePayoutStatus(value string) (PayoutStatus, error) { return payoutStatuses.parse(value) }
