package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusProgressing, true},
		{OrderStatusProgressing, OrderStatusShipping, true},
		{OrderStatusShipping, OrderStatusCompleted, true},
		{OrderStatusShipping, OrderStatusCancelled, true},
		{OrderStatusCompleted, OrderStatusRefunded, true},
		{OrderStatusShipping, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusRefunded, OrderStatusCompleted, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDeliveryStatusTransitions(t *testing.T) {
	if !DeliveryStatusPostponed.CanTransitionTo(DeliveryStatusOnTheWay) {
		t.Fatal("postponed delivery should resume")
	}
	if DeliveryStatusDelivered.CanTransitionTo(DeliveryStatusOnTheWay) {
		t.Fatal("delivered is terminal")
	}
	if DeliveryStatusOnTheWay.CanTransitionTo(DeliveryStatusPickedUp) {
		t.Fatal("backward move should be rejected")
	}
	if !DeliveryStatusCancelled.IsTerminal() || DeliveryStatusPostponed.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestPayoutStatusApprovalIsFinal(t *testing.T) {
	if !PayoutStatusPending.CanTransitionTo(PayoutStatusApproved) {
		t.Fatal("pending should approve")
	}
	if !PayoutStatusRejected.CanTransitionTo(PayoutStatusApproved) {
		t.Fatal("rejected should still approve")
	}
	if PayoutStatusRejected.CanTransitionTo(PayoutStatusRejected) {
		t.Fatal("rejected must not reject again")
	}
	if PayoutStatusApproved.CanTransitionTo(PayoutStatusApproved) {
		t.Fatal("approved must not approve again")
	}
	if PayoutStatusApproved.CanTransitionTo(PayoutStatusRejected) {
		t.Fatal("approved must not reject")
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ParseOrderStatus("shipping"); err != nil {
		t.Fatalf("parse order status: %v", err)
	}
	if _, err := ParseDeliveryStatus("lost"); err == nil {
		t.Fatal("expected error for unknown delivery status")
	}
	if tt, err := ParseTenantType("delivery"); err != nil || tt != TenantTypeDelivery {
		t.Fatalf("parse tenant type: %v %v", tt, err)
	}
}

func TestParseNormalizesInput(t *testing.T) {
	role, err := ParseActorRole("  Shop ")
	if err != nil || role != ActorRoleShop {
		t.Fatalf("parse actor role: %v %v", role, err)
	}
	if _, err := ParsePayoutStatus("settled"); err == nil || err.Error() != `invalid payout status "settled"` {
		t.Fatalf("unexpected error %v", err)
	}
	if !OutboxDLQReasonMaxAttempts.IsValid() || OutboxDLQErrorReason("lost").IsValid() {
		t.Fatal("unexpected dlq reason classification")
	}
	if got := OutboxEventTypes(); len(got) != 12 || got[0] != EventOrderCreated {
		t.Fatalf("unexpected event types %v", got)
	}
	if !ActorRoleDriver.OwnsTenant() || ActorRoleAdmin.OwnsTenant() {
		t.Fatal("unexpected tenant ownership")
	}
}
