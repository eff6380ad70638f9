package models

// All lists every persisted model, in dependency order. Tests use it with
// AutoMigrate against sqlite; production schemas come from goose migrations.
func All() []any {
	return []any{
		&Shop{},
		&SiteSetting{},
		&ProductCategory{},
		&Product{},
		&ProductVariant{},
		&DigitalFile{},
		&Coupon{},
		&Order{},
		&OrderDetail{},
		&OrderLog{},
		&RefundRequest{},
		&Company{},
		&DeliveryZone{},
		&Driver{},
		&PayoutRequest{},
		&PayoutItem{},
		&PayoutAccount{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
