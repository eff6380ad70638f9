package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// SalesEventRow is one row of the sales_events table: a paid order line or an
// approved payout.
type SalesEventRow struct {
	EventID         string
	EventType       string
	OccurredAt      time.Time
	OrderID         string
	OrderDetailID   string
	ShopID          string
	ProductID       string
	PayoutRequestID string
	TenantType      string
	TenantID        string
	Quantity        int64
	Amount          float64
	Tax             float64
	Commission      float64
	Balance         float64
	Currency        string
}

// Save implements bigquery.ValueSaver. The insert id is stable per event and
// line, so a redelivered message does not double count.
func (r SalesEventRow) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"event_id":          r.EventID,
		"event_type":        r.EventType,
		"occurred_at":       r.OccurredAt,
		"order_id":          nullable(r.OrderID),
		"order_detail_id":   nullable(r.OrderDetailID),
		"shop_id":           nullable(r.ShopID),
		"product_id":        nullable(r.ProductID),
		"payout_request_id": nullable(r.PayoutRequestID),
		"tenant_type":       nullable(r.TenantType),
		"tenant_id":         nullable(r.TenantID),
		"quantity":          r.Quantity,
		"amount":            r.Amount,
		"tax":               r.Tax,
		"commission":        r.Commission,
		"balance":           r.Balance,
		"currency":          nullable(r.Currency),
	}
	return row, r.insertID(), nil
}

func (r SalesEventRow) insertID() string {
	if r.OrderDetailID != "" {
		return r.EventID + ":" + r.OrderDetailID
	}
	return r.EventID
}

func nullable(v string) bigquery.Value {
	if v == "" {
		return nil
	}
	return v
}
