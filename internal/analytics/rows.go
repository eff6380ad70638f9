package analytics

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgbigquery "github.com/bazaarhq/bazaar-backend/pkg/bigquery"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/registry"
)

// salesRows maps a decoded event to sales_events rows. Events the table does
// not track yield no rows.
func salesRows(event *registry.ResolvedEvent, currency string) []pkgbigquery.SalesEventRow {
	envelope := event.Envelope
	switch payload := event.Payload.(type) {
	case *payloads.OrderPaidEvent:
		occurred := payload.PaidAt
		if occurred.IsZero() {
			occurred = envelope.OccurredAt
		}
		rowCurrency := strings.TrimSpace(payload.Currency)
		if rowCurrency == "" {
			rowCurrency = currency
		}
		rows := make([]pkgbigquery.SalesEventRow, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			rows = append(rows, pkgbigquery.SalesEventRow{
				EventID:       envelope.EventID,
				EventType:     string(enums.EventOrderPaid),
				OccurredAt:    occurred.UTC(),
				OrderID:       payload.OrderID.String(),
				OrderDetailID: line.OrderDetailID.String(),
				ShopID:        idString(line.ShopID),
				ProductID:     idString(line.ProductID),
				TenantType:    string(enums.TenantTypeShop),
				TenantID:      idString(line.ShopID),
				Quantity:      int64(line.Quantity),
				Amount:        money(line.TotalPrice),
				Tax:           money(line.TaxPrice),
				Commission:    money(line.Commission),
				Balance:       money(line.Balance),
				Currency:      rowCurrency,
			})
		}
		return rows

	case *payloads.PayoutDecidedEvent:
		if payload.Status != enums.PayoutStatusApproved {
			return nil
		}
		occurred := payload.DecidedAt
		if occurred.IsZero() {
			occurred = envelope.OccurredAt
		}
		return []pkgbigquery.SalesEventRow{{
			EventID:         envelope.EventID,
			EventType:       string(enums.EventPayoutApproved),
			OccurredAt:      occurred.UTC(),
			PayoutRequestID: payload.PayoutRequestID.String(),
			TenantType:      string(payload.TenantType),
			TenantID:        idString(payload.TenantID),
			Quantity:        payload.TotalProduct,
			Amount:          money(payload.Total),
			Commission:      money(payload.Commission),
			Balance:         money(payload.Balance),
			Currency:        currency,
		}}
	}
	return nil
}

func money(value decimal.Decimal) float64 {
	return value.Round(2).InexactFloat64()
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
