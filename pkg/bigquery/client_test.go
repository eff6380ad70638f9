package bigquery

import (
	"errors"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestDescribeMetadataErr(t *testing.T) {
	notFound := &googleapi.Error{Code: http.StatusNotFound}
	if got := describeMetadataErr("table", "sales_events", notFound).Error(); got != `table "sales_events" does not exist` {
		t.Fatalf("unexpected message %q", got)
	}

	denied := &googleapi.Error{Code: http.StatusForbidden}
	err := describeMetadataErr("dataset", "bazaar", denied)
	if !errors.Is(err, denied) {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
}

func TestNilClientIsNotInitialized(t *testing.T) {
	var c *Client
	if err := c.InsertSalesEvents(t.Context(), []SalesEventRow{{EventID: "evt-1"}}); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestSalesEventRowSave(t *testing.T) {
	row := SalesEventRow{
		EventID:       "evt-1",
		EventType:     "order_paid",
		OrderDetailID: "detail-1",
		Amount:        240,
	}

	values, insertID, err := row.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if insertID != "evt-1:detail-1" {
		t.Fatalf("unexpected insert id %q", insertID)
	}
	if values["payout_request_id"] != nil {
		t.Fatalf("expected blank ids to be null, got %v", values["payout_request_id"])
	}
	if values["amount"] != 240.0 {
		t.Fatalf("unexpected amount %v", values["amount"])
	}

	payout := SalesEventRow{EventID: "evt-2", PayoutRequestID: "pr-1"}
	if _, id, _ := payout.Save(); id != "evt-2" {
		t.Fatalf("unexpected payout insert id %q", id)
	}
}
