package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pkgbigquery "github.com/bazaarhq/bazaar-backend/pkg/bigquery"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
)

var (
	transientHTTP = []int{
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	transientGRPC = []codes.Code{
		codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable,
	}
)

type salesInserter interface {
	InsertSalesEvents(ctx context.Context, rows []pkgbigquery.SalesEventRow) error
}

// SalesWriter streams sales_events rows into BigQuery in bounded chunks.
type SalesWriter struct {
	client     salesInserter
	chunk      int
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

// New falls back to the built-in defaults for any non-positive setting.
func New(client salesInserter, cfg config.BigQueryConfig) (*SalesWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	w := &SalesWriter{
		client:     client,
		chunk:      orDefault(cfg.InsertBatchSize, 500),
		attempts:   orDefault(cfg.InsertAttempts, 3),
		backoff:    orDefault(cfg.InsertBackoff, 250*time.Millisecond),
		maxBackoff: orDefault(cfg.InsertMaxBackoff, 2*time.Second),
	}
	w.maxBackoff = max(w.maxBackoff, w.backoff)
	return w, nil
}

func orDefault[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

// Write stops at the first chunk that cannot be inserted; earlier chunks stay written.
func (w *SalesWriter) Write(ctx context.Context, rows []pkgbigquery.SalesEventRow) error {
	for chunk := range slices.Chunk(rows, w.chunk) {
		if err := w.insert(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (w *SalesWriter) insert(ctx context.Context, rows []pkgbigquery.SalesEventRow) error {
	wait := w.backoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertSalesEvents(ctx, rows)
		switch {
		case err == nil:
			return nil
		case attempt >= w.attempts || !IsRetryable(err):
			return fmt.Errorf("insert %d sales rows (attempt %d): %w", len(rows), attempt, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		wait = min(2*wait, w.maxBackoff)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsRetryable reports whether err is transient. Batched errors are only
// transient when every row failed transiently.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		return len(rowErrs) > 0 && !slices.ContainsFunc(rowErrs, func(e cbigquery.RowInsertionError) bool {
			return !IsRetryable(e.Errors)
		})
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return len(multi) > 0 && !slices.ContainsFunc(multi, func(e error) bool { return !IsRetryable(e) })
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return slices.Contains(transientHTTP, apiErr.Code)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return slices.Contains(transientGRPC, st.Code())
	}
	return false
}
