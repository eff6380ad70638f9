package writer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pkgbigquery "github.com/bazaarhq/bazaar-backend/pkg/bigquery"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
)

type fakeInserter struct {
	responses []error
	calls     []int
}

func (f *fakeInserter) InsertSalesEvents(_ context.Context, rows []pkgbigquery.SalesEventRow) error {
	index := len(f.calls)
	f.calls = append(f.calls, len(rows))
	if index < len(f.responses) {
		return f.responses[index]
	}
	return nil
}

func newWriter(t *testing.T, fake *fakeInserter, batch int) *SalesWriter {
	t.Helper()
	w, err := New(fake, config.BigQueryConfig{
		InsertBatchSize:  batch,
		InsertAttempts:   3,
		InsertBackoff:    time.Millisecond,
		InsertMaxBackoff: 2 * time.Millisecond,
	})
	require.NoError(t, err)
	return w
}

func rows(n int) []pkgbigquery.SalesEventRow {
	out := make([]pkgbigquery.SalesEventRow, n)
	for i := range out {
		out[i] = pkgbigquery.SalesEventRow{EventID: "evt", EventType: "order_paid"}
	}
	return out
}

func TestNewWriterValidation(t *testing.T) {
	_, err := New(nil, config.BigQueryConfig{})
	require.Error(t, err)

	w, err := New(&fakeInserter{}, config.BigQueryConfig{InsertBackoff: time.Minute})
	require.NoError(t, err)
	require.Equal(t, 500, w.chunk)
	require.Equal(t, 3, w.attempts)
	require.Equal(t, time.Minute, w.maxBackoff)
}

func TestWriterStopsWhenContextEnds(t *testing.T) {
	fake := &fakeInserter{responses: []error{&googleapi.Error{Code: http.StatusBadGateway}}}
	w, err := New(fake, config.BigQueryConfig{InsertAttempts: 5, InsertBackoff: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, w.Write(ctx, rows(1)), context.DeadlineExceeded)
	require.Len(t, fake.calls, 1)
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	fake := &fakeInserter{responses: []error{&googleapi.Error{Code: http.StatusServiceUnavailable}, nil}}
	w := newWriter(t, fake, 10)

	require.NoError(t, w.Write(context.Background(), rows(1)))
	require.Equal(t, []int{1, 1}, fake.calls)
}

func TestWriterStopsOnPermanentError(t *testing.T) {
	fake := &fakeInserter{responses: []error{&googleapi.Error{Code: http.StatusBadRequest}}}
	w := newWriter(t, fake, 10)

	err := w.Write(context.Background(), rows(1))
	require.Error(t, err)
	require.Len(t, fake.calls, 1)
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "try later")
	fake := &fakeInserter{responses: []error{unavailable, unavailable, unavailable, unavailable}}
	w := newWriter(t, fake, 10)

	require.Error(t, w.Write(context.Background(), rows(2)))
	require.Len(t, fake.calls, 3)
}

func TestWriterChunksRows(t *testing.T) {
	fake := &fakeInserter{}
	w := newWriter(t, fake, 2)

	require.NoError(t, w.Write(context.Background(), rows(5)))
	require.Equal(t, []int{2, 2, 1}, fake.calls)
}

func TestIsRetryable(t *testing.T) {
	require.False(t, IsRetryable(nil))
	require.False(t, IsRetryable(errors.New("boom")))
	require.True(t, IsRetryable(&googleapi.Error{Code: http.StatusTooManyRequests}))
	require.True(t, IsRetryable(status.Error(codes.DeadlineExceeded, "slow")))
	require.False(t, IsRetryable(status.Error(codes.InvalidArgument, "bad row")))

	transient := cbigquery.PutMultiError{
		{InsertID: "a", Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusServiceUnavailable}}},
	}
	require.True(t, IsRetryable(transient))

	mixed := cbigquery.PutMultiError{
		{InsertID: "a", Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusServiceUnavailable}}},
		{InsertID: "b", Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusBadRequest}}},
	}
	require.False(t, IsRetryable(mixed))
}
