package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/pagination"
)

func invalid(field string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "invalid "+field).
		WithDetails(map[string]any{"field": field})
}

// ParseUUIDParam reads a required uuid path parameter. label names it in the
// error message.
func ParseUUIDParam(r *http.Request, key, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalid(label, err)
	}
	return id, nil
}

// ParseOptionalUUID returns nil for a blank value.
func ParseOptionalUUID(raw, field string) (*uuid.UUID, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalid(field, err)
	}
	return &id, nil
}

// ParseDateParam accepts an RFC 3339 timestamp or a bare YYYY-MM-DD date
// (midnight UTC). A blank value returns nil.
func ParseDateParam(value, field string) (*time.Time, error) {
	if value = strings.TrimSpace(value); value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		var dateErr error
		if t, dateErr = time.Parse(time.DateOnly, value); dateErr != nil {
			return nil, invalid(field, err)
		}
	}
	return &t, nil
}

// ParseDateRange reads the optional ?from= and ?to= query dates. A window
// whose end precedes its start is rejected.
func ParseDateRange(r *http.Request) (from, to *time.Time, err error) {
	query := r.URL.Query()
	if from, err = ParseDateParam(query.Get("from"), "from"); err != nil {
		return nil, nil, err
	}
	if to, err = ParseDateParam(query.Get("to"), "to"); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	return from, to, nil
}

// ParseQueryInt reads an optional integer query parameter bounded by
// [lo, hi], returning fallback when absent.
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(key, err)
	}
	if n < lo || n > hi {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be between %d and %d", key, lo, hi).
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return n, nil
}

// ParseQueryBool reads an optional boolean query parameter. Absent means false.
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalid(key, err)
	}
	return v, nil
}

// ParsePageParams reads ?limit and ?cursor. The cursor itself is checked by
// the repository that decodes it.
func ParsePageParams(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}, nil
}

// SanitizeString trims whitespace and truncates to maxLen runes when
// maxLen is positive.
func SanitizeString(input string, maxLen int) string {
	s := strings.TrimSpace(input)
	if maxLen <= 0 {
		return s
	}
	if runes := []rune(s); len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}
