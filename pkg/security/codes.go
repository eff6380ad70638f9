package security

import (
	"fmt"
	"strconv"
	"time"
)

// trackingCharset leaves out characters that are easy to misread aloud.
const trackingCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const trackingCodeLength = 8

// GenerateTrackingCode returns a customer-facing order code such as "BZ-7KQ2M9XA".
func GenerateTrackingCode() (string, error) {
	body, err := randomFrom(trackingCharset, trackingCodeLength)
	if err != nil {
		return "", fmt.Errorf("generate tracking code: %w", err)
	}
	return "BZ-" + body, nil
}

const payoutSuffixLength = 3

// PayoutRequestCode returns "PR" followed by the millisecond timestamp and a
// short random numeric suffix, so requests made in the same millisecond stay
// unique.
func PayoutRequestCode(now time.Time) (string, error) {
	suffix, err := randomFrom("0123456789", payoutSuffixLength)
	if err != nil {
		return "", fmt.Errorf("generate payout code: %w", err)
	}
	return "PR" + strconv.FormatInt(now.UnixMilli(), 10) + suffix, nil
}
