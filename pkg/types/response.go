package types

// Every JSON body the API writes is one of these two envelopes.
type (
	SuccessEnvelope struct {
		Data any `json:"data"`
	}

	ErrorEnvelope struct {
		Error APIError `json:"error"`
	}
)

// APIError is the public face of a pkg/errors.Error. RequestID repeats the
// X-Request-Id response header so a pasted body is enough to find the logs.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
