// Package types holds the JSON envelopes shared by every HTTP handler.
package types

// SuccessEnvelope wraps a 2xx body as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failed request. Retryable tells clients
// that repeating the same call (with the same Idempotency-Key) is safe.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
