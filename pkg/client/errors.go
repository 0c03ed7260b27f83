package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Sternrassler/credit-analytics-client/pkg/analytics"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends while a request is in flight or backing off.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrSigning is returned when the configured RequestSigner rejects a request.
	ErrSigning = errors.New("request signing failed")

	// ErrDecode is returned when a successful response is not a metrics result.
	ErrDecode = errors.New("decode metrics response")
)

// APIError is a failed Metrics API call.
//
// Kind is set only when the API reported one of the known domain failures;
// transport, credential and server faults leave it empty.
type APIError struct {
	StatusCode  int
	ErrorClass  ErrorClass
	Kind        analytics.ErrorKind
	ReasonCode  string
	Source      string
	Message     string
	Recoverable bool
	Err         error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("metrics api %s error (status %d", e.ErrorClass, e.StatusCode)
	if e.ReasonCode != "" {
		msg += ", " + e.ReasonCode
	}
	msg += "): " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// FailureKind reports the domain failure kind, if any.
func (e *APIError) FailureKind() analytics.ErrorKind {
	return e.Kind
}

// errorEnvelope is the provider's standard error body.
type errorEnvelope struct {
	Errors struct {
		Error []errorDetail `json:"Error"`
	} `json:"Errors"`
}

type errorDetail struct {
	Source      string `json:"Source"`
	ReasonCode  string `json:"ReasonCode"`
	Description string `json:"Description"`
	Recoverable bool   `json:"Recoverable"`
	Details     string `json:"Details,omitempty"`
}

// NewErrorBody renders the error envelope for kind. The sandbox uses it to
// answer with the same body the real API sends.
func NewErrorBody(kind analytics.ErrorKind, source, description string) ([]byte, error) {
	var env errorEnvelope
	env.Errors.Error = []errorDetail{{
		Source:      source,
		ReasonCode:  kind.ReasonCode(),
		Description: description,
		Recoverable: false,
	}}
	return json.Marshal(env)
}

// errorFromResponse builds an APIError from a non-2xx response. The body is
// consumed but not closed.
func errorFromResponse(resp *http.Response, class ErrorClass) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: class,
		Message:    http.StatusText(resp.StatusCode),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		apiErr.Err = fmt.Errorf("read error body: %w", err)
		return apiErr
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Errors.Error) == 0 {
		return apiErr
	}

	detail := env.Errors.Error[0]
	apiErr.ReasonCode = detail.ReasonCode
	apiErr.Source = detail.Source
	apiErr.Recoverable = detail.Recoverable
	if detail.Description != "" {
		apiErr.Message = detail.Description
	}
	// Only a client error with the kind's own status is a domain failure.
	if kind, ok := analytics.KindFromReasonCode(detail.ReasonCode); ok &&
		class == ErrorClassClient && resp.StatusCode == kind.HTTPStatus() {
		apiErr.Kind = kind
	}
	return apiErr
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx answers are deterministic; resending them cannot change the outcome.
		return false
	}
}
