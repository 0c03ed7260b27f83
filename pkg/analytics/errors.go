package analytics

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of domain failures the Metrics API reports.
type ErrorKind string

const (
	// KindMetricsNotFound means the location exists but has no metrics.
	KindMetricsNotFound ErrorKind = "metrics_not_found"

	// KindLocationNotFound means the location id is unknown.
	KindLocationNotFound ErrorKind = "location_not_found"

	// KindConsentNotProvided means the request did not assert merchant consent.
	KindConsentNotProvided ErrorKind = "consent_not_provided"
)

// Kinds lists every ErrorKind.
func Kinds() []ErrorKind {
	return []ErrorKind{KindMetricsNotFound, KindLocationNotFound, KindConsentNotProvided}
}

// ParseErrorKind converts s to an ErrorKind, rejecting values outside the set.
func ParseErrorKind(s string) (ErrorKind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown error kind %q", s)
}

// ReasonCode returns the code the API puts in its error envelope for k.
func (k ErrorKind) ReasonCode() string {
	switch k {
	case KindMetricsNotFound:
		return "METRICS_NOT_FOUND"
	case KindLocationNotFound:
		return "LOCATION_NOT_FOUND"
	case KindConsentNotProvided:
		return "CONSENT_NOT_PROVIDED"
	default:
		return ""
	}
}

// HTTPStatus returns the status code the API answers with for k.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindMetricsNotFound, KindLocationNotFound:
		return http.StatusNotFound
	case KindConsentNotProvided:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// KindFromReasonCode maps an envelope reason code back to its kind.
func KindFromReasonCode(code string) (ErrorKind, bool) {
	for _, k := range Kinds() {
		if k.ReasonCode() == code {
			return k, true
		}
	}
	return "", false
}

// KindCarrier is implemented by errors that report a domain failure kind.
type KindCarrier interface {
	error
	FailureKind() ErrorKind
}

// KindOf returns the domain failure kind carried by err. The second result is
// false when err carries no kind, e.g. a transport or credential failure.
func KindOf(err error) (ErrorKind, bool) {
	var kc KindCarrier
	if !errors.As(err, &kc) {
		return "", false
	}
	kind := kc.FailureKind()
	if kind == "" {
		return "", false
	}
	return kind, true
}
