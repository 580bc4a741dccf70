package api

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrSessionExpired marks an unrecoverable authentication failure: the token
// refresh failed and the local session has been cleared. The caller should
// send the user back through login.
var ErrSessionExpired = errors.New("session expired")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Status     string // envelope status field, when present
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Kind buckets request failures for user-facing messaging. Classification
// never drives retries; the refresh flow is the only automatic recovery.
type Kind string

const (
	KindNotFound  Kind = "not-found"
	KindForbidden Kind = "forbidden"
	KindNetwork   Kind = "network"
	KindUnknown   Kind = "unknown"
)

// Classify maps an error to its display kind: 404 is not-found, 403 is
// forbidden, 5xx and transport failures are network, everything else unknown.
func Classify(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 404:
			return KindNotFound
		case apiErr.StatusCode == 403:
			return KindForbidden
		case apiErr.StatusCode >= 500:
			return KindNetwork
		default:
			return KindUnknown
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}

	return KindUnknown
}
