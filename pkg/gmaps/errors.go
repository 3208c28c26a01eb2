package gmaps

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Provider status values
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusOverQueryLimit = "OVER_QUERY_LIMIT"
	StatusRequestDenied  = "REQUEST_DENIED"
	StatusInvalidRequest = "INVALID_REQUEST"
	StatusUnknownError   = "UNKNOWN_ERROR"
	StatusNotFound       = "NOT_FOUND"

	// StatusUnreachable is used when no response was received (network, DNS, timeout)
	StatusUnreachable = "UNREACHABLE"
	// StatusCancelled is used when the caller abandoned the request
	StatusCancelled = "CANCELLED"
	// StatusInvalidResponse is used when the body could not be interpreted
	StatusInvalidResponse = "INVALID_RESPONSE"
)

var (
	// ErrMissingAPIKey indicates the client was configured without credentials
	ErrMissingAPIKey = errors.New("google maps api key is not set")
	// ErrGeocodeFailure indicates an address or coordinate resolved to nothing
	ErrGeocodeFailure = errors.New("address could not be geocoded")
	// ErrEmptyAddress indicates a blank address was given
	ErrEmptyAddress = errors.New("address is required")
	// ErrTooManyDestinations indicates a matrix request above the per-request limit
	ErrTooManyDestinations = errors.New("too many destinations for a single matrix request")
)

// RouteProviderError is returned when the mapping provider is unreachable,
// rate-limited or answers with a non-OK status.
type RouteProviderError struct {
	Op      string
	Status  string
	Message string
	Err     error
}

func (e *RouteProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gmaps %s: %s: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("gmaps %s: %s", e.Op, e.Status)
}

func (e *RouteProviderError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed
func (e *RouteProviderError) Temporary() bool {
	switch e.Status {
	case StatusOverQueryLimit, StatusUnknownError, StatusUnreachable:
		return true
	}
	return false
}

// IsUnreachable reports whether err means the provider could not be reached at all
func IsUnreachable(err error) bool {
	var rpe *RouteProviderError
	return errors.As(err, &rpe) && rpe.Status == StatusUnreachable
}

// IsRateLimited reports whether the provider rejected the call for quota reasons
func IsRateLimited(err error) bool {
	var rpe *RouteProviderError
	return errors.As(err, &rpe) && rpe.Status == StatusOverQueryLimit
}

// classify turns an error from the maps library into a RouteProviderError.
// The library reports non-OK statuses as "maps: STATUS - message".
func classify(op string, err error) *RouteProviderError {
	if err == nil {
		return nil
	}

	var rpe *RouteProviderError
	if errors.As(err, &rpe) {
		return rpe
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &RouteProviderError{Op: op, Status: StatusCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &RouteProviderError{Op: op, Status: StatusUnreachable, Message: "request timed out", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &RouteProviderError{Op: op, Status: StatusUnreachable, Message: netErr.Error(), Err: err}
	}

	if status, msg, ok := parseStatus(err.Error()); ok {
		return &RouteProviderError{Op: op, Status: status, Message: msg, Err: err}
	}

	return &RouteProviderError{Op: op, Status: StatusInvalidResponse, Message: err.Error(), Err: err}
}

func parseStatus(text string) (string, string, bool) {
	rest, ok := strings.CutPrefix(text, "maps: ")
	if !ok {
		return "", "", false
	}
	status, msg, _ := strings.Cut(rest, " - ")
	status = strings.TrimSpace(status)
	if status == "" {
		return "", "", false
	}
	for _, r := range status {
		if (r < 'A' || r > 'Z') && r != '_' {
			return "", "", false
		}
	}
	return status, strings.TrimSpace(msg), true
}
