package services

import "errors"

var (
	// ErrPositionUnavailable indicates no position has been reported for the delivery person
	ErrPositionUnavailable = errors.New("delivery person position unavailable")
	// ErrTrackingNotFound indicates there is no active tracking for the order
	ErrTrackingNotFound = errors.New("tracking not found")
	// ErrInvalidStatus indicates an unknown status value
	ErrInvalidStatus = errors.New("invalid tracking status")
	// ErrInvalidPosition indicates coordinates outside WGS84 ranges
	ErrInvalidPosition = errors.New("invalid position")
	// ErrInvalidLocation indicates a pickup or delivery location outside WGS84 ranges
	ErrInvalidLocation = errors.New("invalid pickup or delivery location")
	// ErrTrackingChanged indicates the tracking changed phase while a route was computed
	ErrTrackingChanged = errors.New("tracking changed during route computation")
)
