package services

import "errors"

var (
	// ErrNoStops indicates a round or route request without stops
	ErrNoStops = errors.New("at least one stop is required")
	// ErrNoRouteAvailable indicates no provider route, cached route or position to approximate from
	ErrNoRouteAvailable = errors.New("no route available")
	// ErrRoundNotFound indicates the courier has no active round
	ErrRoundNotFound = errors.New("round not found")
	// ErrRoundFinished indicates every step of the round was already handled
	ErrRoundFinished = errors.New("round has no current step")
	// ErrSkipReasonRequired indicates a skip without a reason
	ErrSkipReasonRequired = errors.New("skip reason is required")
	// ErrInvalidStop indicates a stop with a missing order or out of range location
	ErrInvalidStop = errors.New("invalid stop")
	// ErrDuplicateStop indicates the same order appears twice in a round
	ErrDuplicateStop = errors.New("duplicate order in round")
	// ErrInvalidTile indicates tile coordinates outside the grid
	ErrInvalidTile = errors.New("invalid tile")
	// ErrTileUnavailable indicates a tile that is not cached while offline
	ErrTileUnavailable = errors.New("tile not cached and provider offline")
)
