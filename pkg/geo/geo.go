// Package geo defines the geolocation collaborator contract. Acquisition
// itself is host-mediated and out of scope; this package carries the
// position shape and the error taxonomy surfaced to the flow.
package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies geolocation failures.
type Kind string

const (
	PermissionDenied    Kind = "PERMISSION_DENIED"
	NotSupported        Kind = "NOT_SUPPORTED"
	PositionUnavailable Kind = "POSITION_UNAVAILABLE"
	Timeout             Kind = "TIMEOUT"
)

// Error is a geolocation failure. Each kind maps to a dedicated
// explanatory message in the UI layer; none are retried automatically.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("geolocation failed: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("geolocation failed: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Coordinates is the latitude/longitude pair of a position fix.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Position is a single geolocation fix.
type Position struct {
	Coords Coordinates `json:"coords"`
}

// Provider resolves the current position exactly once per call: it either
// returns a fix or fails with one of the Kind errors.
type Provider interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// Normalize folds an arbitrary provider error into a *Error. Host
// platforms word permission failures inconsistently, so anything
// mentioning a denial maps to PermissionDenied.
func Normalize(err error) *Error {
	var geoErr *Error
	if errors.As(err, &geoErr) {
		return geoErr
	}
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "denied") {
		return &Error{Kind: PermissionDenied, Cause: err}
	}
	return &Error{Kind: PositionUnavailable, Cause: err}
}
