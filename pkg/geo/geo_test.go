package geo

import (
	"errors"
	"testing"
)

func TestNormalizePassesThroughGeoErrors(t *testing.T) {
	original := &Error{Kind: Timeout, Cause: errors.New("took too long")}
	normalized := Normalize(original)
	var geoErr *Error
	if !errors.As(normalized, &geoErr) || geoErr.Kind != Timeout {
		t.Fatalf("got %v, want timeout error", normalized)
	}
}

func TestNormalizeClassifiesDenials(t *testing.T) {
	normalized := Normalize(errors.New("User denied Geolocation"))
	var geoErr *Error
	if !errors.As(normalized, &geoErr) {
		t.Fatalf("got %T, want *Error", normalized)
	}
	if geoErr.Kind != PermissionDenied {
		t.Fatalf("got %v, want PermissionDenied", geoErr.Kind)
	}
}

func TestNormalizeDefaultsToUnavailable(t *testing.T) {
	normalized := Normalize(errors.New("no fix"))
	var geoErr *Error
	if !errors.As(normalized, &geoErr) {
		t.Fatalf("got %T, want *Error", normalized)
	}
	if geoErr.Kind != PositionUnavailable {
		t.Fatalf("got %v, want PositionUnavailable", geoErr.Kind)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Kind: NotSupported, Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not reachable through Unwrap")
	}
}
