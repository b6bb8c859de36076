// Package locate supplies the caption location for a capture.
package locate

import (
	"context"
	"errors"

	"github.com/menta2k/geostamp/pkg/types"
)

var (
	ErrPermissionDenied = errors.New("location permission not granted")
	ErrUnavailable      = errors.New("location unavailable")
)

// Locator resolves the current location.
type Locator interface {
	Locate(ctx context.Context) (types.Location, error)
}

// Static always reports the same location
type Static struct {
	Location types.Location
	Err      error
}

// NewStatic returns a locator with a fix at p described by address
func NewStatic(address string, p types.GeoPoint) *Static {
	return &Static{Location: types.Location{Address: address, Point: p, Fixed: true}}
}

// Locate implements Locator
func (s *Static) Locate(ctx context.Context) (types.Location, error) {
	if err := ctx.Err(); err != nil {
		return types.Location{}, err
	}
	if s.Err != nil {
		return types.Location{}, s.Err
	}
	return s.Location, nil
}

// Placeholder is the caption text shown when no location could be resolved
func Placeholder(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Location permission not granted"
	case errors.Is(err, ErrUnavailable):
		return "Location unavailable"
	}
	return "Location error"
}

// Resolve asks l for a location and falls back to a placeholder caption
// without a fix. A nil locator is treated as unavailable.
func Resolve(ctx context.Context, l Locator) (types.Location, error) {
	if l == nil {
		return types.Location{Address: Placeholder(ErrUnavailable)}, ErrUnavailable
	}
	loc, err := l.Locate(ctx)
	if err != nil {
		return types.Location{Address: Placeholder(err)}, err
	}
	if loc.Fixed {
		if verr := loc.Point.Validate(); verr != nil {
			return types.Location{Address: Placeholder(ErrUnavailable)}, verr
		}
	}
	return loc, nil
}
