package types

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Timestamp layouts used for captions and capture file names
const (
	CaptionTimeLayout = "02 Jan 2006 | 03:04 PM"
	FileTimeLayout    = "20060102_150405"
)

// GeoPoint is a latitude/longitude pair in degrees
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that both coordinates are finite and within range
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("geo point has non-finite coordinates")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Lng)
	}
	return nil
}

// CoordinatesLine renders the point as a caption line, keeping the raw values
func (p GeoPoint) CoordinatesLine() string {
	return "Lat: " + strconv.FormatFloat(p.Lat, 'f', -1, 64) +
		"  Lng: " + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// Location is what the location collaborator hands to the pipeline.
// Fixed is false when Address holds a placeholder and Point is meaningless.
type Location struct {
	Address string   `json:"address"`
	Point   GeoPoint `json:"point"`
	Fixed   bool     `json:"fixed"`
}

// Facing identifies the camera sensor a capture came from
type Facing string

const (
	FacingBack  Facing = "back"
	FacingFront Facing = "front"
)

// ParseFacing accepts "back", "front" and the empty string (back)
func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case "", FacingBack:
		return FacingBack, nil
	case FacingFront:
		return FacingFront, nil
	}
	return "", fmt.Errorf("unknown camera facing %q", s)
}

// Outcome reports whether an annotation was applied
type Outcome string

const (
	OutcomeAnnotated Outcome = "annotated"
	OutcomeSkipped   Outcome = "skipped"
)

// FormatCaptionTime formats t the way caption timestamps are printed
func FormatCaptionTime(t time.Time) string {
	return t.Format(CaptionTimeLayout)
}
