// Package annotate stamps a caption panel and an optional map inset onto a photo.
//
// The caption is laid out with the layout package using a font size derived
// from the image width, drawn in white over a translucent black panel flush
// with the bottom edge. The map inset, when present, is resized to a square
// and anchored to the bottom-right corner, in the column the caption leaves
// free.
//
// Composition runs on a private copy of the pixels; the caller's buffer is
// only written once the whole stamp has been rendered.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/menta2k/geostamp/pkg/layout"
	"github.com/menta2k/geostamp/pkg/raster"
	"github.com/menta2k/geostamp/pkg/types"
)

// Config holds the style of the stamp
type Config struct {
	// PanelAlpha is the opacity of the black caption panel
	PanelAlpha uint8
	// ReserveMapColumn keeps the right third free even without a map
	ReserveMapColumn bool
	// MapScale is the map side as a fraction of the image width
	MapScale float64
	// MapFrame draws a white rounded backing behind the map
	MapFrame        bool
	MapFrameMargin  int
	MapCornerRadius int
	// FontPath selects a TrueType/OpenType file; empty uses Go Regular
	FontPath  string
	TextColor color.Color
}

// DefaultConfig returns the standard stamp style
func DefaultConfig() Config {
	return Config{
		PanelAlpha:       170,
		ReserveMapColumn: true,
		MapScale:         0.28,
		MapFrame:         true,
		MapFrameMargin:   6,
		MapCornerRadius:  16,
		TextColor:        color.White,
	}
}

// Validate checks the configuration ranges
func (c Config) Validate() error {
	if c.MapScale < 0.25 || c.MapScale > 0.28 {
		return fmt.Errorf("map scale must be between 0.25 and 0.28, got %v", c.MapScale)
	}
	if c.MapFrameMargin < 0 {
		return fmt.Errorf("map frame margin must not be negative")
	}
	if c.MapCornerRadius < 0 {
		return fmt.Errorf("map corner radius must not be negative")
	}
	return nil
}

// Compositor renders caption stamps
type Compositor struct {
	config Config
}

// New creates a Compositor with the default style
func New() *Compositor {
	return &Compositor{config: DefaultConfig()}
}

// NewWithConfig creates a Compositor with a custom style
func NewWithConfig(config Config) *Compositor {
	if config.TextColor == nil {
		config.TextColor = color.White
	}
	return &Compositor{config: config}
}

// Config returns the style in use
func (c *Compositor) Config() Config {
	return c.config
}

// Request is the content of one stamp
type Request struct {
	// Caption is free text, usually the address; newlines start new rows
	Caption string
	// Geo adds the coordinates line; nil when there is no location fix
	Geo *types.GeoPoint
	// Timestamp is printed verbatim as the last line
	Timestamp string
	// Map is the decoded map thumbnail, nil when unavailable
	Map image.Image
}

// Result describes what Annotate did
type Result struct {
	Outcome types.Outcome   `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`
	Lines   []string        `json:"lines,omitempty"`
	Metrics Metrics         `json:"metrics"`
	Panel   image.Rectangle `json:"panel"`
	Inset   image.Rectangle `json:"inset"`
}

// Annotated reports whether the stamp was applied
func (r Result) Annotated() bool {
	return r.Outcome == types.OutcomeAnnotated
}

func skipped(m Metrics, format string, args ...interface{}) Result {
	return Result{Outcome: types.OutcomeSkipped, Reason: fmt.Sprintf(format, args...), Metrics: m}
}

// MaxTextWidth is the width budget for caption rows
func (c *Compositor) MaxTextWidth(width int, hasMap bool) int {
	if c.config.ReserveMapColumn || hasMap {
		return width - width/3
	}
	return width - 2*MetricsFor(width).Padding
}

// Lines lays out the caption rows for an image of the given width
func (c *Compositor) Lines(req Request, measure layout.MeasureFunc, width int) []string {
	maxWidth := c.MaxTextWidth(width, req.Map != nil)
	lines := layout.Wrap(req.Caption, measure, float64(maxWidth))
	if req.Geo != nil {
		lines = append(lines, req.Geo.CoordinatesLine())
	}
	return append(lines, req.Timestamp)
}

// Annotate stamps img in place.
//
// An invalid buffer is an error. Requests that cannot be rendered (bad
// coordinates, unusable font, image too narrow) return a skipped Result and
// leave img untouched.
func (c *Compositor) Annotate(img *raster.Image, req Request) (Result, error) {
	if err := img.Validate(); err != nil {
		return Result{}, fmt.Errorf("annotate: %w", err)
	}

	width, height := img.Width, img.Height
	m := MetricsFor(width)
	if m.TextSize <= 0 {
		return skipped(m, "image width %d is too small for a caption", width), nil
	}
	if req.Geo != nil {
		if err := req.Geo.Validate(); err != nil {
			return skipped(m, "invalid location: %v", err), nil
		}
	}

	face, err := layout.LoadFace(float64(m.TextSize), c.config.FontPath)
	if err != nil {
		return skipped(m, "font unavailable: %v", err), nil
	}
	defer face.Close()

	lines := c.Lines(req, layout.FaceMeasure(face), width)
	panel := m.PanelRect(width, height, len(lines))

	work := img.NRGBA()
	fillRect(work, panel, color.NRGBA{0, 0, 0, c.config.PanelAlpha})
	drawLines(work, face, c.config.TextColor, lines, m.Padding, panel.Min.Y+m.Padding+m.TextSize, m.LineGap)

	var inset image.Rectangle
	if req.Map != nil {
		inset = c.drawMap(work, req.Map, m)
	}

	if err := img.CopyFrom(work); err != nil {
		return Result{}, fmt.Errorf("annotate: %w", err)
	}

	return Result{
		Outcome: types.OutcomeAnnotated,
		Lines:   lines,
		Metrics: m,
		Panel:   panel.Intersect(image.Rect(0, 0, width, height)),
		Inset:   inset,
	}, nil
}

// drawMap composites the map thumbnail and returns the area it covers
func (c *Compositor) drawMap(dst *image.NRGBA, src image.Image, m Metrics) image.Rectangle {
	b := dst.Bounds()
	size := int(float64(b.Dx()) * c.config.MapScale)
	if size <= 0 || src.Bounds().Empty() {
		return image.Rectangle{}
	}

	inset := m.InsetRect(b.Dx(), b.Dy(), size)
	radius := c.config.MapCornerRadius
	if c.config.MapFrame {
		fillRoundedRect(dst, inset.Inset(-c.config.MapFrameMargin), radius, color.White)
		radius -= c.config.MapFrameMargin
	}

	scaled := imaging.Resize(src, size, size, imaging.Lanczos)
	drawRounded(dst, inset, scaled, radius)
	return inset
}
