// Package geostamp stamps photos with a location caption and a map thumbnail.
//
// A stamp is a translucent black panel across the bottom of the photo
// holding the word-wrapped address, a coordinates line and a timestamp,
// plus an optional rounded map inset in the bottom-right corner.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"time"
//
//		"github.com/menta2k/geostamp"
//		"github.com/menta2k/geostamp/pkg/types"
//	)
//
//	func main() {
//		stamper := geostamp.New()
//
//		result, err := stamper.StampFile(context.Background(), "photo.jpg", "photo_stamped.jpg", geostamp.Caption{
//			Address: "Brandenburger Tor, Pariser Platz, 10117 Berlin",
//			Point:   &types.GeoPoint{Lat: 52.516275, Lng: 13.377704},
//			Time:    time.Now(),
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("stamp %s with %d lines", result.Outcome, len(result.Lines))
//	}
//
// The package consists of these components:
//
//  1. Layout (pkg/layout): greedy word wrapping against a measuring function
//  2. Annotate (pkg/annotate): panel, caption and map inset compositing
//  3. Mirror (pkg/mirror): front camera un-mirroring
//  4. Codec (pkg/codec): decoding with EXIF orientation, JPEG/PNG/WebP encoding
//  5. Maptile (pkg/maptile): static map and slippy tile thumbnails
//  6. Pipeline (pkg/pipeline): the full capture flow used by the CLI and server
package geostamp

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/geostamp/pkg/annotate"
	"github.com/menta2k/geostamp/pkg/codec"
	"github.com/menta2k/geostamp/pkg/maptile"
	"github.com/menta2k/geostamp/pkg/mirror"
	"github.com/menta2k/geostamp/pkg/pipeline"
	"github.com/menta2k/geostamp/pkg/raster"
	"github.com/menta2k/geostamp/pkg/types"
)

// Version of the geostamp library
const Version = "1.0.0"

// Caption is what gets printed on a photo
type Caption struct {
	Address string
	// Point adds the coordinates line and the map; nil without a fix
	Point *types.GeoPoint
	// Time is printed as the last line; zero means now
	Time time.Time
	// Front un-mirrors a front camera capture before stamping
	Front bool
}

// Stamper provides a high-level interface for stamping images
type Stamper struct {
	codec      *codec.Codec
	fetcher    *maptile.Fetcher
	compositor *annotate.Compositor
	maps       maptile.Provider
}

// New creates a Stamper with the default style and no map provider
func New() *Stamper {
	return &Stamper{
		codec:      codec.New(),
		fetcher:    maptile.NewFetcher(0, ""),
		compositor: annotate.New(),
		maps:       maptile.Noop{},
	}
}

// NewWithConfig creates a Stamper with a custom style and map provider
func NewWithConfig(style annotate.Config, maps maptile.Provider) (*Stamper, error) {
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("invalid style: %w", err)
	}
	if maps == nil {
		maps = maptile.Noop{}
	}
	return &Stamper{
		codec:      codec.New(),
		fetcher:    maptile.NewFetcher(0, ""),
		compositor: annotate.NewWithConfig(style),
		maps:       maps,
	}, nil
}

// LoadImage loads an image from a file path or an http(s) URL, applying
// its EXIF orientation
func (s *Stamper) LoadImage(source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return s.fetcher.Get(context.Background(), source)
	}
	return s.codec.Load(source)
}

// SaveImage encodes img by the extension of path, creating the directory
func (s *Stamper) SaveImage(img image.Image, path string, quality int) error {
	format, err := codec.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := s.codec.Encode(f, img, codec.Options{Format: format, Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return f.Close()
}

// Stamp returns a stamped copy of img; img itself is not modified
func (s *Stamper) Stamp(ctx context.Context, img image.Image, c Caption) (*raster.Image, annotate.Result, error) {
	buf, err := raster.FromImage(img, raster.RGBA)
	if err != nil {
		return nil, annotate.Result{}, err
	}
	if c.Front {
		if err := mirror.Horizontal(buf); err != nil {
			return nil, annotate.Result{}, err
		}
	}

	ts := c.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	req := annotate.Request{
		Caption:   c.Address,
		Geo:       c.Point,
		Timestamp: types.FormatCaptionTime(ts),
	}
	if c.Point != nil && c.Point.Validate() == nil {
		req.Map = s.maps.Fetch(ctx, *c.Point)
	}

	result, err := s.compositor.Annotate(buf, req)
	if err != nil {
		return nil, result, err
	}
	return buf, result, nil
}

// StampFile is a convenience function that loads, stamps and saves an image
func (s *Stamper) StampFile(ctx context.Context, inputPath, outputPath string, c Caption) (annotate.Result, error) {
	img, err := s.LoadImage(inputPath)
	if err != nil {
		return annotate.Result{}, fmt.Errorf("failed to load image: %w", err)
	}

	stamped, result, err := s.Stamp(ctx, img, c)
	if err != nil {
		return result, fmt.Errorf("stamping failed: %w", err)
	}

	if err := s.SaveImage(stamped, outputPath, 0); err != nil {
		return result, fmt.Errorf("failed to save image: %w", err)
	}
	return result, nil
}

// Pipeline returns a capture pipeline sharing the Stamper style and maps
func (s *Stamper) Pipeline(opts ...pipeline.Option) *pipeline.Pipeline {
	base := []pipeline.Option{pipeline.WithCodec(s.codec), pipeline.WithMapProvider(s.maps)}
	return pipeline.New(s.compositor, append(base, opts...)...)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
