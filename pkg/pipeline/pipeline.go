// Package pipeline runs a capture through decode, mirror, locate, map,
// annotate, encode and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/menta2k/geostamp/pkg/annotate"
	"github.com/menta2k/geostamp/pkg/codec"
	"github.com/menta2k/geostamp/pkg/locate"
	"github.com/menta2k/geostamp/pkg/maptile"
	"github.com/menta2k/geostamp/pkg/mirror"
	"github.com/menta2k/geostamp/pkg/raster"
	"github.com/menta2k/geostamp/pkg/store"
	"github.com/menta2k/geostamp/pkg/types"
)

// ErrDecode marks captures that could not be decoded
var ErrDecode = errors.New("cannot decode capture")

// Session carries the per-capture state
type Session struct {
	Facing types.Facing
	// Store persists the encoded result through the pipeline store
	Store bool
	// Name overrides the capture file name
	Name string
	// Time is the capture time; zero uses the pipeline clock
	Time time.Time
	// Locator overrides the pipeline locator for this capture
	Locator locate.Locator
	// SkipMap disables the map inset for this capture
	SkipMap bool
}

// Result is what a processed capture produced
type Result struct {
	Image      *raster.Image
	Encoded    []byte
	Format     codec.Format
	Path       string
	Annotation annotate.Result
	Location   types.Location
}

// Pipeline wires the stamping collaborators together
type Pipeline struct {
	codec      *codec.Codec
	compositor *annotate.Compositor
	locator    locate.Locator
	maps       maptile.Provider
	store      store.Store
	output     codec.Options
	logger     *log.Logger
	now        func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLocator sets the default locator
func WithLocator(l locate.Locator) Option {
	return func(p *Pipeline) { p.locator = l }
}

// WithMapProvider sets the map thumbnail source
func WithMapProvider(m maptile.Provider) Option {
	return func(p *Pipeline) { p.maps = m }
}

// WithStore sets where stored sessions are persisted
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithOutput sets the encoding of Result.Encoded
func WithOutput(opts codec.Options) Option {
	if opts.Format == "" {
		opts.Format = codec.JPEG
	}
	return func(p *Pipeline) { p.output = opts }
}

// WithCodec replaces the default codec
func WithCodec(c *codec.Codec) Option {
	return func(p *Pipeline) { p.codec = c }
}

// WithLogger sets the logger used for collaborator failures
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the time source for captions and file names
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline around a compositor
func New(compositor *annotate.Compositor, opts ...Option) *Pipeline {
	if compositor == nil {
		compositor = annotate.New()
	}
	p := &Pipeline{
		codec:      codec.New(),
		compositor: compositor,
		maps:       maptile.Noop{},
		output:     codec.Options{Format: codec.JPEG},
		logger:     log.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type fix struct {
	location types.Location
	mapImage image.Image
}

// Process stamps one encoded capture.
//
// Location and map lookups run while the capture is decoded and mirrored.
// A decode failure is returned as an error. Missing location or map data
// degrade the caption. A persist failure is returned together with the
// annotated result.
func (p *Pipeline) Process(ctx context.Context, src []byte, s Session) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	locator := s.Locator
	if locator == nil {
		locator = p.locator
	}
	fixes := make(chan fix, 1)
	go func() {
		fixes <- p.lookup(ctx, locator, s.SkipMap)
	}()

	decoded, format, err := p.codec.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	img, err := raster.FromImage(decoded, raster.RGBA)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if s.Facing == types.FacingFront {
		if err := mirror.Horizontal(img); err != nil {
			return nil, err
		}
	}

	var f fix
	select {
	case f = <-fixes:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ts := s.Time
	if ts.IsZero() {
		ts = p.now()
	}
	req := annotate.Request{
		Caption:   f.location.Address,
		Timestamp: types.FormatCaptionTime(ts),
		Map:       f.mapImage,
	}
	if f.location.Fixed {
		point := f.location.Point
		req.Geo = &point
	}

	annotation, err := p.compositor.Annotate(img, req)
	if err != nil {
		return nil, err
	}
	if !annotation.Annotated() {
		p.logger.Printf("capture left unannotated (%s): %s", format, annotation.Reason)
	}

	res := &Result{
		Image:      img,
		Format:     p.output.Format,
		Annotation: annotation,
		Location:   f.location,
	}
	if res.Encoded, err = p.codec.EncodeBytes(img, p.output); err != nil {
		return res, fmt.Errorf("encode capture: %w", err)
	}

	if s.Store && p.store != nil {
		name := s.Name
		if name == "" {
			name = store.CaptureName(ts)
		}
		if res.Path, err = p.store.Save(img, name); err != nil {
			p.logger.Printf("failed to persist capture %s: %v", name, err)
			return res, fmt.Errorf("persist capture: %w", err)
		}
	}
	return res, nil
}

// lookup resolves the location and, with a fix, the map thumbnail
func (p *Pipeline) lookup(ctx context.Context, l locate.Locator, skipMap bool) fix {
	loc, err := locate.Resolve(ctx, l)
	if err != nil {
		p.logger.Printf("location unavailable: %v", err)
	}
	f := fix{location: loc}
	if loc.Fixed && !skipMap && p.maps != nil {
		f.mapImage = p.maps.Fetch(ctx, loc.Point)
	}
	return f
}
