// Package maptile fetches the small map thumbnail shown next to a caption.
//
// Providers never return errors: a network failure, an unexpected response
// or an undecodable body all yield a nil image, which the compositor treats
// as "no map".
package maptile

import (
	"context"
	"image"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/geostamp/pkg/types"
)

const (
	DefaultUserAgent = "geostamp/1.0 (+https://github.com/menta2k/geostamp)"
	DefaultZoom      = 16
	DefaultSize      = 400

	// DefaultStaticURL follows the Google Static Maps request format
	DefaultStaticURL = "https://maps.googleapis.com/maps/api/staticmap" +
		"?center={lat},{lng}&zoom={zoom}&size={size}x{size}" +
		"&markers=color:red%7C{lat},{lng}&key={key}"

	// DefaultTileURL is the OpenStreetMap standard tile layer
	DefaultTileURL = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
)

// Provider returns a decoded map image centred on a point, or nil
type Provider interface {
	Fetch(ctx context.Context, p types.GeoPoint) image.Image
}

// Config holds the settings shared by the HTTP providers
type Config struct {
	URL       string
	APIKey    string
	Zoom      int
	Size      int
	Timeout   time.Duration
	UserAgent string
	Logger    *log.Logger
}

func (c Config) withDefaults(url string) Config {
	if c.URL == "" {
		c.URL = url
	}
	if c.Zoom <= 0 {
		c.Zoom = DefaultZoom
	}
	if c.Size <= 0 {
		c.Size = DefaultSize
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Noop never returns a map
type Noop struct{}

// Fetch implements Provider
func (Noop) Fetch(context.Context, types.GeoPoint) image.Image {
	return nil
}

// StaticProvider requests a ready-made map image from a URL template.
// The template may use {lat}, {lng}, {zoom}, {size} and {key}.
type StaticProvider struct {
	config  Config
	fetcher *Fetcher
}

// NewStaticProvider creates a static map provider
func NewStaticProvider(config Config) *StaticProvider {
	config = config.withDefaults(DefaultStaticURL)
	return &StaticProvider{
		config:  config,
		fetcher: NewFetcher(config.Timeout, config.UserAgent),
	}
}

// URL expands the template for p
func (s *StaticProvider) URL(p types.GeoPoint) string {
	return strings.NewReplacer(
		"{lat}", strconv.FormatFloat(p.Lat, 'f', -1, 64),
		"{lng}", strconv.FormatFloat(p.Lng, 'f', -1, 64),
		"{zoom}", strconv.Itoa(s.config.Zoom),
		"{size}", strconv.Itoa(s.config.Size),
		"{key}", s.config.APIKey,
	).Replace(s.config.URL)
}

// Fetch implements Provider
func (s *StaticProvider) Fetch(ctx context.Context, p types.GeoPoint) image.Image {
	img, err := s.fetcher.Get(ctx, s.URL(p))
	if err != nil {
		s.config.Logger.Printf("static map unavailable for %v,%v: %v", p.Lat, p.Lng, err)
		return nil
	}
	return img
}
