package maptile

import (
	"context"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/menta2k/geostamp/pkg/types"
)

// TileSize is the edge of a slippy map tile in pixels
const TileSize = 256

var (
	tileBackground = color.NRGBA{229, 227, 223, 255}
	markerFill     = color.NRGBA{220, 40, 40, 255}
)

// TileProvider builds a map from a slippy tile server ({z}/{x}/{y}).
// The 3x3 tiles around the point are stitched, a square centred on the
// point is cropped out and a marker is drawn on it.
type TileProvider struct {
	config  Config
	fetcher *Fetcher
}

// NewTileProvider creates a tile provider; Size is capped at two tiles
func NewTileProvider(config Config) *TileProvider {
	config = config.withDefaults(DefaultTileURL)
	if config.Size > 2*TileSize {
		config.Size = 2 * TileSize
	}
	return &TileProvider{
		config:  config,
		fetcher: NewFetcher(config.Timeout, config.UserAgent),
	}
}

// WorldPixel converts lat/lon to global pixel coordinates at a zoom level
// http://wiki.openstreetmap.org/wiki/Slippy_map_tilenames
func WorldPixel(lat, lon float64, zoom int) (float64, float64) {
	latRad := lat * math.Pi / 180
	n := float64(uint64(1)<<uint(zoom)) * TileSize
	x := n * (lon + 180) / 360
	y := n * (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2
	return x, y
}

// BuildURL replaces URL template tokens
func BuildURL(template string, zoom, x, y int) string {
	url := strings.NewReplacer(
		"{z}", strconv.Itoa(zoom),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	).Replace(template)
	if strings.Contains(url, "{s}") {
		subdomain := string(rune('a' + (x+y)%3))
		url = strings.ReplaceAll(url, "{s}", subdomain)
	}
	return url
}

// Fetch implements Provider
func (t *TileProvider) Fetch(ctx context.Context, p types.GeoPoint) image.Image {
	zoom := t.config.Zoom
	n := 1 << uint(zoom)
	wx, wy := WorldPixel(p.Lat, p.Lng, zoom)
	if math.IsNaN(wx) || math.IsNaN(wy) || math.IsInf(wy, 0) {
		t.config.Logger.Printf("tile map unavailable: cannot project %v,%v", p.Lat, p.Lng)
		return nil
	}
	cx, cy := int(wx)/TileSize, int(wy)/TileSize

	canvas := image.NewNRGBA(image.Rect(0, 0, 3*TileSize, 3*TileSize))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(tileBackground), image.Point{}, draw.Src)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		centreOK bool
	)
	for j := -1; j <= 1; j++ {
		for i := -1; i <= 1; i++ {
			ty := cy + j
			if ty < 0 || ty >= n {
				continue
			}
			tx := ((cx+i)%n + n) % n
			dst := image.Pt((i+1)*TileSize, (j+1)*TileSize)
			centre := i == 0 && j == 0

			wg.Add(1)
			go func() {
				defer wg.Done()
				url := BuildURL(t.config.URL, zoom, tx, ty)
				tile, err := t.fetcher.Get(ctx, url)
				if err != nil {
					t.config.Logger.Printf("tile %d/%d/%d unavailable: %v", zoom, tx, ty, err)
					return
				}
				if b := tile.Bounds(); b.Dx() != TileSize || b.Dy() != TileSize {
					tile = imaging.Resize(tile, TileSize, TileSize, imaging.Lanczos)
				}
				mu.Lock()
				defer mu.Unlock()
				draw.Draw(canvas, image.Rectangle{Min: dst, Max: dst.Add(image.Pt(TileSize, TileSize))}, tile, tile.Bounds().Min, draw.Src)
				if centre {
					centreOK = true
				}
			}()
		}
	}
	wg.Wait()

	if !centreOK {
		return nil
	}

	// point position on the canvas, whose origin is tile (cx-1, cy-1)
	px := int(wx) - (cx-1)*TileSize
	py := int(wy) - (cy-1)*TileSize
	half := t.config.Size / 2
	crop := imaging.Crop(canvas, image.Rect(px-half, py-half, px-half+t.config.Size, py-half+t.config.Size))

	drawMarker(crop, image.Pt(half, half), max(t.config.Size/40, 3))
	return crop
}

// circle is an alpha mask of a filled disc
type circle struct {
	p image.Point
	r int
}

func (c *circle) ColorModel() color.Model {
	return color.AlphaModel
}

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(c.p.X-c.r, c.p.Y-c.r, c.p.X+c.r, c.p.Y+c.r)
}

func (c *circle) At(x, y int) color.Color {
	xx, yy, rr := float64(x-c.p.X)+0.5, float64(y-c.p.Y)+0.5, float64(c.r)
	if xx*xx+yy*yy < rr*rr {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

// drawMarker draws a white-ringed red dot at p
func drawMarker(dst draw.Image, p image.Point, r int) {
	ring := &circle{p: p, r: r + r/2}
	draw.DrawMask(dst, ring.Bounds(), image.NewUniform(color.White), image.Point{}, ring, ring.Bounds().Min, draw.Over)
	dot := &circle{p: p, r: r}
	draw.DrawMask(dst, dot.Bounds(), image.NewUniform(markerFill), image.Point{}, dot, dot.Bounds().Min, draw.Over)
}
