package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/geostamp/pkg/layout"
	"github.com/menta2k/geostamp/pkg/raster"
	"github.com/menta2k/geostamp/pkg/types"
)

// createTestImage creates a flat grey photo
func createTestImage(t testing.TB, width, height int, format raster.Format) *raster.Image {
	t.Helper()
	src := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 200, 200, 200, 255
	}
	img, err := raster.FromImage(src, format)
	require.NoError(t, err)
	return img
}

func createMap(width, height int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pixel(img *raster.Image, x, y int) color.NRGBA {
	return img.At(x, y).(color.NRGBA)
}

func endToEndRequest() Request {
	return Request{
		Caption:   "123 Main St",
		Geo:       &types.GeoPoint{Lat: 37.422, Lng: -122.084},
		Timestamp: "01 Jan 2024 | 12:00 PM",
	}
}

func TestMetricsFor(t *testing.T) {
	m := MetricsFor(1200)
	assert.Equal(t, Metrics{Padding: 20, TextSize: 42, LineGap: 52}, m)
	assert.Equal(t, 3*52+40, m.PanelHeight(3))
	assert.Equal(t, image.Rect(0, 1600-196, 1200, 1600), m.PanelRect(1200, 1600, 3))

	assert.Equal(t, Metrics{Padding: 18, TextSize: 38, LineGap: 47}, MetricsFor(1080))
	assert.Equal(t, Metrics{Padding: 0, TextSize: 1, LineGap: 1}, MetricsFor(28))
}

func TestMaxTextWidth(t *testing.T) {
	c := New()
	assert.Equal(t, 800, c.MaxTextWidth(1200, false))
	assert.Equal(t, 800, c.MaxTextWidth(1200, true))

	cfg := DefaultConfig()
	cfg.ReserveMapColumn = false
	c = NewWithConfig(cfg)
	assert.Equal(t, 1160, c.MaxTextWidth(1200, false))
	assert.Equal(t, 800, c.MaxTextWidth(1200, true))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MapScale = 0.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MapFrameMargin = -1
	assert.Error(t, cfg.Validate())
}

func TestAnnotateEndToEnd(t *testing.T) {
	img := createTestImage(t, 1200, 1600, raster.RGBA)

	res, err := New().Annotate(img, endToEndRequest())
	require.NoError(t, err)
	require.True(t, res.Annotated())

	assert.Equal(t, 1200, img.Width)
	assert.Equal(t, 1600, img.Height)
	assert.Equal(t, []string{"123 Main St", "Lat: 37.422  Lng: -122.084", "01 Jan 2024 | 12:00 PM"}, res.Lines)
	assert.Equal(t, image.Rect(0, 1404, 1200, 1600), res.Panel)
	assert.True(t, res.Inset.Empty())

	// untouched above the panel
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, pixel(img, 1, 1403))
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, pixel(img, 600, 10))

	// panel background: 200 * (255-170)/255
	bg := pixel(img, 1, 1599)
	assert.InDelta(t, 67, int(bg.R), 2)
	assert.Equal(t, bg.R, bg.G)
	assert.Equal(t, uint8(255), bg.A)

	// each row carries bright glyph pixels inside its band
	for i := range res.Lines {
		baseline := 1404 + 20 + 42 + i*52
		assert.Greater(t, countBright(img, image.Rect(20, baseline-42, 820, baseline+10)), 50, "line %d", i)
	}

	// reserved right column stays plain panel
	assert.Zero(t, countBright(img, image.Rect(850, 1404, 1200, 1600)))
}

func countBright(img *raster.Image, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if p := pixel(img, x, y); p.R > 180 && p.G > 180 && p.B > 180 {
				n++
			}
		}
	}
	return n
}

func TestAnnotateMapOnlyTouchesInset(t *testing.T) {
	withMap := createTestImage(t, 600, 400, raster.RGBA)
	withoutMap := withMap.Clone()

	req := endToEndRequest()
	req.Map = createMap(100, 100, color.NRGBA{220, 0, 0, 255})
	res, err := New().Annotate(withMap, req)
	require.NoError(t, err)
	require.False(t, res.Inset.Empty())

	req.Map = nil
	_, err = New().Annotate(withoutMap, req)
	require.NoError(t, err)

	frame := res.Inset.Inset(-DefaultConfig().MapFrameMargin)
	changed := 0
	for y := 0; y < withMap.Height; y++ {
		for x := 0; x < withMap.Width; x++ {
			same := pixel(withMap, x, y) == pixel(withoutMap, x, y)
			if image.Pt(x, y).In(frame) {
				if !same {
					changed++
				}
				continue
			}
			require.True(t, same, "pixel (%d,%d) outside the map frame changed", x, y)
		}
	}
	assert.Positive(t, changed)

	centre := image.Pt((res.Inset.Min.X+res.Inset.Max.X)/2, (res.Inset.Min.Y+res.Inset.Max.Y)/2)
	assert.NotEqual(t, pixel(withoutMap, centre.X, centre.Y), pixel(withMap, centre.X, centre.Y))
	assert.Equal(t, uint8(0), pixel(withMap, centre.X, centre.Y).G)
}

func TestAnnotateMapInset(t *testing.T) {
	img := createTestImage(t, 1200, 1600, raster.RGBA)
	req := endToEndRequest()
	req.Map = createMap(400, 400, color.NRGBA{255, 0, 0, 255})

	res, err := New().Annotate(img, req)
	require.NoError(t, err)
	require.True(t, res.Annotated())

	size := int(1200 * 0.28)
	want := image.Rect(1200-size-20, 1600-size-20, 1200-20, 1600-20)
	assert.Equal(t, want, res.Inset)

	centre := pixel(img, (want.Min.X+want.Max.X)/2, (want.Min.Y+want.Max.Y)/2)
	assert.InDelta(t, 255, int(centre.R), 1)
	assert.InDelta(t, 0, int(centre.G), 1)

	// white frame left of the map, clipped map corner shows the frame
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, pixel(img, want.Min.X-3, want.Min.Y+size/2))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, pixel(img, want.Min.X, want.Min.Y))

	// outside the frame corner the photo is unchanged
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, pixel(img, want.Min.X-6, want.Min.Y-6))
}

func TestAnnotateMapWithoutFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapFrame = false
	img := createTestImage(t, 1200, 1600, raster.RGBA)
	req := endToEndRequest()
	req.Map = createMap(256, 128, color.NRGBA{0, 0, 255, 255})

	res, err := NewWithConfig(cfg).Annotate(img, req)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, pixel(img, res.Inset.Min.X-3, res.Inset.Min.Y+50))
	edge := pixel(img, res.Inset.Min.X, res.Inset.Min.Y+100)
	assert.InDelta(t, 255, int(edge.B), 1)
}

func TestAnnotateRGBMatchesRGBA(t *testing.T) {
	rgba := createTestImage(t, 840, 600, raster.RGBA)
	rgb := createTestImage(t, 840, 600, raster.RGB)
	req := endToEndRequest()
	req.Map = createMap(64, 64, color.NRGBA{10, 120, 30, 255})

	_, err := New().Annotate(rgba, req)
	require.NoError(t, err)
	_, err = New().Annotate(rgb, req)
	require.NoError(t, err)

	for y := 0; y < 600; y += 7 {
		for x := 0; x < 840; x += 5 {
			require.Equal(t, pixel(rgba, x, y), pixel(rgb, x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestAnnotateWrapsLongCaption(t *testing.T) {
	img := createTestImage(t, 1200, 1600, raster.RGBA)
	req := endToEndRequest()
	req.Caption = "1600 Amphitheatre Parkway, Mountain View, Santa Clara County, California 94043, United States"

	res, err := New().Annotate(img, req)
	require.NoError(t, err)
	require.Greater(t, len(res.Lines), 3)

	face, err := layout.LoadFace(42, "")
	require.NoError(t, err)
	measure := layout.FaceMeasure(face)
	for _, line := range res.Lines[:len(res.Lines)-2] {
		assert.LessOrEqual(t, measure(line), 800.0, "line %q", line)
	}
	assert.Equal(t, res.Metrics.PanelHeight(len(res.Lines)), res.Panel.Dy())
}

func TestAnnotateWithoutFix(t *testing.T) {
	img := createTestImage(t, 600, 800, raster.RGB)
	res, err := New().Annotate(img, Request{Caption: "Location unavailable", Timestamp: "01 Jan 2024 | 12:00 PM"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Location unavailable", "01 Jan 2024 | 12:00 PM"}, res.Lines)
}

func TestAnnotateSkipsWithoutTouchingImage(t *testing.T) {
	tests := []struct {
		name  string
		width int
		req   Request
	}{
		{"latitude out of range", 600, Request{Caption: "x", Geo: &types.GeoPoint{Lat: 91, Lng: 0}}},
		{"too narrow", 20, endToEndRequest()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createTestImage(t, tt.width, 400, raster.RGBA)
			orig := img.Clone()

			res, err := New().Annotate(img, tt.req)
			require.NoError(t, err)
			assert.Equal(t, types.OutcomeSkipped, res.Outcome)
			assert.NotEmpty(t, res.Reason)
			assert.Equal(t, orig.Pix, img.Pix)
		})
	}
}

func TestAnnotateSkipsOnMissingFont(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FontPath = "/nonexistent/font.ttf"
	img := createTestImage(t, 600, 400, raster.RGBA)
	orig := img.Clone()

	res, err := NewWithConfig(cfg).Annotate(img, endToEndRequest())
	require.NoError(t, err)
	assert.False(t, res.Annotated())
	assert.Equal(t, orig.Pix, img.Pix)
}

func TestAnnotateInvalidImage(t *testing.T) {
	_, err := New().Annotate(&raster.Image{Width: 10, Height: 10, Format: raster.RGBA}, endToEndRequest())
	assert.ErrorIs(t, err, raster.ErrInvalidImage)
}

func TestAnnotateTallCaptionOnSmallImage(t *testing.T) {
	img := createTestImage(t, 300, 60, raster.RGBA)
	req := endToEndRequest()
	req.Caption = "one\ntwo\nthree\nfour\nfive\nsix"

	res, err := New().Annotate(img, req)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 60), res.Panel)
}

func TestRoundedMask(t *testing.T) {
	m := &roundedMask{rect: image.Rect(10, 10, 50, 50), radius: 8}
	assert.Equal(t, color.Alpha{}, m.At(10, 10))
	assert.Equal(t, color.Alpha{}, m.At(9, 30))
	assert.Equal(t, color.Alpha{A: 255}, m.At(30, 30))
	assert.Equal(t, color.Alpha{A: 255}, m.At(10, 30))
	assert.Equal(t, color.Alpha{A: 255}, m.At(49, 49-8))

	flat := &roundedMask{rect: image.Rect(0, 0, 4, 4)}
	assert.Equal(t, color.Alpha{A: 255}, flat.At(0, 0))
}

func BenchmarkAnnotate(b *testing.B) {
	img := createTestImage(b, 1920, 1080, raster.RGBA)
	req := endToEndRequest()
	req.Map = createMap(400, 400, color.NRGBA{0, 128, 0, 255})
	c := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Annotate(img, req)
	}
}
