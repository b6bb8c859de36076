package annotate

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// roundedMask is an antialiased alpha mask covering rect with rounded corners
type roundedMask struct {
	rect   image.Rectangle
	radius int
}

func (m *roundedMask) ColorModel() color.Model {
	return color.AlphaModel
}

func (m *roundedMask) Bounds() image.Rectangle {
	return m.rect
}

func (m *roundedMask) At(x, y int) color.Color {
	if !(image.Point{x, y}).In(m.rect) {
		return color.Alpha{}
	}
	r := float64(m.radius)
	if r <= 0 {
		return color.Alpha{A: 255}
	}

	// distance from the pixel centre to the nearest corner circle centre,
	// only meaningful inside one of the four corner squares
	px, py := float64(x)+0.5, float64(y)+0.5
	cx, cy := px, py
	minX, minY := float64(m.rect.Min.X)+r, float64(m.rect.Min.Y)+r
	maxX, maxY := float64(m.rect.Max.X)-r, float64(m.rect.Max.Y)-r
	if px < minX {
		cx = minX
	} else if px > maxX {
		cx = maxX
	}
	if py < minY {
		cy = minY
	} else if py > maxY {
		cy = maxY
	}
	if cx == px || cy == py {
		return color.Alpha{A: 255}
	}

	d := math.Hypot(px-cx, py-cy)
	coverage := r - d + 0.5
	switch {
	case coverage >= 1:
		return color.Alpha{A: 255}
	case coverage <= 0:
		return color.Alpha{}
	}
	return color.Alpha{A: uint8(coverage*255 + 0.5)}
}

// fillRect blends a uniform colour over rect
func fillRect(dst draw.Image, rect image.Rectangle, c color.Color) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

// fillRoundedRect blends a uniform colour over a rounded rectangle
func fillRoundedRect(dst draw.Image, rect image.Rectangle, radius int, c color.Color) {
	mask := &roundedMask{rect: rect, radius: clampRadius(rect, radius)}
	draw.DrawMask(dst, rect, image.NewUniform(c), image.Point{}, mask, rect.Min, draw.Over)
}

// drawRounded composites src into rect, clipping its corners
func drawRounded(dst draw.Image, rect image.Rectangle, src image.Image, radius int) {
	mask := &roundedMask{rect: rect, radius: clampRadius(rect, radius)}
	draw.DrawMask(dst, rect, src, src.Bounds().Min, mask, rect.Min, draw.Over)
}

// drawLines renders lines left-aligned at x, starting at baseline y
func drawLines(dst draw.Image, face font.Face, c color.Color, lines []string, x, y, lineGap int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	for _, line := range lines {
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
		y += lineGap
	}
}

func clampRadius(rect image.Rectangle, radius int) int {
	limit := rect.Dx() / 2
	if rect.Dy()/2 < limit {
		limit = rect.Dy() / 2
	}
	if radius > limit {
		return limit
	}
	if radius < 0 {
		return 0
	}
	return radius
}
