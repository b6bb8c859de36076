package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrInvalidImage is returned when a buffer violates the dimension invariant
var ErrInvalidImage = errors.New("invalid raster image")

// Format is the channel layout of a buffer
type Format int

const (
	RGBA Format = 4 // non-premultiplied, 8 bits per channel
	RGB  Format = 3
)

// Channels returns the number of bytes per pixel
func (f Format) Channels() int {
	return int(f)
}

func (f Format) String() string {
	switch f {
	case RGBA:
		return "rgba"
	case RGB:
		return "rgb"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Image holds a width x height pixel grid in a fixed channel format
type Image struct {
	Width  int
	Height int
	Format Format
	Pix    []byte
}

// New allocates a zeroed image
func New(width, height int, format Format) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidImage, width, height)
	}
	if format != RGBA && format != RGB {
		return nil, fmt.Errorf("%w: unsupported format %v", ErrInvalidImage, format)
	}
	return &Image{
		Width:  width,
		Height: height,
		Format: format,
		Pix:    make([]byte, width*height*format.Channels()),
	}, nil
}

// FromImage copies any decoded image into a buffer of the requested format
func FromImage(src image.Image, format Format) (*Image, error) {
	b := src.Bounds()
	dst, err := New(b.Dx(), b.Dy(), format)
	if err != nil {
		return nil, err
	}
	if err := dst.CopyFrom(imaging.Clone(src)); err != nil {
		return nil, err
	}
	return dst, nil
}

// Validate checks the dimension and buffer length invariant
func (m *Image) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidImage, m.Width, m.Height)
	}
	if m.Format != RGBA && m.Format != RGB {
		return fmt.Errorf("%w: unsupported format %v", ErrInvalidImage, m.Format)
	}
	if want := m.Width * m.Height * m.Format.Channels(); len(m.Pix) != want {
		return fmt.Errorf("%w: buffer holds %d bytes, want %d", ErrInvalidImage, len(m.Pix), want)
	}
	return nil
}

// Stride is the number of bytes per row
func (m *Image) Stride() int {
	return m.Width * m.Format.Channels()
}

// Clone returns a deep copy
func (m *Image) Clone() *Image {
	pix := make([]byte, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Width: m.Width, Height: m.Height, Format: m.Format, Pix: pix}
}

// NRGBA returns a copy of the pixels as an *image.NRGBA
func (m *Image) NRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	if m.Format == RGBA {
		copy(out.Pix, m.Pix)
		return out
	}
	j := 0
	for i := 0; i < len(m.Pix); i += 3 {
		out.Pix[j+0] = m.Pix[i+0]
		out.Pix[j+1] = m.Pix[i+1]
		out.Pix[j+2] = m.Pix[i+2]
		out.Pix[j+3] = 255
		j += 4
	}
	return out
}

// CopyFrom overwrites the buffer with src, which must have the same size.
// Alpha is dropped for RGB buffers.
func (m *Image) CopyFrom(src *image.NRGBA) error {
	b := src.Bounds()
	if b.Dx() != m.Width || b.Dy() != m.Height {
		return fmt.Errorf("%w: source is %dx%d, buffer is %dx%d",
			ErrInvalidImage, b.Dx(), b.Dy(), m.Width, m.Height)
	}
	ch := m.Format.Channels()
	for y := 0; y < m.Height; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * m.Stride()
		if ch == 4 {
			copy(m.Pix[di:di+m.Stride()], src.Pix[si:si+m.Width*4])
			continue
		}
		for x := 0; x < m.Width; x++ {
			m.Pix[di+0] = src.Pix[si+0]
			m.Pix[di+1] = src.Pix[si+1]
			m.Pix[di+2] = src.Pix[si+2]
			di += 3
			si += 4
		}
	}
	return nil
}

// ColorModel implements image.Image
func (m *Image) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements image.Image
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// At implements image.Image
func (m *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.NRGBA{}
	}
	i := y*m.Stride() + x*m.Format.Channels()
	if m.Format == RGB {
		return color.NRGBA{m.Pix[i], m.Pix[i+1], m.Pix[i+2], 255}
	}
	return color.NRGBA{m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]}
}
