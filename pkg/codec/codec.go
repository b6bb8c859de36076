package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for formats the codec is not configured for
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format names an encoding
type Format string

const (
	JPEG Format = "jpg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// ParseFormat normalises a format name or file extension
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
}

// ContentType is the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case WebP:
		return "image/webp"
	}
	return "image/jpeg"
}

// Options control encoding
type Options struct {
	Format   Format
	Quality  int
	Lossless bool
}

// Config holds configuration for the codec
type Config struct {
	DefaultQuality   int
	SupportedFormats []string
	MinImageSize     int
}

// Codec decodes captures and encodes stamped results
type Codec struct {
	config Config
}

// New creates a Codec with default configuration
func New() *Codec {
	return &Codec{
		config: Config{
			DefaultQuality:   100,
			SupportedFormats: []string{"jpeg", "png", "webp"},
			MinImageSize:     1,
		},
	}
}

// NewWithConfig creates a Codec with custom configuration
func NewWithConfig(config Config) *Codec {
	return &Codec{config: config}
}

// Decode decodes data and applies its EXIF orientation
func (c *Codec) Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// registered decoders failed, try libwebp
		wimg, werr := webp.Decode(bytes.NewReader(data))
		if werr != nil {
			return nil, "", fmt.Errorf("failed to decode image: %w", err)
		}
		img, format = wimg, "webp"
	}

	if !c.isFormatSupported(format) {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if format == "jpeg" {
		img = ApplyOrientation(img, Orientation(data))
	}
	return img, format, nil
}

// DecodeReader reads r fully and decodes it
func (c *Codec) DecodeReader(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	return c.Decode(data)
}

// Load decodes an image file
func (c *Codec) Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	img, _, err := c.Decode(data)
	return img, err
}

// Encode writes img to w
func (c *Codec) Encode(w io.Writer, img image.Image, opts Options) error {
	quality := opts.Quality
	if quality <= 0 {
		quality = c.config.DefaultQuality
	}
	if quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", quality)
	}

	switch opts.Format {
	case WebP:
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)})
	case PNG:
		return imaging.Encode(w, img, imaging.PNG)
	case JPEG, "":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, opts.Format)
}

// EncodeBytes encodes img into a new buffer
func (c *Codec) EncodeBytes(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks if an image meets minimum requirements
func (c *Codec) Validate(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < c.config.MinImageSize || bounds.Dy() < c.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), c.config.MinImageSize)
	}
	return nil
}

func (c *Codec) isFormatSupported(format string) bool {
	for _, supported := range c.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// Orientation reads the EXIF orientation tag, 1 when absent
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// ApplyOrientation turns img upright for an EXIF orientation value
func ApplyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}
