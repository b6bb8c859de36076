package raster

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / width), uint8(y * 255 / height), 128, 255})
		}
	}
	return img
}

func TestNew(t *testing.T) {
	img, err := New(4, 3, RGB)
	require.NoError(t, err)
	assert.Len(t, img.Pix, 4*3*3)
	assert.Equal(t, 12, img.Stride())

	_, err = New(0, 3, RGBA)
	assert.True(t, errors.Is(err, ErrInvalidImage))

	_, err = New(2, 2, Format(2))
	assert.True(t, errors.Is(err, ErrInvalidImage))
}

func TestValidate(t *testing.T) {
	img, err := New(2, 2, RGBA)
	require.NoError(t, err)
	require.NoError(t, img.Validate())

	img.Pix = img.Pix[:len(img.Pix)-1]
	assert.ErrorIs(t, img.Validate(), ErrInvalidImage)

	var nilImg *Image
	assert.ErrorIs(t, nilImg.Validate(), ErrInvalidImage)
}

func TestFromImageRoundTrip(t *testing.T) {
	src := createTestImage(16, 9)

	for _, format := range []Format{RGBA, RGB} {
		t.Run(format.String(), func(t *testing.T) {
			img, err := FromImage(src, format)
			require.NoError(t, err)
			require.NoError(t, img.Validate())

			for _, pt := range []image.Point{{0, 0}, {15, 8}, {7, 4}} {
				want := color.NRGBAModel.Convert(src.At(pt.X, pt.Y))
				assert.Equal(t, want, img.At(pt.X, pt.Y), "pixel %v", pt)
			}

			nrgba := img.NRGBA()
			back, err := New(16, 9, format)
			require.NoError(t, err)
			require.NoError(t, back.CopyFrom(nrgba))
			assert.Equal(t, img.Pix, back.Pix)
		})
	}
}

func TestCopyFromSizeMismatch(t *testing.T) {
	img, err := New(4, 4, RGBA)
	require.NoError(t, err)
	err = img.CopyFrom(image.NewNRGBA(image.Rect(0, 0, 3, 4)))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestCloneIsDeep(t *testing.T) {
	img, err := FromImage(createTestImage(8, 8), RGBA)
	require.NoError(t, err)
	c := img.Clone()
	c.Pix[0] ^= 0xFF
	assert.NotEqual(t, img.Pix[0], c.Pix[0])
}

func TestAtOutOfBounds(t *testing.T) {
	img, err := New(2, 2, RGB)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{}, img.At(-1, 0))
	assert.Equal(t, color.NRGBA{}, img.At(2, 0))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.At(1, 1))
}
