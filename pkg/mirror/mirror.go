// Package mirror undoes the horizontal mirroring of front-camera captures.
package mirror

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/geostamp/pkg/raster"
)

// Horizontal reverses the pixel order of every row in place.
// Dimensions, channel format and pixel values are preserved.
func Horizontal(img *raster.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	ch := img.Format.Channels()
	stride := img.Stride()
	var tmp [4]byte
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*stride : (y+1)*stride]
		for l, r := 0, (img.Width-1)*ch; l < r; l, r = l+ch, r-ch {
			copy(tmp[:ch], row[l:l+ch])
			copy(row[l:l+ch], row[r:r+ch])
			copy(row[r:r+ch], tmp[:ch])
		}
	}
	return nil
}

// Image returns a horizontally flipped copy of any decoded image
func Image(img image.Image) *image.NRGBA {
	return imaging.FlipH(img)
}
