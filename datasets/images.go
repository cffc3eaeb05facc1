package datasets

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImagesDir holds one <id>.jpg file per sample.
const ImagesDir = "JPEGImages"

// Image is a decoded image in height, width, channels order with RGB
// channels. Decoders produce values in [0, 255]; transforms may rescale them.
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []float32
}

// NewImage allocates a zeroed image.
func NewImage(height, width, channels int) *Image {
	return &Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]float32, height*width*channels),
	}
}

// At returns the value of channel c of pixel (x, y).
func (img *Image) At(x, y, c int) float32 {
	return img.Pix[(y*img.Width+x)*img.Channels+c]
}

// SameShape reports whether both images have the same dimensions.
func (img *Image) SameShape(other *Image) bool {
	return img.Height == other.Height && img.Width == other.Width && img.Channels == other.Channels
}

// ImageFromStd converts any image to a 3 channel RGB Image.
func ImageFromStd(src image.Image) *Image {
	nrgba := imaging.Clone(src)
	bounds := nrgba.Bounds()
	img := NewImage(bounds.Dy(), bounds.Dx(), 3)
	for y := 0; y < img.Height; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < img.Width; x++ {
			dst := (y*img.Width + x) * 3
			img.Pix[dst] = float32(row[x*4])
			img.Pix[dst+1] = float32(row[x*4+1])
			img.Pix[dst+2] = float32(row[x*4+2])
		}
	}
	return img
}

// ToNRGBA converts an RGB Image with values in [0, 255] back to a standard
// image, clamping out of range values.
func (img *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			var c color.NRGBA
			c.A = 255
			c.R = clampUint8(img.At(x, y, 0))
			if img.Channels >= 3 {
				c.G = clampUint8(img.At(x, y, 1))
				c.B = clampUint8(img.At(x, y, 2))
			} else {
				c.G, c.B = c.R, c.R
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

func clampUint8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

// ImageDecoder decodes an image file into an RGB Image.
type ImageDecoder interface {
	Decode(path string) (*Image, error)
}

// ImagingDecoder decodes with github.com/disintegration/imaging, honoring
// EXIF orientation.
type ImagingDecoder struct{}

// Decode implements ImageDecoder.
func (ImagingDecoder) Decode(path string) (*Image, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return ImageFromStd(src), nil
}

// LoadImage decodes <root>/JPEGImages/<id>.jpg.
func LoadImage(root, id string, decoder ImageDecoder) (*Image, error) {
	path := filepath.Join(root, ImagesDir, id+".jpg")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "image %s", path)
		}
		return nil, errors.Wrapf(ErrData, "image %s: %v", path, err)
	}
	img, err := decoder.Decode(path)
	if err != nil {
		return nil, errors.Wrapf(ErrData, "decoding image %s: %v", path, err)
	}
	return img, nil
}
