//go:build gocv

// OpenCV backed decoding. Requires OpenCV to be installed; build with
// `-tags gocv`.

package datasets

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// GocvDecoder decodes images with OpenCV and converts them from BGR to RGB.
type GocvDecoder struct{}

// Decode implements ImageDecoder.
func (GocvDecoder) Decode(path string) (*Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.Errorf("opencv could not decode %s", path)
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB)

	img := NewImage(rgb.Rows(), rgb.Cols(), rgb.Channels())
	for i, v := range rgb.ToBytes() {
		img.Pix[i] = float32(v)
	}
	return img, nil
}
