package datasets

import (
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Transform is applied to every sample before batching. It receives the
// decoded image with its boxes and labels and returns possibly modified
// versions of the three. When used on an image alone (VOCDataset.Image),
// boxes and labels are nil.
type Transform func(img *Image, boxes []Box, labels []int64) (*Image, []Box, []int64, error)

// TargetTransform is applied to the boxes and labels after Transform,
// typically to encode them against a fixed set of priors.
type TargetTransform func(boxes []Box, labels []int64) ([]Box, []int64, error)

// Compose chains transforms, applied in order.
func Compose(transforms ...Transform) Transform {
	return func(img *Image, boxes []Box, labels []int64) (*Image, []Box, []int64, error) {
		var err error
		for _, t := range transforms {
			img, boxes, labels, err = t(img, boxes, labels)
			if err != nil {
				return nil, nil, nil, err
			}
		}
		return img, boxes, labels, nil
	}
}

// Resize scales the image to width x height and the boxes with it. It works
// on [0, 255] pixel values, so it must run before Normalize.
func Resize(width, height int) Transform {
	return func(img *Image, boxes []Box, labels []int64) (*Image, []Box, []int64, error) {
		if width <= 0 || height <= 0 {
			return nil, nil, nil, errors.Wrapf(ErrConfig, "invalid resize target %dx%d", width, height)
		}
		if img.Width == width && img.Height == height {
			return img, boxes, labels, nil
		}
		sx := float32(width) / float32(img.Width)
		sy := float32(height) / float32(img.Height)
		resized := ImageFromStd(imaging.Resize(img.ToNRGBA(), width, height, imaging.Linear))
		var scaled []Box
		if boxes != nil {
			scaled = make([]Box, len(boxes))
			for i, b := range boxes {
				scaled[i] = Box{b[0] * sx, b[1] * sy, b[2] * sx, b[3] * sy}
			}
		}
		return resized, scaled, labels, nil
	}
}

// HorizontalFlip mirrors the image and its boxes with probability p, drawing
// from rng.
func HorizontalFlip(rng *rand.Rand, p float64) Transform {
	return func(img *Image, boxes []Box, labels []int64) (*Image, []Box, []int64, error) {
		if rng.Float64() >= p {
			return img, boxes, labels, nil
		}
		flipped := ImageFromStd(imaging.FlipH(img.ToNRGBA()))
		var mirrored []Box
		if boxes != nil {
			last := float32(img.Width - 1)
			mirrored = make([]Box, len(boxes))
			for i, b := range boxes {
				mirrored[i] = Box{last - b[2], b[1], last - b[0], b[3]}
			}
		}
		return flipped, mirrored, labels, nil
	}
}

// Normalize maps every channel c to (v - mean[c]) / std[c].
func Normalize(mean, std []float32) Transform {
	return func(img *Image, boxes []Box, labels []int64) (*Image, []Box, []int64, error) {
		if len(mean) != img.Channels || len(std) != img.Channels {
			return nil, nil, nil, errors.Wrapf(ErrConfig, "normalize has %d/%d statistics for %d channels",
				len(mean), len(std), img.Channels)
		}
		out := NewImage(img.Height, img.Width, img.Channels)
		for i, v := range img.Pix {
			c := i % img.Channels
			out.Pix[i] = (v - mean[c]) / std[c]
		}
		return out, boxes, labels, nil
	}
}

// PadTargets truncates or pads every sample to exactly n detections so they
// can be stacked into a batch. Padding uses empty boxes with the background
// label.
func PadTargets(n int) TargetTransform {
	return func(boxes []Box, labels []int64) ([]Box, []int64, error) {
		if len(boxes) != len(labels) {
			return nil, nil, errors.Wrapf(ErrData, "%d boxes for %d labels", len(boxes), len(labels))
		}
		outBoxes := make([]Box, n)
		outLabels := make([]int64, n)
		copy(outBoxes, boxes)
		copy(outLabels, labels)
		return outBoxes, outLabels, nil
	}
}
