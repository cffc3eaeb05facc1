package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// TargetDim is the size of the trailing target axis: four box coordinates
// followed by the label id.
const TargetDim = 5

// DetectionBatchFlat stores a batch in flat contiguous buffers.
//
// Inputs is laid out as [BatchSize, Height, Width, Channels] and Targets as
// [BatchSize, NumDetections, TargetDim].
type DetectionBatchFlat struct {
	// IDs of the samples, in batch order.
	IDs []string

	Inputs  []float32
	Targets []float32

	BatchSize     int
	Height        int
	Width         int
	Channels      int
	NumDetections int
}

// MakeDetectionBatchFlat stacks per-sample images and targets into a batch.
// All images must have the same shape and all samples the same number of
// detections.
func MakeDetectionBatchFlat(ids []string, images []*Image, boxes [][]Box, labels [][]int64) (*DetectionBatchFlat, error) {
	if len(images) != len(boxes) || len(images) != len(labels) {
		return nil, errors.Wrapf(ErrData, "batch sizes don't match: %d images, %d boxes, %d labels",
			len(images), len(boxes), len(labels))
	}
	if len(images) == 0 {
		return &DetectionBatchFlat{}, nil
	}

	first := images[0]
	numDetections := len(boxes[0])
	imageSize := first.Height * first.Width * first.Channels

	b := &DetectionBatchFlat{
		IDs:           ids,
		Inputs:        make([]float32, len(images)*imageSize),
		Targets:       make([]float32, len(images)*numDetections*TargetDim),
		BatchSize:     len(images),
		Height:        first.Height,
		Width:         first.Width,
		Channels:      first.Channels,
		NumDetections: numDetections,
	}

	for i, img := range images {
		if !img.SameShape(first) {
			return nil, errors.Wrapf(ErrData, "inconsistent image shapes: sample 0 is %dx%dx%d, sample %d is %dx%dx%d",
				first.Height, first.Width, first.Channels, i, img.Height, img.Width, img.Channels)
		}
		if len(img.Pix) != imageSize {
			return nil, errors.Wrapf(ErrData, "image %d has %d values, expected %d", i, len(img.Pix), imageSize)
		}
		if len(boxes[i]) != numDetections || len(labels[i]) != numDetections {
			return nil, errors.Wrapf(ErrData, "inconsistent detection counts: sample 0 has %d, sample %d has %d boxes and %d labels",
				numDetections, i, len(boxes[i]), len(labels[i]))
		}
		copy(b.Inputs[i*imageSize:], img.Pix)

		for j, box := range boxes[i] {
			row := b.Targets[(i*numDetections+j)*TargetDim:]
			copy(row, box[:])
			row[4] = float32(labels[i][j])
		}
	}
	return b, nil
}

// Target returns the box and label of detection j of sample i.
func (b *DetectionBatchFlat) Target(i, j int) (Box, int64) {
	row := b.Targets[(i*b.NumDetections+j)*TargetDim:]
	return Box{row[0], row[1], row[2], row[3]}, int64(row[4])
}

// ToGomlxTensors converts DetectionBatchFlat to gomlx tensors.
func (b *DetectionBatchFlat) ToGomlxTensors() (inputs *tensors.Tensor, targets *tensors.Tensor, err error) {
	inputs = tensors.FromFlatDataAndDimensions(b.Inputs, b.BatchSize, b.Height, b.Width, b.Channels)
	targets = tensors.FromFlatDataAndDimensions(b.Targets, b.BatchSize, b.NumDetections, TargetDim)
	return inputs, targets, nil
}
