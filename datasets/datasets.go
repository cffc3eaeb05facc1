package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// This file describes the detection dataset implemented by VOCDataset, which
// reads Pascal VOC style examples (JPEG images plus XML annotations) whose
// split membership is indexed by a TFRecord file, and serves them as
// fixed-size batches suitable for model training.
//
// The dataset uses lazy loading - construction only reads the label map and
// the record index; images and annotation files are read when a batch or a
// single example is requested.
//
// Layout of a dataset root:
//
//	label_map.txt            comma separated class names (optional)
//	num_train.txt            precomputed number of train records (optional)
//	num_val.txt              precomputed number of validation records (optional)
//	train.record             TFRecord index of the train split
//	val.record               TFRecord index of the validation split
//	Annotations/<id>.xml     per-image detections
//	JPEGImages/<id>.jpg      per-image pixels
//
// Batches are returned as contiguous float32 buffers (DetectionBatchFlat)
// that ToGomlxTensors converts into:
//   - inputs: [batch, height, width, channels]
//   - targets: [batch, detections, 5], the last axis holding x1, y1, x2, y2, label.
//
// Dataset is the interface the detection datasets implement to interact with
// GoMLX training loops and batching utilities.
type Dataset interface {
	Len() int
	NumBatches() int
	Annotation(i int) (id string, ann *Annotation, err error)
	Image(i int) (*Image, error)
	Batch(b int) (*DetectionBatchFlat, error)

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
	Reset()
}
