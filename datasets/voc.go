package datasets

import (
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Split selects one partition of a dataset root.
type Split int

const (
	SplitTrain Split = iota
	SplitValidation
)

// String returns "train" or "val".
func (s Split) String() string {
	if s == SplitValidation {
		return "val"
	}
	return "train"
}

// RecordFile is the name of the split's TFRecord index.
func (s Split) RecordFile() string {
	return s.String() + ".record"
}

// CountFile is the name of the split's optional record count file.
func (s Split) CountFile() string {
	return "num_" + s.String() + ".txt"
}

// DefaultBatchSize is used when Options.BatchSize is 0.
const DefaultBatchSize = 32

// Options configures a VOCDataset. The zero value reads the train split in
// batches of DefaultBatchSize, drops difficult detections and loads the label
// map from the root.
type Options struct {
	Split Split

	// Transform and TargetTransform are optional per-sample transforms.
	Transform       Transform
	TargetTransform TargetTransform

	// KeepDifficult keeps detections flagged as difficult in batches.
	KeepDifficult bool

	// BatchSize of the batches returned by Batch and Yield.
	BatchSize int

	// NumRecords, if positive, overrides the number of samples in the split.
	// See ReadNumRecords to take it from the num_<split>.txt side file.
	NumRecords int

	// Labels overrides the label map. If nil, LoadLabelMap(root) is used.
	Labels *LabelMap

	// Rand is used to shuffle samples within a batch. If nil a time seeded
	// source private to the dataset is created.
	Rand *rand.Rand

	// Decoder decodes images. Defaults to ImagingDecoder.
	Decoder ImageDecoder
}

// VOCDataset serves Pascal VOC style detection examples listed in a TFRecord
// index as fixed-size batches. It is not safe for concurrent use.
type VOCDataset struct {
	// Root directory of the dataset.
	Root string

	opts   Options
	labels *LabelMap
	ids    []string
	length int

	// next batch index returned by Yield.
	cursor int
}

var (
	assertVOCDatasetIsDataset *VOCDataset
	_                         Dataset       = assertVOCDatasetIsDataset
	_                         train.Dataset = assertVOCDatasetIsDataset
)

// NewVOCDataset opens the split selected by opts under root.
//
// It fails with ErrConfig if root is not a directory, the split's record
// file is missing or unreadable, or the options are invalid.
func NewVOCDataset(root string, opts Options) (*VOCDataset, error) {
	if !isDir(root) {
		return nil, errors.Wrapf(ErrConfig, "dataset root %q is not a directory", root)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize < 0 {
		return nil, errors.Wrapf(ErrConfig, "batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.NumRecords < 0 {
		return nil, errors.Wrapf(ErrConfig, "record count must not be negative, got %d", opts.NumRecords)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Decoder == nil {
		opts.Decoder = ImagingDecoder{}
	}

	recordPath := filepath.Join(root, opts.Split.RecordFile())
	if !isFile(recordPath) {
		return nil, errors.Wrapf(ErrConfig, "split record file %s not found", recordPath)
	}
	ids, err := ReadRecordIDs(recordPath)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "loading split index: %v", err)
	}

	labels := opts.Labels
	if labels == nil {
		if labels, err = LoadLabelMap(root); err != nil {
			return nil, err
		}
	}

	ds := &VOCDataset{
		Root:   root,
		opts:   opts,
		labels: labels,
		ids:    ids,
		length: len(ids),
	}
	if opts.NumRecords > 0 {
		ds.length = opts.NumRecords
	}
	klog.V(1).Infof("Opened %s split of %s: %d samples, %d classes, batch size %d",
		opts.Split, root, ds.length, labels.Len(), opts.BatchSize)
	return ds, nil
}

// Name implements train.Dataset.
func (ds *VOCDataset) Name() string {
	return fmt.Sprintf("VOCDataset(%s)", ds.opts.Split)
}

// Labels returns the label map in use.
func (ds *VOCDataset) Labels() *LabelMap {
	return ds.labels
}

// BatchSize returns the configured batch size.
func (ds *VOCDataset) BatchSize() int {
	return ds.opts.BatchSize
}

// Len returns the number of samples in the split.
func (ds *VOCDataset) Len() int {
	return ds.length
}

// NumBatches returns Len() / BatchSize.
func (ds *VOCDataset) NumBatches() int {
	return ds.length / ds.opts.BatchSize
}

// ID returns the identifier of sample i. Samples past the end of the record
// index (possible when NumRecords is larger) are named by their ordinal.
func (ds *VOCDataset) ID(i int) (string, error) {
	if i < 0 || i >= ds.length {
		return "", errors.Wrapf(ErrNotFound, "index %d out of range [0, %d)", i, ds.length)
	}
	if i < len(ds.ids) {
		return ds.ids[i], nil
	}
	return ordinalID(i), nil
}

// Annotation returns the identifier and all recognized detections of sample
// i, difficult ones included.
func (ds *VOCDataset) Annotation(i int) (string, *Annotation, error) {
	id, err := ds.ID(i)
	if err != nil {
		return "", nil, err
	}
	ann, err := LoadAnnotation(ds.Root, id, ds.labels)
	if err != nil {
		return "", nil, err
	}
	return id, ann, nil
}

// Image returns the decoded RGB image of sample i, with the image transform
// applied if one is configured.
func (ds *VOCDataset) Image(i int) (*Image, error) {
	id, err := ds.ID(i)
	if err != nil {
		return nil, err
	}
	img, err := LoadImage(ds.Root, id, ds.opts.Decoder)
	if err != nil {
		return nil, err
	}
	if ds.opts.Transform != nil {
		if img, _, _, err = ds.opts.Transform(img, nil, nil); err != nil {
			return nil, errors.WithMessagef(err, "transforming image %s", id)
		}
	}
	return img, nil
}

// Batch assembles batch b from the samples [b*BatchSize, (b+1)*BatchSize),
// visited in a freshly shuffled order on every call.
//
// The end of the range is clamped to Len()-1, and a range holding fewer than
// BatchSize samples yields ErrIncompleteBatch. This means the last sample of
// the split is never served and the final batch of a split is never
// complete; the behavior is kept for compatibility with existing record
// datasets.
func (ds *VOCDataset) Batch(b int) (*DetectionBatchFlat, error) {
	batchSize := ds.opts.BatchSize
	start := b * batchSize
	end := (b + 1) * batchSize
	if end >= ds.length {
		end = ds.length - 1
	}
	if b < 0 || end-start < batchSize {
		return nil, errors.Wrapf(ErrIncompleteBatch, "batch %d covers samples [%d, %d), batch size %d",
			b, start, max(start, end), batchSize)
	}

	indices := make([]int, end-start)
	for i := range indices {
		indices[i] = start + i
	}
	ds.opts.Rand.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	ids := make([]string, 0, batchSize)
	inputs := make([]*Image, 0, batchSize)
	allBoxes := make([][]Box, 0, batchSize)
	allLabels := make([][]int64, 0, batchSize)
	for _, idx := range indices {
		id, img, boxes, labels, err := ds.sample(idx)
		if err != nil {
			return nil, errors.WithMessagef(err, "batch %d", b)
		}
		ids = append(ids, id)
		inputs = append(inputs, img)
		allBoxes = append(allBoxes, boxes)
		allLabels = append(allLabels, labels)
		if len(inputs) == batchSize {
			return MakeDetectionBatchFlat(ids, inputs, allBoxes, allLabels)
		}
	}
	return nil, errors.Wrapf(ErrIncompleteBatch, "batch %d ran out of samples", b)
}

// sample loads, filters and transforms one training sample.
func (ds *VOCDataset) sample(idx int) (string, *Image, []Box, []int64, error) {
	id, ann, err := ds.Annotation(idx)
	if err != nil {
		return "", nil, nil, nil, err
	}
	boxes, labels := ann.Boxes, ann.Labels
	if !ds.opts.KeepDifficult {
		boxes, labels = ann.WithoutDifficult()
	}

	img, err := LoadImage(ds.Root, id, ds.opts.Decoder)
	if err != nil {
		return "", nil, nil, nil, err
	}
	if ds.opts.Transform != nil {
		if img, boxes, labels, err = ds.opts.Transform(img, boxes, labels); err != nil {
			return "", nil, nil, nil, errors.WithMessagef(err, "transforming sample %s", id)
		}
	}
	if ds.opts.TargetTransform != nil {
		if boxes, labels, err = ds.opts.TargetTransform(boxes, labels); err != nil {
			return "", nil, nil, nil, errors.WithMessagef(err, "transforming targets of sample %s", id)
		}
	}
	return id, img, boxes, labels, nil
}

// Tensors reads batch b and returns it as gomlx tensors.
func (ds *VOCDataset) Tensors(b int) (inputs *tensors.Tensor, targets *tensors.Tensor, err error) {
	batch, err := ds.Batch(b)
	if err != nil {
		return nil, nil, err
	}
	return batch.ToGomlxTensors()
}

// Yield implements train.Dataset. It walks the batches in order, skipping
// incomplete ones, and returns io.EOF at the end of the epoch. Inputs hold
// the images tensor and labels the combined targets tensor.
func (ds *VOCDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	for ds.cursor < ds.NumBatches() {
		b := ds.cursor
		ds.cursor++
		in, targets, err := ds.Tensors(b)
		if errors.Is(err, ErrIncompleteBatch) {
			klog.V(2).Infof("%s: skipping batch %d: %v", ds.Name(), b, err)
			continue
		}
		if err != nil {
			return nil, nil, nil, err
		}
		return ds, []*tensors.Tensor{in}, []*tensors.Tensor{targets}, nil
	}
	return nil, nil, nil, io.EOF
}

// Reset implements train.Dataset, restarting Yield from the first batch.
func (ds *VOCDataset) Reset() {
	ds.cursor = 0
}
