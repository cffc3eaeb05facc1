package datasets

import (
	"bufio"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ReadImageSet loads the sample identifiers of a VOC image set file
// (ImageSets/Main/<set>.txt). Lines may be "<id>" or "<id> <flag>"; blank
// lines are skipped.
func ReadImageSet(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "image set %s", path)
		}
		return nil, errors.Wrapf(ErrData, "opening image set %s: %v", path, err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		ids = append(ids, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(ErrData, "reading %s: %v", path, err)
	}
	return ids, nil
}

// ExampleFeatures builds the tf.Example features of one VOC sample under
// root: its identifiers, image size and all recognized detections with
// coordinates normalized to [0, 1].
func ExampleFeatures(root, id string, labels *LabelMap) (Features, error) {
	imgPath := filepath.Join(root, ImagesDir, id+".jpg")
	f, err := os.Open(imgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "image %s", imgPath)
		}
		return nil, errors.Wrapf(ErrData, "opening image %s: %v", imgPath, err)
	}
	cfg, format, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return nil, errors.Wrapf(ErrData, "reading image header %s: %v", imgPath, err)
	}

	ann, err := LoadAnnotation(root, id, labels)
	if err != nil {
		return nil, err
	}

	n := ann.Len()
	xmins := make([]float32, n)
	xmaxs := make([]float32, n)
	ymins := make([]float32, n)
	ymaxs := make([]float32, n)
	classes := make([][]byte, n)
	difficult := make([]int64, n)
	w, h := float32(cfg.Width), float32(cfg.Height)
	for i, box := range ann.Boxes {
		// Back to VOC's 1-indexed pixels before normalizing.
		xmins[i] = (box[0] + 1) / w
		ymins[i] = (box[1] + 1) / h
		xmaxs[i] = (box[2] + 1) / w
		ymaxs[i] = (box[3] + 1) / h
		name, _ := labels.Name(ann.Labels[i])
		classes[i] = []byte(name)
		difficult[i] = int64(ann.Difficult[i])
	}

	return Features{
		FeatureFilename:   {Bytes: [][]byte{[]byte(id + ".jpg")}},
		FeatureSourceID:   {Bytes: [][]byte{[]byte(id)}},
		FeatureFormat:     {Bytes: [][]byte{[]byte(format)}},
		FeatureHeight:     {Int64s: []int64{int64(cfg.Height)}},
		FeatureWidth:      {Int64s: []int64{int64(cfg.Width)}},
		FeatureXMin:       {Floats: xmins},
		FeatureXMax:       {Floats: xmaxs},
		FeatureYMin:       {Floats: ymins},
		FeatureYMax:       {Floats: ymaxs},
		FeatureClassText:  {Bytes: classes},
		FeatureClassLabel: {Int64s: append([]int64(nil), ann.Labels...)},
		FeatureDifficult:  {Int64s: difficult},
	}, nil
}

// WriteSplitRecords writes <root>/<split>.record with one tf.Example per id,
// followed by the num_<split>.txt count file. If progress is not nil it is
// called after each record.
func WriteSplitRecords(root string, split Split, ids []string, labels *LabelMap, progress func(done int)) error {
	path := filepath.Join(root, split.RecordFile())
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	rw := NewRecordWriter(f)
	for i, id := range ids {
		features, err := ExampleFeatures(root, id, labels)
		if err != nil {
			return errors.WithMessagef(err, "sample %s", id)
		}
		if err := rw.Write(EncodeExample(features)); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
		if progress != nil {
			progress(i + 1)
		}
	}
	if err := rw.Flush(); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}
	return WriteNumRecords(root, split, len(ids))
}
