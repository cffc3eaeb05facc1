package datasets

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AnnotationsDir holds one <id>.xml file per sample.
const AnnotationsDir = "Annotations"

// Box is a bounding box in 0-indexed pixel coordinates: x1, y1, x2, y2.
type Box [4]float32

// Annotation holds the recognized detections of one image. Boxes, Labels and
// Difficult are aligned and always have the same length.
type Annotation struct {
	Boxes     []Box
	Labels    []int64
	Difficult []uint8
}

// Len returns the number of detections.
func (a *Annotation) Len() int {
	return len(a.Labels)
}

// WithoutDifficult returns the boxes and labels of the detections not
// flagged as difficult.
func (a *Annotation) WithoutDifficult() ([]Box, []int64) {
	boxes := make([]Box, 0, len(a.Boxes))
	labels := make([]int64, 0, len(a.Labels))
	for i, flag := range a.Difficult {
		if flag != 0 {
			continue
		}
		boxes = append(boxes, a.Boxes[i])
		labels = append(labels, a.Labels[i])
	}
	return boxes, labels
}

type xmlAnnotation struct {
	Objects []struct {
		Name   *string `xml:"name"`
		BndBox *struct {
			XMin *string `xml:"xmin"`
			YMin *string `xml:"ymin"`
			XMax *string `xml:"xmax"`
			YMax *string `xml:"ymax"`
		} `xml:"bndbox"`
		Difficult string `xml:"difficult"`
	} `xml:"object"`
}

// ParseAnnotation decodes a VOC annotation document. Objects whose class is
// not in labels, or is the background class, are skipped. Coordinates are shifted from the 1-indexed VOC
// convention to 0-indexed pixels. A missing or empty difficult flag counts
// as 0.
func ParseAnnotation(r io.Reader, labels *LabelMap) (*Annotation, error) {
	var data xmlAnnotation
	if err := xml.NewDecoder(r).Decode(&data); err != nil {
		return nil, errors.Wrapf(ErrData, "decoding annotation XML: %v", err)
	}

	ann := &Annotation{}
	for i, obj := range data.Objects {
		if obj.Name == nil {
			return nil, errors.Wrapf(ErrData, "object %d has no name", i)
		}
		label, ok := labels.ID(*obj.Name)
		if !ok || label == 0 {
			// Only classes in the label map are of interest; id 0 is
			// reserved for "no object".
			continue
		}
		if obj.BndBox == nil {
			return nil, errors.Wrapf(ErrData, "object %d (%s) has no bndbox", i, *obj.Name)
		}

		var box Box
		fields := []*string{obj.BndBox.XMin, obj.BndBox.YMin, obj.BndBox.XMax, obj.BndBox.YMax}
		for j, field := range fields {
			if field == nil {
				return nil, errors.Wrapf(ErrData, "object %d (%s) bndbox is missing %s", i, *obj.Name, boxFieldNames[j])
			}
			v, err := parseFloat32(*field)
			if err != nil {
				return nil, errors.Wrapf(ErrData, "object %d (%s) %s: %v", i, *obj.Name, boxFieldNames[j], err)
			}
			box[j] = v - 1
		}

		difficult := uint8(0)
		if s := strings.TrimSpace(obj.Difficult); s != "" {
			v, err := strconv.ParseUint(s, 10, 8)
			if err != nil {
				return nil, errors.Wrapf(ErrData, "object %d (%s) difficult: %v", i, *obj.Name, err)
			}
			difficult = uint8(v)
		}

		ann.Boxes = append(ann.Boxes, box)
		ann.Labels = append(ann.Labels, label)
		ann.Difficult = append(ann.Difficult, difficult)
	}
	return ann, nil
}

var boxFieldNames = [4]string{"xmin", "ymin", "xmax", "ymax"}

// LoadAnnotation reads and parses <root>/Annotations/<id>.xml.
func LoadAnnotation(root, id string, labels *LabelMap) (*Annotation, error) {
	path := filepath.Join(root, AnnotationsDir, id+".xml")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "annotation %s", path)
		}
		return nil, errors.Wrapf(ErrData, "opening annotation %s: %v", path, err)
	}
	defer f.Close()

	ann, err := ParseAnnotation(f, labels)
	if err != nil {
		return nil, errors.WithMessagef(err, "in %s", path)
	}
	return ann, nil
}
