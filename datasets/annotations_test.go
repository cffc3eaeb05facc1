package datasets

import (
	"errors"
	"strings"
	"testing"
)

func catDogLabels(t *testing.T) *LabelMap {
	t.Helper()
	lm, err := ParseLabelMap("cat,dog")
	if err != nil {
		t.Fatalf("ParseLabelMap failed: %v", err)
	}
	return lm
}

// TestParseAnnotation_Conversion checks the 1-indexed to 0-indexed shift and
// label resolution.
func TestParseAnnotation_Conversion(t *testing.T) {
	doc := annotationXML([]vocObject{
		{name: " Dog ", xmin: "1", ymin: "5", xmax: "100", ymax: "200.5", difficult: "0"},
	})
	ann, err := ParseAnnotation(strings.NewReader(doc), catDogLabels(t))
	if err != nil {
		t.Fatalf("ParseAnnotation failed: %v", err)
	}
	if ann.Len() != 1 {
		t.Fatalf("expected 1 detection, got %d", ann.Len())
	}
	want := Box{0, 4, 99, 199.5}
	if ann.Boxes[0] != want {
		t.Fatalf("unexpected box: got %v want %v", ann.Boxes[0], want)
	}
	if ann.Labels[0] != 2 {
		t.Fatalf("expected label 2 (dog), got %d", ann.Labels[0])
	}
}

// TestParseAnnotation_UnknownClassDropped verifies objects of classes not in
// the label map are skipped without error.
func TestParseAnnotation_UnknownClassDropped(t *testing.T) {
	doc := annotationXML([]vocObject{
		box("zebra", "0"),
		box("cat", "1"),
		box(" Background ", "0"),
	})
	ann, err := ParseAnnotation(strings.NewReader(doc), catDogLabels(t))
	if err != nil {
		t.Fatalf("ParseAnnotation failed: %v", err)
	}
	if ann.Len() != 1 || ann.Labels[0] != 1 || ann.Difficult[0] != 1 {
		t.Fatalf("expected only the cat detection, got %+v", ann)
	}
}

func TestParseAnnotation_DifficultDefaults(t *testing.T) {
	doc := `<annotation>
  <object><name>cat</name><bndbox><xmin>1</xmin><ymin>1</ymin><xmax>2</xmax><ymax>2</ymax></bndbox></object>
  <object><name>dog</name><difficult> </difficult><bndbox><xmin>1</xmin><ymin>1</ymin><xmax>2</xmax><ymax>2</ymax></bndbox></object>
  <object><name>dog</name><difficult>1</difficult><bndbox><xmin>1</xmin><ymin>1</ymin><xmax>2</xmax><ymax>2</ymax></bndbox></object>
</annotation>`
	ann, err := ParseAnnotation(strings.NewReader(doc), catDogLabels(t))
	if err != nil {
		t.Fatalf("ParseAnnotation failed: %v", err)
	}
	want := []uint8{0, 0, 1}
	if len(ann.Difficult) != len(want) {
		t.Fatalf("expected %d flags, got %v", len(want), ann.Difficult)
	}
	for i := range want {
		if ann.Difficult[i] != want[i] {
			t.Fatalf("difficult[%d] = %d, want %d", i, ann.Difficult[i], want[i])
		}
	}

	boxes, labels := ann.WithoutDifficult()
	if len(boxes) != 2 || len(labels) != 2 || labels[0] != 1 || labels[1] != 2 {
		t.Fatalf("WithoutDifficult returned boxes=%v labels=%v", boxes, labels)
	}
}

// TestParseAnnotation_AlignedAndValid checks that all arrays have the same
// length and every label is a valid id, on a mix of known and unknown classes.
func TestParseAnnotation_AlignedAndValid(t *testing.T) {
	lm := DefaultLabelMap()
	doc := annotationXML([]vocObject{
		box("person", "0"),
		box("unicorn", "0"),
		box("TVMonitor", "1"),
		box("car", ""),
		box("", "0"),
	})
	ann, err := ParseAnnotation(strings.NewReader(doc), lm)
	if err != nil {
		t.Fatalf("ParseAnnotation failed: %v", err)
	}
	if len(ann.Boxes) != 3 || len(ann.Labels) != 3 || len(ann.Difficult) != 3 {
		t.Fatalf("misaligned annotation: boxes=%d labels=%d difficult=%d",
			len(ann.Boxes), len(ann.Labels), len(ann.Difficult))
	}
	for _, label := range ann.Labels {
		if _, ok := lm.Name(label); !ok {
			t.Fatalf("label %d is not in the label map", label)
		}
	}
}

func TestParseAnnotation_DataErrors(t *testing.T) {
	cases := map[string]string{
		"malformed":      "<annotation><object><name>cat</name>",
		"non numeric":    annotationXML([]vocObject{{name: "cat", xmin: "one", ymin: "1", xmax: "2", ymax: "2"}}),
		"empty coord":    annotationXML([]vocObject{{name: "cat", xmin: "", ymin: "1", xmax: "2", ymax: "2"}}),
		"bad difficult":  annotationXML([]vocObject{{name: "cat", xmin: "1", ymin: "1", xmax: "2", ymax: "2", difficult: "yes"}}),
		"missing bndbox": "<annotation><object><name>cat</name></object></annotation>",
		"missing name":   "<annotation><object><bndbox><xmin>1</xmin></bndbox></object></annotation>",
		"missing ymax":   "<annotation><object><name>dog</name><bndbox><xmin>1</xmin><ymin>1</ymin><xmax>2</xmax></bndbox></object></annotation>",
	}
	for name, doc := range cases {
		if _, err := ParseAnnotation(strings.NewReader(doc), catDogLabels(t)); !errors.Is(err, ErrData) {
			t.Fatalf("%s: expected ErrData, got %v", name, err)
		}
	}
}

func TestParseAnnotation_NoObjects(t *testing.T) {
	ann, err := ParseAnnotation(strings.NewReader("<annotation><filename>a.jpg</filename></annotation>"), catDogLabels(t))
	if err != nil {
		t.Fatalf("ParseAnnotation failed: %v", err)
	}
	if ann.Len() != 0 {
		t.Fatalf("expected no detections, got %d", ann.Len())
	}
}

func TestLoadAnnotation_NotFound(t *testing.T) {
	root := newRoot(t)
	if _, err := LoadAnnotation(root, "missing", catDogLabels(t)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
