package datasets

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// TestWriteSplitRecords builds val.record from a VOC image set and opens the
// result as a validation dataset.
func TestWriteSplitRecords(t *testing.T) {
	root := newRoot(t)
	writeSample(t, root, "2007_000027", []vocObject{box("person", "0"), box("dog", "1")})
	writeSample(t, root, "2007_000032", []vocObject{box("aeroplane", "0")})

	setDir := filepath.Join(root, "ImageSets", "Main")
	if err := os.MkdirAll(setDir, 0o755); err != nil {
		t.Fatalf("failed to create image set dir: %v", err)
	}
	writeFile(t, filepath.Join(setDir, "val.txt"), "2007_000027  1\n\n2007_000032 -1\n")

	ids, err := ReadImageSet(filepath.Join(setDir, "val.txt"))
	if err != nil {
		t.Fatalf("ReadImageSet failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"2007_000027", "2007_000032"}) {
		t.Fatalf("unexpected image set %v", ids)
	}

	var progressed int
	labels := DefaultLabelMap()
	if err := WriteSplitRecords(root, SplitValidation, ids, labels, func(done int) { progressed = done }); err != nil {
		t.Fatalf("WriteSplitRecords failed: %v", err)
	}
	if progressed != 2 {
		t.Fatalf("progress reported %d, want 2", progressed)
	}

	n, err := ReadNumRecords(root, SplitValidation)
	if err != nil || n != 2 {
		t.Fatalf("ReadNumRecords = %d, %v; want 2", n, err)
	}
	ds, err := NewVOCDataset(root, Options{Split: SplitValidation, NumRecords: n})
	if err != nil {
		t.Fatalf("NewVOCDataset failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", ds.Len())
	}
	if id, err := ds.ID(1); err != nil || id != "2007_000032" {
		t.Fatalf("ID(1) = %q, %v", id, err)
	}

	features, err := ExampleFeatures(root, "2007_000027", labels)
	if err != nil {
		t.Fatalf("ExampleFeatures failed: %v", err)
	}
	if got := features[FeatureClassLabel].Int64s; !reflect.DeepEqual(got, []int64{15, 12}) {
		t.Fatalf("unexpected class labels %v", got)
	}
	if got := features[FeatureDifficult].Int64s; !reflect.DeepEqual(got, []int64{0, 1}) {
		t.Fatalf("unexpected difficult flags %v", got)
	}
	// xmin=2 on a 16 pixel wide image.
	if got := features[FeatureXMin].Floats[0]; got != 2.0/16 {
		t.Fatalf("unexpected normalized xmin %v", got)
	}
	if w := features[FeatureWidth].Int64s[0]; w != 16 {
		t.Fatalf("unexpected width %d", w)
	}
}

func TestReadImageSet_Missing(t *testing.T) {
	_, err := ReadImageSet(filepath.Join(t.TempDir(), "ImageSets", "Main", "val.txt"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
