package datasets

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

// TestParseLabelMap verifies names are normalized, background is prepended
// and ids follow file order.
func TestParseLabelMap(t *testing.T) {
	lm, err := ParseLabelMap(" Cat , dog,\nhot dog,\n")
	if err != nil {
		t.Fatalf("ParseLabelMap failed: %v", err)
	}
	want := []string{"background", "cat", "dog", "hotdog"}
	if got := lm.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected names: got %v want %v", got, want)
	}
	if id, ok := lm.ID("  CAT "); !ok || id != 1 {
		t.Fatalf("ID(cat) = %d, %v; want 1, true", id, ok)
	}
	if id, ok := lm.ID("hotdog"); !ok || id != 3 {
		t.Fatalf("ID(hotdog) = %d, %v; want 3, true", id, ok)
	}
	if _, ok := lm.ID("bird"); ok {
		t.Fatalf("ID(bird) should not be found")
	}
	if name, ok := lm.Name(0); !ok || name != BackgroundClass {
		t.Fatalf("Name(0) = %q, %v", name, ok)
	}
	if _, ok := lm.Name(4); ok {
		t.Fatalf("Name(4) should be out of range")
	}
}

func TestParseLabelMap_Invalid(t *testing.T) {
	for _, content := range []string{"", " , ,\n", "cat,dog,cat", "background,cat"} {
		if _, err := ParseLabelMap(content); !errors.Is(err, ErrData) {
			t.Fatalf("ParseLabelMap(%q): expected ErrData, got %v", content, err)
		}
	}
}

func TestLoadLabelMap_DefaultWhenMissing(t *testing.T) {
	lm, err := LoadLabelMap(t.TempDir())
	if err != nil {
		t.Fatalf("LoadLabelMap failed: %v", err)
	}
	if lm.Len() != 21 {
		t.Fatalf("expected 21 default classes, got %d", lm.Len())
	}
	if id, ok := lm.ID("tvmonitor"); !ok || id != 20 {
		t.Fatalf("ID(tvmonitor) = %d, %v; want 20, true", id, ok)
	}
	if id, ok := lm.ID("aeroplane"); !ok || id != 1 {
		t.Fatalf("ID(aeroplane) = %d, %v; want 1, true", id, ok)
	}
	if !lm.Equal(DefaultLabelMap()) {
		t.Fatalf("fallback label map differs from DefaultLabelMap")
	}
}

// TestLoadLabelMap_Idempotent loads the same label file twice and expects
// identical mappings.
func TestLoadLabelMap_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, LabelMapFile), "cat,dog,person\n")

	a, err := LoadLabelMap(root)
	if err != nil {
		t.Fatalf("first LoadLabelMap failed: %v", err)
	}
	b, err := LoadLabelMap(root)
	if err != nil {
		t.Fatalf("second LoadLabelMap failed: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("label maps differ: %v vs %v", a.Names(), b.Names())
	}
	for _, name := range a.Names() {
		ida, _ := a.ID(name)
		idb, _ := b.ID(name)
		if ida != idb {
			t.Fatalf("class %q has ids %d and %d", name, ida, idb)
		}
	}
}
