package datasets

import "testing"

func TestCountClasses(t *testing.T) {
	root, _ := newCatDogRoot(t, 3)
	writeSample(t, root, "000002", []vocObject{box("cat", "0"), box("cat", "0"), box("bird", "0")})

	ds, err := NewVOCDataset(root, Options{})
	if err != nil {
		t.Fatalf("NewVOCDataset failed: %v", err)
	}
	calls := 0
	stats, err := CountClasses(ds, func(int) { calls++ })
	if err != nil {
		t.Fatalf("CountClasses failed: %v", err)
	}
	if calls != 3 || stats.Samples != 3 {
		t.Fatalf("expected 3 samples scanned, got calls=%d samples=%d", calls, stats.Samples)
	}
	// Samples 1 and 3 hold cat+dog, sample 2 two cats (the bird is unknown).
	if stats.Counts[1] != 4 || stats.Counts[2] != 2 || stats.Counts[0] != 0 {
		t.Fatalf("unexpected counts %v", stats.Counts)
	}
	if stats.Difficult[2] != 2 || stats.Detections != 6 {
		t.Fatalf("unexpected difficult=%v detections=%d", stats.Difficult, stats.Detections)
	}
}
