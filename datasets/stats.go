package datasets

// ClassStats holds per-class detection counts over a split, indexed by label
// id.
type ClassStats struct {
	Labels    *LabelMap
	Counts    []int
	Difficult []int

	// Samples scanned and detections found, difficult ones included.
	Samples    int
	Detections int
}

// CountClasses scans the annotations of every sample in ds. If progress is
// not nil it is called after each sample.
func CountClasses(ds *VOCDataset, progress func(done int)) (*ClassStats, error) {
	stats := &ClassStats{
		Labels:    ds.Labels(),
		Counts:    make([]int, ds.Labels().Len()),
		Difficult: make([]int, ds.Labels().Len()),
	}
	for i := range ds.Len() {
		_, ann, err := ds.Annotation(i)
		if err != nil {
			return nil, err
		}
		stats.Samples++
		for j, label := range ann.Labels {
			stats.Counts[label]++
			if ann.Difficult[j] != 0 {
				stats.Difficult[label]++
			}
			stats.Detections++
		}
		if progress != nil {
			progress(i + 1)
		}
	}
	return stats, nil
}
