package datasets

import "github.com/pkg/errors"

// Error categories. Every error returned while opening or reading a dataset
// (including transform failures) wraps exactly one of them, so callers can
// branch with errors.Is. The write-side helpers (RecordWriter,
// WriteNumRecords, WriteSplitRecords) return plain I/O errors; a failure to
// read the sample being written still carries its category.
var (
	// ErrConfig is returned at construction for a missing root directory,
	// a missing split record file or invalid options.
	ErrConfig = errors.New("dataset configuration error")

	// ErrNotFound is returned when an image or annotation file of a known
	// sample identifier does not exist.
	ErrNotFound = errors.New("dataset file not found")

	// ErrData is returned for malformed annotation XML, non-numeric
	// coordinates, corrupt records or batches that cannot be stacked.
	ErrData = errors.New("dataset data error")

	// ErrIncompleteBatch is returned by Batch when the shuffled index range
	// runs out before BatchSize samples were accumulated. The range end is
	// clamped to Len()-1, so the final batch of a split never completes.
	ErrIncompleteBatch = errors.New("incomplete batch")
)
