package main

// Example command that demonstrates opening a VOC record dataset, inspecting
// a single annotation and converting a few batches into gomlx tensors through
// the train.Dataset interface.
//
// The dataset uses lazy loading - only the label map and record index are
// read up front; images and annotations are read per batch.
//
// Usage:
//   go run ./datasets/example -root /data/voc -batch-size 8
//
// The root must hold train.record (see cmd/vocrecord), Annotations/ and
// JPEGImages/.

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"

	"github.com/Noofbiz/vocbatch/datasets"
)

func main() {
	root := flag.String("root", "../assets/voc", "dataset root directory")
	batchSize := flag.Int("batch-size", 8, "samples per batch")
	maxBatches := flag.Int("max-batches", 3, "number of batches to load")
	size := flag.Int("size", 300, "images are resized to size x size")
	seed := flag.Int64("seed", 42, "shuffle seed")
	flag.Parse()

	numRecords, err := datasets.ReadNumRecords(*root, datasets.SplitTrain)
	if err != nil {
		log.Fatalf("failed to read record count: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	ds, err := datasets.NewVOCDataset(*root, datasets.Options{
		BatchSize:  *batchSize,
		NumRecords: numRecords,
		Rand:       rng,
		Transform: datasets.Compose(
			datasets.Resize(*size, *size),
			datasets.HorizontalFlip(rng, 0.5),
			datasets.Normalize([]float32{123, 117, 104}, []float32{58, 57, 57}),
		),
		// Batches need the same number of detections per sample.
		TargetTransform: datasets.PadTargets(16),
	})
	if err != nil {
		log.Fatalf("failed to open dataset: %v", err)
	}
	fmt.Printf("Total samples: %d in %d batches of %d\n", ds.Len(), ds.NumBatches(), ds.BatchSize())
	fmt.Printf("Classes: %v\n", ds.Labels().Names())

	if ds.Len() > 0 {
		id, ann, err := ds.Annotation(0)
		if err != nil {
			log.Fatalf("failed to read annotation 0: %v", err)
		}
		fmt.Printf("Sample %s has %d detections\n", id, ann.Len())
		for i, box := range ann.Boxes {
			name, _ := ds.Labels().Name(ann.Labels[i])
			fmt.Printf("  %-12s %v difficult=%d\n", name, box, ann.Difficult[i])
		}
	}

	for b := 0; b < *maxBatches; b++ {
		_, inputs, targets, err := ds.Yield()
		if errors.Is(err, io.EOF) {
			fmt.Println("End of epoch.")
			break
		}
		if err != nil {
			log.Fatalf("failed to yield batch: %v", err)
		}
		fmt.Printf("Batch %d: inputs=%s targets=%s\n", b, inputs[0].Shape(), targets[0].Shape())
	}
}
