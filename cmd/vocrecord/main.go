// Command vocrecord builds the record index of a Pascal VOC directory so it
// can be opened with datasets.NewVOCDataset. For each split it reads
// ImageSets/Main/<set>.txt and writes <split>.record and num_<split>.txt
// under the root.
//
// Usage:
//
//	go run ./cmd/vocrecord -root /data/VOC2007 -train-set trainval -val-set test
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Noofbiz/vocbatch/datasets"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// config is the YAML layout accepted by -config.
type config struct {
	Root     string `yaml:"root"`
	TrainSet string `yaml:"train_set"`
	ValSet   string `yaml:"val_set"`
}

func loadConfig(path string) (config, error) {
	cfg := config{TrainSet: "train", ValSet: "val"}
	if path == "" {
		return cfg, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	klog.InitFlags(nil)
	configPath := flag.String("config", "", "optional YAML config file")
	rootFlag := flag.String("root", "", "VOC directory holding ImageSets/, Annotations/ and JPEGImages/")
	trainSet := flag.String("train-set", "train", "image set written as train.record; empty skips the split")
	valSet := flag.String("val-set", "val", "image set written as val.record; empty skips the split")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		klog.Exitf("failed to load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Root = *rootFlag
		case "train-set":
			cfg.TrainSet = *trainSet
		case "val-set":
			cfg.ValSet = *valSet
		}
	})
	if cfg.Root == "" {
		klog.Exitf("-root (or root in the config file) is required")
	}

	labels, err := datasets.LoadLabelMap(cfg.Root)
	if err != nil {
		klog.Exitf("failed to load label map: %v", err)
	}

	splits := []struct {
		split datasets.Split
		set   string
	}{
		{datasets.SplitTrain, cfg.TrainSet},
		{datasets.SplitValidation, cfg.ValSet},
	}
	for _, s := range splits {
		if s.set == "" {
			continue
		}
		if err := writeSplit(cfg.Root, s.split, s.set, labels); err != nil {
			klog.Exitf("failed to write %s split: %v", s.split, err)
		}
	}
}

func writeSplit(root string, split datasets.Split, set string, labels *datasets.LabelMap) error {
	ids, err := datasets.ReadImageSet(filepath.Join(root, "ImageSets", "Main", set+".txt"))
	if err != nil {
		return err
	}
	bar := progressbar.Default(int64(len(ids)), fmt.Sprintf("Writing %s", split.RecordFile()))
	err = datasets.WriteSplitRecords(root, split, ids, labels, func(done int) { _ = bar.Set(done) })
	_ = bar.Finish()
	if err != nil {
		return err
	}

	path := filepath.Join(root, split.RecordFile())
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	klog.Infof("Wrote %s: %s records from image set %q, %s", path,
		humanize.Comma(int64(len(ids))), set, humanize.Bytes(uint64(info.Size())))
	return nil
}
