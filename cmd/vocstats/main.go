// Command vocstats scans one split of a VOC record dataset, prints the number
// of detections per class and renders them as a bar chart.
//
// Usage:
//
//	go run ./cmd/vocstats -root /data/voc -split val -out plots/val_classes.png
//
// Settings can also be read from a YAML file (-config); flags given on the
// command line take precedence.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/Noofbiz/vocbatch/datasets"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// config is the YAML layout accepted by -config.
type config struct {
	Root       string  `yaml:"root"`
	Split      string  `yaml:"split"`
	Out        string  `yaml:"out"`
	PlotWidth  float64 `yaml:"plot_width_inches"`
	PlotHeight float64 `yaml:"plot_height_inches"`
}

func loadConfig(path string) (config, error) {
	cfg := config{Split: "train", Out: "plots/classes.png", PlotWidth: 10, PlotHeight: 5}
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

func parseSplit(s string) (datasets.Split, error) {
	switch s {
	case "train":
		return datasets.SplitTrain, nil
	case "val", "validation":
		return datasets.SplitValidation, nil
	}
	return 0, fmt.Errorf("unknown split %q, want train or val", s)
}

func main() {
	klog.InitFlags(nil)
	configPath := flag.String("config", "", "optional YAML config file")
	rootFlag := flag.String("root", "", "dataset root directory (holds label_map.txt, <split>.record, Annotations/)")
	splitFlag := flag.String("split", "train", "split to scan: train or val")
	outFlag := flag.String("out", "plots/classes.png", "output PNG path for the class histogram; empty skips plotting")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		klog.Exitf("failed to load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Root = *rootFlag
		case "split":
			cfg.Split = *splitFlag
		case "out":
			cfg.Out = *outFlag
		}
	})
	if cfg.Root == "" {
		klog.Exitf("-root (or root in the config file) is required")
	}
	split, err := parseSplit(cfg.Split)
	if err != nil {
		klog.Exit(err)
	}

	numRecords, err := datasets.ReadNumRecords(cfg.Root, split)
	if err != nil {
		klog.Exitf("failed to read record count: %v", err)
	}
	ds, err := datasets.NewVOCDataset(cfg.Root, datasets.Options{Split: split, NumRecords: numRecords})
	if err != nil {
		klog.Exitf("failed to open dataset: %v", err)
	}
	if info, err := os.Stat(filepath.Join(cfg.Root, split.RecordFile())); err == nil {
		klog.Infof("%s: %s samples, record index %s", ds.Name(), humanize.Comma(int64(ds.Len())), humanize.Bytes(uint64(info.Size())))
	}

	bar := progressbar.Default(int64(ds.Len()), "Scanning annotations")
	stats, err := datasets.CountClasses(ds, func(done int) { _ = bar.Set(done) })
	if err != nil {
		klog.Exitf("failed to scan annotations: %v", err)
	}
	_ = bar.Finish()

	printStats(stats)
	if cfg.Out == "" {
		return
	}
	if err := plotStats(stats, cfg); err != nil {
		klog.Exitf("failed to plot class histogram: %v", err)
	}
	klog.Infof("Class histogram written to %s", cfg.Out)
}

func printStats(stats *datasets.ClassStats) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "id\tclass\tdetections\tdifficult\t")
	for id, name := range stats.Labels.Names() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", id, name,
			humanize.Comma(int64(stats.Counts[id])), humanize.Comma(int64(stats.Difficult[id])))
	}
	fmt.Fprintf(tw, "\ttotal\t%s\t\t\n", humanize.Comma(int64(stats.Detections)))
	tw.Flush()
}

func plotStats(stats *datasets.ClassStats, cfg config) error {
	// Background never has detections; leave it out of the chart.
	names := stats.Labels.Names()[1:]
	values := make(plotter.Values, len(names))
	for i := range names {
		values[i] = float64(stats.Counts[i+1])
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Detections per class (%d samples)", stats.Samples)
	p.Y.Label.Text = "detections"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)

	if err := os.MkdirAll(filepath.Dir(cfg.Out), 0o755); err != nil {
		return err
	}
	return p.Save(vg.Length(cfg.PlotWidth)*vg.Inch, vg.Length(cfg.PlotHeight)*vg.Inch, cfg.Out)
}
