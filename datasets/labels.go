package datasets

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LabelMapFile is the name of the class list file under a dataset root.
const LabelMapFile = "label_map.txt"

// BackgroundClass is the reserved class with id 0.
const BackgroundClass = "background"

// defaultClasses are the 20 Pascal VOC categories, preceded by background.
var defaultClasses = []string{
	BackgroundClass,
	"aeroplane", "bicycle", "bird", "boat",
	"bottle", "bus", "car", "cat", "chair",
	"cow", "diningtable", "dog", "horse",
	"motorbike", "person", "pottedplant",
	"sheep", "sofa", "train", "tvmonitor",
}

// LabelMap is an immutable, ordered mapping between class names and label
// ids. Id 0 is always the background class.
type LabelMap struct {
	names []string
	ids   map[string]int64
}

func newLabelMap(names []string) (*LabelMap, error) {
	lm := &LabelMap{
		names: names,
		ids:   make(map[string]int64, len(names)),
	}
	for i, name := range names {
		if _, dup := lm.ids[name]; dup {
			return nil, errors.Wrapf(ErrData, "class %q listed more than once", name)
		}
		lm.ids[name] = int64(i)
	}
	return lm, nil
}

// DefaultLabelMap returns the 21 class Pascal VOC label map.
func DefaultLabelMap() *LabelMap {
	lm, _ := newLabelMap(append([]string(nil), defaultClasses...))
	return lm
}

// ParseLabelMap builds a LabelMap from the contents of a label file: a comma
// separated list of class names. Lines are joined before splitting, so a
// list may be broken over several lines. Names are lower-cased and stripped
// of all whitespace; empty names are ignored. The background class is
// prepended with id 0.
//
// It fails with ErrData when no class is listed, when a name appears twice,
// or when the file itself lists background (which would duplicate id 0).
func ParseLabelMap(content string) (*LabelMap, error) {
	var joined strings.Builder
	for _, line := range strings.Split(content, "\n") {
		joined.WriteString(strings.TrimRightFunc(line, unicode.IsSpace))
	}

	names := []string{BackgroundClass}
	for _, token := range strings.Split(joined.String(), ",") {
		name := normalizeClassName(strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, token))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 1 {
		return nil, errors.Wrap(ErrData, "label map lists no classes")
	}
	return newLabelMap(names)
}

// LoadLabelMap reads <root>/label_map.txt, falling back to DefaultLabelMap
// when the file does not exist.
func LoadLabelMap(root string) (*LabelMap, error) {
	path := filepath.Join(root, LabelMapFile)
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		klog.V(1).Infof("No labels file in %s, using default VOC classes", root)
		return DefaultLabelMap(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "reading label map %s: %v", path, err)
	}
	lm, err := ParseLabelMap(string(content))
	if err != nil {
		return nil, errors.WithMessagef(err, "parsing %s", path)
	}
	klog.V(1).Infof("VOC labels read from file: %v", lm.Names())
	return lm, nil
}

// Len returns the number of classes, background included.
func (lm *LabelMap) Len() int {
	return len(lm.names)
}

// Names returns a copy of the class names ordered by id.
func (lm *LabelMap) Names() []string {
	return append([]string(nil), lm.names...)
}

// ID returns the label id of a class name. The name is normalized the same
// way annotation class names are.
func (lm *LabelMap) ID(name string) (int64, bool) {
	id, ok := lm.ids[normalizeClassName(name)]
	return id, ok
}

// Name returns the class name of a label id.
func (lm *LabelMap) Name(id int64) (string, bool) {
	if id < 0 || id >= int64(len(lm.names)) {
		return "", false
	}
	return lm.names[id], true
}

// Equal reports whether both maps assign the same ids to the same names.
func (lm *LabelMap) Equal(other *LabelMap) bool {
	if lm == nil || other == nil {
		return lm == other
	}
	if len(lm.names) != len(other.names) {
		return false
	}
	for i, name := range lm.names {
		if other.names[i] != name {
			return false
		}
	}
	return true
}

func normalizeClassName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
