package datasets

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

// ReadNumRecords reads the optional record count side file of a split
// (num_train.txt or num_val.txt). It returns 0 when the file does not exist.
func ReadNumRecords(root string, split Split) (int, error) {
	path := filepath.Join(root, split.CountFile())
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(ErrConfig, "reading %s: %v", path, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil || n < 0 {
		return 0, errors.Wrapf(ErrConfig, "%s does not hold a record count: %q", path, strings.TrimSpace(string(content)))
	}
	return n, nil
}

// WriteNumRecords writes the record count side file of a split.
func WriteNumRecords(root string, split Split, n int) error {
	path := filepath.Join(root, split.CountFile())
	if err := os.WriteFile(path, []byte(strconv.Itoa(n)+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// idFromFilename strips the directory and extension from an image filename.
func idFromFilename(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ordinalID is the identifier implied for a sample known only by position.
func ordinalID(i int) string {
	return fmt.Sprintf("%06d", i)
}

func float32Bits(v float32) uint32 { return math.Float32bits(v) }

func float32FromBits(b uint32) float32 { return math.Float32frombits(b) }
