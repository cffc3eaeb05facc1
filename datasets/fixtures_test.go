package datasets

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// vocObject describes one <object> element of a fixture annotation. An
// empty difficult string omits the element.
type vocObject struct {
	name                   string
	xmin, ymin, xmax, ymax string
	difficult              string
}

// newRoot creates a dataset root with the Annotations and JPEGImages
// directories.
func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{AnnotationsDir, ImagesDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func annotationXML(objects []vocObject) string {
	var sb strings.Builder
	sb.WriteString("<annotation>\n  <folder>VOC2007</folder>\n")
	for _, obj := range objects {
		sb.WriteString("  <object>\n")
		fmt.Fprintf(&sb, "    <name>%s</name>\n", obj.name)
		sb.WriteString("    <pose>Unspecified</pose>\n")
		if obj.difficult != "" {
			fmt.Fprintf(&sb, "    <difficult>%s</difficult>\n", obj.difficult)
		}
		fmt.Fprintf(&sb, "    <bndbox><xmin>%s</xmin><ymin>%s</ymin><xmax>%s</xmax><ymax>%s</ymax></bndbox>\n",
			obj.xmin, obj.ymin, obj.xmax, obj.ymax)
		sb.WriteString("  </object>\n")
	}
	sb.WriteString("</annotation>\n")
	return sb.String()
}

// writeAnnotation writes Annotations/<id>.xml.
func writeAnnotation(t *testing.T, root, id string, objects []vocObject) {
	t.Helper()
	writeFile(t, filepath.Join(root, AnnotationsDir, id+".xml"), annotationXML(objects))
}

// writeJPEG writes JPEGImages/<id>.jpg filled with c.
func writeJPEG(t *testing.T, root, id string, width, height int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(filepath.Join(root, ImagesDir, id+".jpg"))
	if err != nil {
		t.Fatalf("failed to create jpeg %s: %v", id, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("failed to encode jpeg %s: %v", id, err)
	}
}

// writeRecordIndex writes a split record file listing ids by source id.
func writeRecordIndex(t *testing.T, root string, split Split, ids []string) {
	t.Helper()
	f, err := os.Create(filepath.Join(root, split.RecordFile()))
	if err != nil {
		t.Fatalf("failed to create record file: %v", err)
	}
	defer f.Close()
	rw := NewRecordWriter(f)
	for _, id := range ids {
		features := Features{FeatureSourceID: {Bytes: [][]byte{[]byte(id)}}}
		if err := rw.Write(EncodeExample(features)); err != nil {
			t.Fatalf("failed to write record: %v", err)
		}
	}
	if err := rw.Flush(); err != nil {
		t.Fatalf("failed to flush records: %v", err)
	}
}

// writeSample writes a 16x12 image and an annotation for id.
func writeSample(t *testing.T, root, id string, objects []vocObject) {
	t.Helper()
	writeJPEG(t, root, id, 16, 12, color.RGBA{R: 255, A: 255})
	writeAnnotation(t, root, id, objects)
}

// box returns a recognized object with the given class and difficulty.
func box(name, difficult string) vocObject {
	return vocObject{name: name, xmin: "2", ymin: "3", xmax: "10", ymax: "11", difficult: difficult}
}
