package datasets

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"k8s.io/klog/v2"
)

// Record files use the TFRecord framing:
//
//	uint64 length (little endian)
//	uint32 masked crc32c of length
//	byte   data[length]
//	uint32 masked crc32c of data
//
// Each record holds a serialized tf.Example, decoded here into Features.

const crcMaskDelta = 0xa282ead8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	crc := crc32.Checksum(b, castagnoli)
	return ((crc >> 15) | (crc << 17)) + crcMaskDelta
}

// RecordReader reads records sequentially from a TFRecord stream.
type RecordReader struct {
	r      *bufio.Reader
	header [12]byte
	footer [4]byte
	offset int64
}

// NewRecordReader wraps r.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: bufio.NewReader(r)}
}

// Next returns the payload of the next record, or io.EOF after the last one.
func (rr *RecordReader) Next() ([]byte, error) {
	if _, err := io.ReadFull(rr.r, rr.header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(ErrData, "record header at offset %d: %v", rr.offset, err)
	}
	length := binary.LittleEndian.Uint64(rr.header[:8])
	if maskedCRC(rr.header[:8]) != binary.LittleEndian.Uint32(rr.header[8:]) {
		return nil, errors.Wrapf(ErrData, "record length checksum mismatch at offset %d", rr.offset)
	}
	if length > 1<<32 {
		return nil, errors.Wrapf(ErrData, "record length %d at offset %d is implausible", length, rr.offset)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(rr.r, data); err != nil {
		return nil, errors.Wrapf(ErrData, "record payload at offset %d: %v", rr.offset, err)
	}
	if _, err := io.ReadFull(rr.r, rr.footer[:]); err != nil {
		return nil, errors.Wrapf(ErrData, "record footer at offset %d: %v", rr.offset, err)
	}
	if maskedCRC(data) != binary.LittleEndian.Uint32(rr.footer[:]) {
		return nil, errors.Wrapf(ErrData, "record payload checksum mismatch at offset %d", rr.offset)
	}
	rr.offset += int64(len(rr.header)) + int64(length) + int64(len(rr.footer))
	return data, nil
}

// RecordWriter appends records in TFRecord framing.
type RecordWriter struct {
	w *bufio.Writer
}

// NewRecordWriter wraps w. Flush must be called when done.
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: bufio.NewWriter(w)}
}

// Write appends one record.
func (rw *RecordWriter) Write(data []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(data))
	for _, b := range [][]byte{header[:], data, footer[:]} {
		if _, err := rw.w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered data.
func (rw *RecordWriter) Flush() error {
	return rw.w.Flush()
}

// Feature is one entry of a tf.Example. Only one of the lists is set.
type Feature struct {
	Bytes  [][]byte
	Floats []float32
	Int64s []int64
}

// Features is the feature map of a tf.Example.
type Features map[string]Feature

// String returns the first bytes value of key as a string, if any.
func (f Features) String(key string) (string, bool) {
	feat, ok := f[key]
	if !ok || len(feat.Bytes) == 0 {
		return "", false
	}
	return string(feat.Bytes[0]), true
}

// tf.Example field numbers.
const (
	exampleFeaturesField = 1 // Example.features
	featuresMapField     = 1 // Features.feature
	mapKeyField          = 1
	mapValueField        = 2
	featureBytesField    = 1 // Feature.bytes_list
	featureFloatField    = 2 // Feature.float_list
	featureInt64Field    = 3 // Feature.int64_list
	listValueField       = 1 // {Bytes,Float,Int64}List.value
)

// consumeFields walks the fields of a protobuf message, calling fn with the
// field number, wire type and the raw value bytes (for length delimited
// fields) or the varint/fixed value.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, value []byte, scalar uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		var (
			value  []byte
			scalar uint64
		)
		switch typ {
		case protowire.BytesType:
			value, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			scalar, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			scalar = uint64(v)
		case protowire.Fixed64Type:
			scalar, n = protowire.ConsumeFixed64(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(num, typ, value, scalar); err != nil {
			return err
		}
	}
	return nil
}

// DecodeExample decodes a serialized tf.Example.
func DecodeExample(b []byte) (Features, error) {
	features := make(Features)
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, value []byte, _ uint64) error {
		if num != exampleFeaturesField || typ != protowire.BytesType {
			return nil
		}
		return consumeFields(value, func(num protowire.Number, typ protowire.Type, entry []byte, _ uint64) error {
			if num != featuresMapField || typ != protowire.BytesType {
				return nil
			}
			return decodeFeatureEntry(entry, features)
		})
	})
	if err != nil {
		return nil, errors.Wrapf(ErrData, "decoding tf.Example: %v", err)
	}
	return features, nil
}

func decodeFeatureEntry(entry []byte, features Features) error {
	var (
		key  string
		feat Feature
	)
	err := consumeFields(entry, func(num protowire.Number, typ protowire.Type, value []byte, _ uint64) error {
		switch {
		case num == mapKeyField && typ == protowire.BytesType:
			key = string(value)
		case num == mapValueField && typ == protowire.BytesType:
			return decodeFeature(value, &feat)
		}
		return nil
	})
	if err != nil {
		return err
	}
	features[key] = feat
	return nil
}

func decodeFeature(b []byte, feat *Feature) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, list []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case featureBytesField:
			return consumeFields(list, func(num protowire.Number, typ protowire.Type, value []byte, _ uint64) error {
				if num == listValueField && typ == protowire.BytesType {
					feat.Bytes = append(feat.Bytes, append([]byte(nil), value...))
				}
				return nil
			})
		case featureFloatField:
			return consumeFields(list, func(num protowire.Number, typ protowire.Type, value []byte, scalar uint64) error {
				if num != listValueField {
					return nil
				}
				switch typ {
				case protowire.Fixed32Type:
					feat.Floats = append(feat.Floats, float32FromBits(uint32(scalar)))
				case protowire.BytesType: // packed
					for len(value) > 0 {
						v, n := protowire.ConsumeFixed32(value)
						if n < 0 {
							return protowire.ParseError(n)
						}
						feat.Floats = append(feat.Floats, float32FromBits(v))
						value = value[n:]
					}
				}
				return nil
			})
		case featureInt64Field:
			return consumeFields(list, func(num protowire.Number, typ protowire.Type, value []byte, scalar uint64) error {
				if num != listValueField {
					return nil
				}
				switch typ {
				case protowire.VarintType:
					feat.Int64s = append(feat.Int64s, int64(scalar))
				case protowire.BytesType: // packed
					for len(value) > 0 {
						v, n := protowire.ConsumeVarint(value)
						if n < 0 {
							return protowire.ParseError(n)
						}
						feat.Int64s = append(feat.Int64s, int64(v))
						value = value[n:]
					}
				}
				return nil
			})
		}
		return nil
	})
}

// EncodeExample serializes features as a tf.Example. Keys are written in
// sorted order so the output is deterministic.
func EncodeExample(features Features) []byte {
	keys := make([]string, 0, len(features))
	for key := range features {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var featuresMsg []byte
	for _, key := range keys {
		feat := features[key]
		var list []byte
		var listField protowire.Number
		switch {
		case feat.Bytes != nil:
			listField = featureBytesField
			for _, v := range feat.Bytes {
				list = protowire.AppendTag(list, listValueField, protowire.BytesType)
				list = protowire.AppendBytes(list, v)
			}
		case feat.Floats != nil:
			listField = featureFloatField
			var packed []byte
			for _, v := range feat.Floats {
				packed = protowire.AppendFixed32(packed, float32Bits(v))
			}
			list = protowire.AppendTag(list, listValueField, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		default:
			listField = featureInt64Field
			var packed []byte
			for _, v := range feat.Int64s {
				packed = protowire.AppendVarint(packed, uint64(v))
			}
			list = protowire.AppendTag(list, listValueField, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}

		var featureMsg []byte
		featureMsg = protowire.AppendTag(featureMsg, listField, protowire.BytesType)
		featureMsg = protowire.AppendBytes(featureMsg, list)

		var entry []byte
		entry = protowire.AppendTag(entry, mapKeyField, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, mapValueField, protowire.BytesType)
		entry = protowire.AppendBytes(entry, featureMsg)

		featuresMsg = protowire.AppendTag(featuresMsg, featuresMapField, protowire.BytesType)
		featuresMsg = protowire.AppendBytes(featuresMsg, entry)
	}

	var example []byte
	example = protowire.AppendTag(example, exampleFeaturesField, protowire.BytesType)
	example = protowire.AppendBytes(example, featuresMsg)
	return example
}

// Record feature keys, following the TensorFlow object detection layout.
const (
	FeatureFilename   = "image/filename"
	FeatureSourceID   = "image/source_id"
	FeatureFormat     = "image/format"
	FeatureHeight     = "image/height"
	FeatureWidth      = "image/width"
	FeatureXMin       = "image/object/bbox/xmin"
	FeatureXMax       = "image/object/bbox/xmax"
	FeatureYMin       = "image/object/bbox/ymin"
	FeatureYMax       = "image/object/bbox/ymax"
	FeatureClassText  = "image/object/class/text"
	FeatureClassLabel = "image/object/class/label"
	FeatureDifficult  = "image/object/difficult"
)

// sampleID picks the identifier of a record: its source id, else the stem of
// its filename.
func sampleID(features Features) (string, bool) {
	if id, ok := features.String(FeatureSourceID); ok && id != "" {
		return id, true
	}
	if name, ok := features.String(FeatureFilename); ok && name != "" {
		return idFromFilename(name), true
	}
	return "", false
}

// ReadRecordIDs reads the sample identifiers of every record in a TFRecord
// file, in file order. A record without an identifier feature is given its
// zero-padded ordinal.
func ReadRecordIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "record file %s", path)
		}
		return nil, errors.Wrapf(ErrData, "opening record file %s: %v", path, err)
	}
	defer f.Close()

	var ids []string
	rr := NewRecordReader(f)
	for {
		data, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "reading %s", path)
		}
		features, err := DecodeExample(data)
		if err != nil {
			return nil, errors.WithMessagef(err, "record %d of %s", len(ids), path)
		}
		id, ok := sampleID(features)
		if !ok {
			id = ordinalID(len(ids))
			klog.Warningf("Record %d of %s has no %s or %s, using id %q", len(ids), path, FeatureSourceID, FeatureFilename, id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
