// Package tiffraster reads and writes strip-organised baseline TIFF files
// holding a single 32-bit IEEE float sample per pixel, and extracts single
// channels from 8-bit colour or grey TIFF files.
package tiffraster

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/sciconv/internal/binrec"
)

// Tags used by this package.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagDocumentName    = 269
	tagStripOffsets    = 273
	tagOrientation     = 274
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagSoftware        = 305
	tagSampleFormat    = 339
)

// Field types.
const (
	dtByte  = 1
	dtASCII = 2
	dtShort = 3
	dtLong  = 4
)

// Tag values.
const (
	CompressionNone       = 1
	PhotometricMinIsBlack = 1
	PhotometricRGB        = 2
	OrientationTopLeft    = 1
	PlanarContig          = 1
	PlanarSeparate        = 2
	SampleFormatUint      = 1
	SampleFormatIEEEFP    = 3
)

const (
	headerSize = 8
	entrySize  = 12
	magic      = 42
)

// Info is the first image file directory of a TIFF file.
type Info struct {
	ByteOrder       binary.ByteOrder
	Width           int
	Height          int
	BitsPerSample   []int
	SamplesPerPixel int
	SampleFormat    int
	Compression     int
	Photometric     int
	Orientation     int
	PlanarConfig    int
	RowsPerStrip    int
	StripOffsets    []int64
	StripByteCounts []int64
	Software        string
	DocumentName    string
}

// Bits returns the bit depth shared by every sample, or -1 when samples
// differ in depth.
func (in Info) Bits() int {
	if len(in.BitsPerSample) == 0 {
		return 1
	}
	b := in.BitsPerSample[0]
	for _, v := range in.BitsPerSample[1:] {
		if v != b {
			return -1
		}
	}
	return b
}

// StripsPerPlane is the number of strips covering the image height.
func (in Info) StripsPerPlane() int {
	if in.RowsPerStrip <= 0 {
		return 0
	}
	return (in.Height + in.RowsPerStrip - 1) / in.RowsPerStrip
}

// DecodeInfo parses the TIFF header and first IFD. Both byte orders are
// accepted. Tags other than those this package needs are skipped.
func DecodeInfo(r io.ReaderAt) (Info, error) {
	var hdr [headerSize]byte
	if err := readAt(r, hdr[:], 0, binrec.StageHeader, "tiff header"); err != nil {
		return Info{}, err
	}

	var order binary.ByteOrder
	switch string(hdr[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return Info{}, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff header", "bad byte order mark %q", hdr[0:2])
	}
	if m := order.Uint16(hdr[2:]); m != magic {
		return Info{}, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff header", "magic %d, want %d", m, magic)
	}
	ifd := int64(order.Uint32(hdr[4:]))

	var cnt [2]byte
	if err := readAt(r, cnt[:], ifd, binrec.StageHeader, "tiff directory"); err != nil {
		return Info{}, err
	}
	n := int(order.Uint16(cnt[:]))
	entries := make([]byte, n*entrySize)
	if err := readAt(r, entries, ifd+2, binrec.StageHeader, "tiff directory"); err != nil {
		return Info{}, err
	}

	in := Info{
		ByteOrder:       order,
		SamplesPerPixel: 1,
		SampleFormat:    SampleFormatUint,
		Compression:     CompressionNone,
		Orientation:     OrientationTopLeft,
		PlanarConfig:    PlanarContig,
	}
	rowsPerStrip := -1
	for i := 0; i < n; i++ {
		e := entries[i*entrySize : (i+1)*entrySize]
		tag := order.Uint16(e[0:])
		typ := order.Uint16(e[2:])
		count := order.Uint32(e[4:])

		switch tag {
		case tagImageWidth, tagImageLength, tagBitsPerSample, tagCompression,
			tagPhotometric, tagStripOffsets, tagOrientation, tagSamplesPerPixel,
			tagRowsPerStrip, tagStripByteCounts, tagPlanarConfig, tagSampleFormat:
			vals, err := readInts(r, order, e, typ, count)
			if err != nil {
				return Info{}, err
			}
			if len(vals) == 0 {
				continue
			}
			switch tag {
			case tagImageWidth:
				in.Width = int(vals[0])
			case tagImageLength:
				in.Height = int(vals[0])
			case tagBitsPerSample:
				in.BitsPerSample = make([]int, len(vals))
				for j, v := range vals {
					in.BitsPerSample[j] = int(v)
				}
			case tagCompression:
				in.Compression = int(vals[0])
			case tagPhotometric:
				in.Photometric = int(vals[0])
			case tagStripOffsets:
				in.StripOffsets = vals
			case tagOrientation:
				in.Orientation = int(vals[0])
			case tagSamplesPerPixel:
				in.SamplesPerPixel = int(vals[0])
			case tagRowsPerStrip:
				rowsPerStrip = int(vals[0])
			case tagStripByteCounts:
				in.StripByteCounts = vals
			case tagPlanarConfig:
				in.PlanarConfig = int(vals[0])
			case tagSampleFormat:
				in.SampleFormat = int(vals[0])
			}
		case tagSoftware, tagDocumentName:
			if typ != dtASCII {
				continue
			}
			s, err := readASCII(r, order, e, count)
			if err != nil {
				return Info{}, err
			}
			if tag == tagSoftware {
				in.Software = s
			} else {
				in.DocumentName = s
			}
		}
	}

	if in.Width <= 0 || in.Height <= 0 {
		return Info{}, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff directory", "image dimensions %dx%d", in.Width, in.Height)
	}
	if len(in.StripOffsets) == 0 {
		return Info{}, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff directory", "no strip offsets (tiled images are not supported)")
	}
	if rowsPerStrip <= 0 || rowsPerStrip > in.Height {
		rowsPerStrip = in.Height
	}
	in.RowsPerStrip = rowsPerStrip
	return in, nil
}

func typeSize(typ uint16) int {
	switch typ {
	case dtByte, dtASCII:
		return 1
	case dtShort:
		return 2
	case dtLong:
		return 4
	}
	return 0
}

// fieldData returns the raw value bytes of an entry, inline or at its offset.
func fieldData(r io.ReaderAt, order binary.ByteOrder, e []byte, typ uint16, count uint32) ([]byte, error) {
	size := int64(typeSize(typ)) * int64(count)
	if size <= 4 {
		return e[8 : 8+size], nil
	}
	if size > 1<<28 {
		return nil, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff directory", "field of %d bytes", size)
	}
	buf := make([]byte, size)
	off := int64(order.Uint32(e[8:]))
	if err := readAt(r, buf, off, binrec.StageHeader, "tiff directory"); err != nil {
		return nil, err
	}
	return buf, nil
}

func readInts(r io.ReaderAt, order binary.ByteOrder, e []byte, typ uint16, count uint32) ([]int64, error) {
	if typ != dtByte && typ != dtShort && typ != dtLong {
		tag := order.Uint16(e[0:])
		return nil, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff directory", "tag %d has field type %d", tag, typ)
	}
	data, err := fieldData(r, order, e, typ, count)
	if err != nil {
		return nil, err
	}
	vals := make([]int64, count)
	for i := range vals {
		switch typ {
		case dtByte:
			vals[i] = int64(data[i])
		case dtShort:
			vals[i] = int64(order.Uint16(data[2*i:]))
		case dtLong:
			vals[i] = int64(order.Uint32(data[4*i:]))
		}
	}
	return vals, nil
}

func readASCII(r io.ReaderAt, order binary.ByteOrder, e []byte, count uint32) (string, error) {
	data, err := fieldData(r, order, e, dtASCII, count)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\x00"), nil
}

// readAt fills buf from offset off, mapping a short read to Truncated.
func readAt(r io.ReaderAt, buf []byte, off int64, stage binrec.Stage, op string) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return binrec.Errorf(binrec.KindTruncated, stage, op, "got %d of %d bytes at offset %d", n, len(buf), off)
	}
	return &binrec.Error{Kind: binrec.KindOpen, Stage: stage, Op: op, Err: fmt.Errorf("read at %d: %w", off, err)}
}
