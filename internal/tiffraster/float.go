package tiffraster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"math"

	"github.com/banshee-data/sciconv/internal/binrec"
	"github.com/banshee-data/sciconv/internal/raster"
)

// defaultStripBytes is the target strip size used when no rows-per-strip is
// configured, matching libtiff's default of about 8 KiB per strip.
const defaultStripBytes = 8192

// DefaultRowsPerStrip returns the number of rows of a float raster of the
// given width that fit a default-sized strip, at least one.
func DefaultRowsPerStrip(width int) int {
	if width <= 0 {
		return 1
	}
	rows := defaultStripBytes / (4 * width)
	if rows < 1 {
		return 1
	}
	return rows
}

// EncodeOptions controls EncodeFloat32.
type EncodeOptions struct {
	// RowsPerStrip is the strip height; zero selects DefaultRowsPerStrip.
	RowsPerStrip int
	// Software is recorded in the Software tag when non-empty.
	Software string
	// DocumentName is recorded in the DocumentName tag when non-empty.
	DocumentName string
}

type ifdEntry struct {
	tag    uint16
	typ    uint16
	count  uint32
	data   []byte
	offset uint32
}

func shortEntry(tag uint16, v uint16) *ifdEntry {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return &ifdEntry{tag: tag, typ: dtShort, count: 1, data: b}
}

func longEntry(tag uint16, vals ...uint32) *ifdEntry {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return &ifdEntry{tag: tag, typ: dtLong, count: uint32(len(vals)), data: b}
}

func asciiEntry(tag uint16, s string) *ifdEntry {
	b := append([]byte(s), 0)
	return &ifdEntry{tag: tag, typ: dtASCII, count: uint32(len(b)), data: b}
}

// EncodeFloat32 writes f as a little-endian TIFF with one IEEE float sample
// per pixel, uncompressed, organised in strips.
//
// The directory and its out-of-line values are written before the strip
// data, so w need not support seeking. Strip boundaries only affect how the
// rows are grouped; the concatenated strips are the row-major samples of f.
func EncodeFloat32(w io.Writer, f *raster.Float32, opts EncodeOptions) error {
	if f.Width <= 0 || f.Height <= 0 {
		return binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageWrite, "tiff", "image dimensions %dx%d", f.Width, f.Height)
	}
	if int64(f.Width)*int64(f.Height)*4 > math.MaxUint32 {
		return binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageWrite, "tiff", "image %dx%d exceeds the 4 GiB classic TIFF limit", f.Width, f.Height)
	}

	rps := opts.RowsPerStrip
	if rps <= 0 {
		rps = DefaultRowsPerStrip(f.Width)
	}
	if rps > f.Height {
		rps = f.Height
	}
	nstrips := (f.Height + rps - 1) / rps
	rowBytes := 4 * f.Width

	offsets := make([]uint32, nstrips)
	counts := make([]uint32, nstrips)
	for i := range counts {
		rows := rps
		if rem := f.Height - i*rps; rem < rows {
			rows = rem
		}
		counts[i] = uint32(rows * rowBytes)
	}

	offsetsEntry := longEntry(tagStripOffsets, offsets...)
	entries := []*ifdEntry{
		longEntry(tagImageWidth, uint32(f.Width)),
		longEntry(tagImageLength, uint32(f.Height)),
		shortEntry(tagBitsPerSample, 32),
		shortEntry(tagCompression, CompressionNone),
		shortEntry(tagPhotometric, PhotometricMinIsBlack),
	}
	if opts.DocumentName != "" {
		entries = append(entries, asciiEntry(tagDocumentName, opts.DocumentName))
	}
	entries = append(entries,
		offsetsEntry,
		shortEntry(tagOrientation, OrientationTopLeft),
		shortEntry(tagSamplesPerPixel, 1),
		longEntry(tagRowsPerStrip, uint32(rps)),
		longEntry(tagStripByteCounts, counts...),
		shortEntry(tagPlanarConfig, PlanarContig),
	)
	if opts.Software != "" {
		entries = append(entries, asciiEntry(tagSoftware, opts.Software))
	}
	entries = append(entries, shortEntry(tagSampleFormat, SampleFormatIEEEFP))

	// Lay out out-of-line values after the directory, word aligned.
	next := uint32(headerSize + 2 + entrySize*len(entries) + 4)
	for _, e := range entries {
		if len(e.data) > 4 {
			e.offset = next
			next += uint32(len(e.data))
			next += next & 1
		}
	}
	for i := range offsets {
		offsets[i] = next
		next += counts[i]
	}
	// offsetsEntry.data was built before the offsets were known.
	for i, v := range offsets {
		binary.LittleEndian.PutUint32(offsetsEntry.data[4*i:], v)
	}

	var head bytes.Buffer
	head.WriteString("II")
	_ = binary.Write(&head, binary.LittleEndian, uint16(magic))
	_ = binary.Write(&head, binary.LittleEndian, uint32(headerSize))
	_ = binary.Write(&head, binary.LittleEndian, uint16(len(entries)))
	for _, e := range entries {
		var ent [entrySize]byte
		binary.LittleEndian.PutUint16(ent[0:], e.tag)
		binary.LittleEndian.PutUint16(ent[2:], e.typ)
		binary.LittleEndian.PutUint32(ent[4:], e.count)
		if len(e.data) > 4 {
			binary.LittleEndian.PutUint32(ent[8:], e.offset)
		} else {
			copy(ent[8:], e.data)
		}
		head.Write(ent[:])
	}
	_ = binary.Write(&head, binary.LittleEndian, uint32(0)) // no next IFD
	for _, e := range entries {
		if len(e.data) > 4 {
			head.Write(e.data)
			if len(e.data)&1 == 1 {
				head.WriteByte(0)
			}
		}
	}
	if err := binrec.WriteFull(w, head.Bytes(), binrec.StageWrite, "tiff directory"); err != nil {
		return err
	}

	strip := make([]byte, rps*rowBytes)
	for i := 0; i < nstrips; i++ {
		buf := strip[:counts[i]]
		for r := 0; r*rowBytes < len(buf); r++ {
			for c, v := range f.Row(i*rps + r) {
				binrec.PutFloat32(buf[r*rowBytes+4*c:], v)
			}
		}
		if err := binrec.WriteFull(w, buf, binrec.StageWrite, fmt.Sprintf("strip %d", i)); err != nil {
			return err
		}
	}
	return nil
}

// DecodeFloat32 reads a single-sample IEEE float TIFF into a raster. The
// directory's declared dimensions, strip layout and byte order are used;
// anything other than uncompressed 32-bit float samples is rejected.
func DecodeFloat32(r io.ReaderAt) (*raster.Float32, error) {
	in, err := DecodeInfo(r)
	if err != nil {
		return nil, err
	}
	return decodeFloat32(r, in)
}

func decodeFloat32(r io.ReaderAt, in Info) (*raster.Float32, error) {
	if bits := in.Bits(); bits != 32 {
		return nil, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff", "depth image is not 32 bit float (it's %d)", bits)
	}
	if in.SampleFormat != SampleFormatIEEEFP {
		return nil, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff", "sample format %d is not IEEE float", in.SampleFormat)
	}
	if in.SamplesPerPixel != 1 {
		return nil, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff", "%d samples per pixel, want 1", in.SamplesPerPixel)
	}
	if in.Compression != CompressionNone {
		return nil, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff", "compression %d is not supported", in.Compression)
	}

	n, err := raster.Pixels(in.Width, in.Height)
	if err != nil {
		return nil, &binrec.Error{Kind: binrec.KindUnsupportedFormat, Stage: binrec.StageHeader, Op: "tiff", Err: err}
	}
	rowBytes := 4 * int64(in.Width)
	nstrips := in.StripsPerPlane()
	if len(in.StripOffsets) < nstrips {
		return nil, binrec.Errorf(binrec.KindTruncated, binrec.StageHeader, "tiff", "%d strip offsets for %d strips", len(in.StripOffsets), nstrips)
	}

	stripBytes := func(i int) int64 {
		return int64(min(in.RowsPerStrip, in.Height-i*in.RowsPerStrip)) * rowBytes
	}

	// Every strip extent is checked before any sample buffer is allocated.
	size, sized := sourceSize(r)
	for i := 0; i < nstrips; i++ {
		need, off := stripBytes(i), in.StripOffsets[i]
		if i < len(in.StripByteCounts) && in.StripByteCounts[i] < need {
			return nil, binrec.Errorf(binrec.KindTruncated, binrec.StageData, fmt.Sprintf("strip %d", i), "declares %d bytes, need %d", in.StripByteCounts[i], need)
		}
		if sized && (off < 0 || off > size-need) {
			return nil, binrec.Errorf(binrec.KindTruncated, binrec.StageData, fmt.Sprintf("strip %d", i), "%d bytes at offset %d overrun a %d byte source", need, off, size)
		}
	}

	pix := make([]float32, 0, min(n, readChunk/4))
	buf := make([]byte, min(4*int64(n), readChunk))
	for i := 0; i < nstrips; i++ {
		need, off := stripBytes(i), in.StripOffsets[i]
		for done := int64(0); done < need; {
			b := buf[:min(need-done, readChunk)]
			if err := readAt(r, b, off+done, binrec.StageData, fmt.Sprintf("strip %d", i)); err != nil {
				return nil, err
			}
			for j := 0; j < len(b); j += 4 {
				pix = append(pix, math.Float32frombits(in.ByteOrder.Uint32(b[j:])))
			}
			done += int64(len(b))
		}
	}
	return &raster.Float32{Width: in.Width, Height: in.Height, Pix: pix}, nil
}

// readChunk is the most strip data read in one call.
const readChunk = 64 << 10

// sourceSize reports the byte length of r when it can be learned without
// reading, as for bytes.Reader, io.SectionReader and regular files.
func sourceSize(r io.ReaderAt) (int64, bool) {
	switch s := r.(type) {
	case interface{ Size() int64 }:
		return s.Size(), true
	case interface{ Stat() (fs.FileInfo, error) }:
		fi, err := s.Stat()
		if err == nil && fi.Mode().IsRegular() {
			return fi.Size(), true
		}
	}
	return 0, false
}
