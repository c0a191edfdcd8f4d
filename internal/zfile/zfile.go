// Package zfile reads and writes Aqsis/RenderMan raw depth files: a fixed
// 152-byte header followed by width × height little-endian float32 depth
// values, row-major, with no padding or compression.
package zfile

import (
	"bytes"
	"io"
	"math"

	"github.com/banshee-data/sciconv/internal/binrec"
	"github.com/banshee-data/sciconv/internal/raster"
)

const (
	// FormatSize is the width of the format tag.
	FormatSize = 16
	// MatrixSize is the number of floats in each transform.
	MatrixSize = 16
	// HeaderSize is the encoded size of Header.
	HeaderSize = FormatSize + 4 + 4 + 4*MatrixSize + 4*MatrixSize

	offWidth        = FormatSize
	offHeight       = offWidth + 4
	offWorldCamera  = offHeight + 4
	offCameraScreen = offWorldCamera + 4*MatrixSize
)

// DefaultFormat is the tag written by Encode when none is set.
var DefaultFormat = [FormatSize]byte{'A', 'q', 's', 'i', 's', ' ', 'Z', 'F', 'i', 'l', 'e'}

// Header is the depth-map header.
type Header struct {
	Format         [FormatSize]byte
	Width          int32
	Height         int32
	WorldToCamera  [MatrixSize]float32
	CameraToScreen [MatrixSize]float32
}

// FormatString returns the format tag up to its first NUL.
func (h Header) FormatString() string {
	if i := bytes.IndexByte(h.Format[:], 0); i >= 0 {
		return string(h.Format[:i])
	}
	return string(h.Format[:])
}

// Encode serialises h.
func (h Header) Encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	copy(b[:FormatSize], h.Format[:])
	binrec.Order.PutUint32(b[offWidth:], uint32(h.Width))
	binrec.Order.PutUint32(b[offHeight:], uint32(h.Height))
	for i := 0; i < MatrixSize; i++ {
		binrec.PutFloat32(b[offWorldCamera+4*i:], h.WorldToCamera[i])
		binrec.PutFloat32(b[offCameraScreen+4*i:], h.CameraToScreen[i])
	}
	return b
}

// ParseHeader decodes a header from b without validating the dimensions.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, binrec.Errorf(binrec.KindTruncated, binrec.StageHeader, "depth header", "got %d of %d bytes", len(b), HeaderSize)
	}
	var h Header
	copy(h.Format[:], b[:FormatSize])
	h.Width = int32(binrec.Order.Uint32(b[offWidth:]))
	h.Height = int32(binrec.Order.Uint32(b[offHeight:]))
	for i := 0; i < MatrixSize; i++ {
		h.WorldToCamera[i] = binrec.Float32(b[offWorldCamera+4*i:])
		h.CameraToScreen[i] = binrec.Float32(b[offCameraScreen+4*i:])
	}
	return h, nil
}

// DecodeHeader reads exactly HeaderSize bytes from r. A short source fails
// with a Truncated error and nothing further is read.
func DecodeHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if err := binrec.ReadFull(r, b[:], binrec.StageHeader, "depth header"); err != nil {
		return Header{}, err
	}
	return ParseHeader(b[:])
}

// readChunk is the most raster data read in one call.
const readChunk = 64 << 10

// DecodeRaster reads width × height float32 values from r.
//
// Non-positive dimensions are rejected with an UnsupportedFormat error
// rather than producing an empty or undersized buffer.
func DecodeRaster(r io.Reader, width, height int) (*raster.Float32, error) {
	if width <= 0 || height <= 0 {
		return nil, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageData, "depth raster", "dimensions %dx%d", width, height)
	}
	n, err := raster.Pixels(width, height)
	if err != nil {
		return nil, &binrec.Error{Kind: binrec.KindUnsupportedFormat, Stage: binrec.StageData, Op: "depth raster", Err: err}
	}

	// Samples are appended as they arrive, so a header declaring more data
	// than the stream holds fails with Truncated before the declared size is
	// allocated.
	pix := make([]float32, 0, min(n, readChunk/4))
	buf := make([]byte, min(4*n, readChunk))
	for len(pix) < n {
		b := buf[:4*min(n-len(pix), readChunk/4)]
		if err := binrec.ReadFull(r, b, binrec.StageData, "depth raster"); err != nil {
			return nil, err
		}
		for i := 0; i < len(b); i += 4 {
			pix = append(pix, math.Float32frombits(binrec.Order.Uint32(b[i:])))
		}
	}
	return &raster.Float32{Width: width, Height: height, Pix: pix}, nil
}

// Decode reads a header and the raster it declares.
func Decode(r io.Reader) (Header, *raster.Float32, error) {
	h, err := DecodeHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	f, err := DecodeRaster(r, int(h.Width), int(h.Height))
	if err != nil {
		return h, nil, err
	}
	return h, f, nil
}

// Encode writes h followed by the samples of f. The header dimensions are
// taken from f; a zero format tag is replaced with DefaultFormat.
func Encode(w io.Writer, h Header, f *raster.Float32) error {
	if h.Format == ([FormatSize]byte{}) {
		h.Format = DefaultFormat
	}
	if f.Width > math.MaxInt32 || f.Height > math.MaxInt32 {
		return binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageWrite, "depth header", "dimensions %dx%d overflow int32", f.Width, f.Height)
	}
	h.Width = int32(f.Width)
	h.Height = int32(f.Height)

	hb := h.Encode()
	if err := binrec.WriteFull(w, hb[:], binrec.StageWrite, "depth header"); err != nil {
		return err
	}
	buf := make([]byte, 4*f.Width)
	for row := 0; row < f.Height; row++ {
		for col, v := range f.Row(row) {
			binrec.PutFloat32(buf[4*col:], v)
		}
		if err := binrec.WriteFull(w, buf, binrec.StageWrite, "depth raster"); err != nil {
			return err
		}
	}
	return nil
}
