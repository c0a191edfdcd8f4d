// Package c3d encodes and decodes a reduced form of the C3D motion-capture
// format: one 512-byte header block, one empty parameter block and then
// frame-major, point-minor float point records.
//
// The reduced file carries no parameter section content. Readers that only
// need the header and the point data accept it; applications that require
// parameter groups may not.
package c3d

import (
	"fmt"
	"io"

	"github.com/banshee-data/sciconv/internal/binrec"
)

const (
	// HeaderSize is the size of the header record, exactly one block.
	HeaderSize = binrec.BlockSize

	// FormatID is the C3D key byte stored at offset 1.
	FormatID = 80

	// ParameterBlock is the 1-based block holding the parameter section.
	ParameterBlock = 2

	// DataStartBlock is the 1-based block where point data begins.
	DataStartBlock = 3

	// FloatScale is the scale factor sentinel marking float point data.
	FloatScale float32 = -1

	// DefaultFrameRate is the frame rate written when none is configured.
	DefaultFrameRate float32 = 60
)

// Header field offsets within block 0. The format counts in 16-bit words;
// these are byte offsets.
const (
	offParameterBlock = 0
	offFormatID       = 1
	offPointCount     = 2
	offMeasureCount   = 4
	offFirstFrame     = 6
	offLastFrame      = 8
	offMaxGap         = 10
	offScaleFactor    = 12
	offDataStart      = 16
	offSampleCount    = 18
	offFrameRate      = 20
	offLabelPresent   = 294
	offLabelBlock     = 296
	offEventLabels4   = 298
	offTimeEvents     = 300
)

// Header is the decoded header block. Event times, flags and labels occupy
// their full width in the block but are always zero in the reduced format and
// are not carried here.
type Header struct {
	ParameterBlock      uint8
	ID                  uint8
	PointCount          uint16
	MeasureCount        uint16
	FirstFrame          uint16
	LastFrame           uint16
	MaxInterpolationGap uint16
	ScaleFactor         float32
	DataStart           uint16
	SampleCount         uint16
	FrameRate           float32
	LabelPresent        uint16
	LabelBlock          uint16
	EventLabels4        uint16
	TimeEvents          uint16
}

// NewHeader builds the header for pointCount points over frameCount frames
// starting at frame 1.
//
// Point and frame counts are 16-bit fields: values above 65535 wrap modulo
// 65536. This is a limit of the block layout and is kept as is.
func NewHeader(pointCount, frameCount int, frameRate float32) Header {
	return Header{
		ParameterBlock: ParameterBlock,
		ID:             FormatID,
		PointCount:     word(pointCount),
		FirstFrame:     1,
		LastFrame:      word(frameCount),
		ScaleFactor:    FloatScale,
		DataStart:      DataStartBlock,
		FrameRate:      frameRate,
	}
}

// word truncates n to the 16 bits of a header word.
func word(n int) uint16 {
	return uint16(n & 0xffff)
}

// FrameCount returns the number of frames the header declares, derived from
// the first and last frame fields.
func (h Header) FrameCount() int {
	n := int(h.LastFrame) - int(h.FirstFrame) + 1
	if n < 0 {
		return 0
	}
	return n
}

// DataOffset returns the byte offset of the first point record.
func (h Header) DataOffset() int64 {
	return (int64(h.DataStart) - 1) * binrec.BlockSize
}

// Encode serialises h into a single zero-padded block.
func (h Header) Encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	o := binrec.Order
	b[offParameterBlock] = h.ParameterBlock
	b[offFormatID] = h.ID
	o.PutUint16(b[offPointCount:], h.PointCount)
	o.PutUint16(b[offMeasureCount:], h.MeasureCount)
	o.PutUint16(b[offFirstFrame:], h.FirstFrame)
	o.PutUint16(b[offLastFrame:], h.LastFrame)
	o.PutUint16(b[offMaxGap:], h.MaxInterpolationGap)
	binrec.PutFloat32(b[offScaleFactor:], h.ScaleFactor)
	o.PutUint16(b[offDataStart:], h.DataStart)
	o.PutUint16(b[offSampleCount:], h.SampleCount)
	binrec.PutFloat32(b[offFrameRate:], h.FrameRate)
	o.PutUint16(b[offLabelPresent:], h.LabelPresent)
	o.PutUint16(b[offLabelBlock:], h.LabelBlock)
	o.PutUint16(b[offEventLabels4:], h.EventLabels4)
	o.PutUint16(b[offTimeEvents:], h.TimeEvents)
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h Header) MarshalBinary() ([]byte, error) {
	b := h.Encode()
	return b[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Header) UnmarshalBinary(data []byte) error {
	parsed, err := ParseHeader(data)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// EncodeHeader returns the header block for pointCount points over
// frameCount frames at sampleRate frames per second.
func EncodeHeader(pointCount, frameCount int, sampleRate float32) [HeaderSize]byte {
	return NewHeader(pointCount, frameCount, sampleRate).Encode()
}

// ParseHeader decodes a header block. Reserved regions are ignored.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, binrec.Errorf(binrec.KindTruncated, binrec.StageHeader, "c3d header", "got %d of %d bytes", len(b), HeaderSize)
	}
	o := binrec.Order
	h := Header{
		ParameterBlock:      b[offParameterBlock],
		ID:                  b[offFormatID],
		PointCount:          o.Uint16(b[offPointCount:]),
		MeasureCount:        o.Uint16(b[offMeasureCount:]),
		FirstFrame:          o.Uint16(b[offFirstFrame:]),
		LastFrame:           o.Uint16(b[offLastFrame:]),
		MaxInterpolationGap: o.Uint16(b[offMaxGap:]),
		ScaleFactor:         binrec.Float32(b[offScaleFactor:]),
		DataStart:           o.Uint16(b[offDataStart:]),
		SampleCount:         o.Uint16(b[offSampleCount:]),
		FrameRate:           binrec.Float32(b[offFrameRate:]),
		LabelPresent:        o.Uint16(b[offLabelPresent:]),
		LabelBlock:          o.Uint16(b[offLabelBlock:]),
		EventLabels4:        o.Uint16(b[offEventLabels4:]),
		TimeEvents:          o.Uint16(b[offTimeEvents:]),
	}
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// validate rejects headers this package cannot read back: foreign key bytes,
// scaled-integer point data and data blocks that overlap the header.
func (h Header) validate() error {
	if h.ID != FormatID {
		return binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "c3d header", "format id %d, want %d", h.ID, FormatID)
	}
	if h.ScaleFactor >= 0 {
		return binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "c3d header", "scale factor %g: only float point data is supported", h.ScaleFactor)
	}
	if h.DataStart < 2 {
		return binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "c3d header", "data start block %d", h.DataStart)
	}
	return nil
}

// DecodeHeader reads and decodes one header block from r.
func DecodeHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if err := binrec.ReadFull(r, b[:], binrec.StageHeader, "c3d header"); err != nil {
		return Header{}, err
	}
	return ParseHeader(b[:])
}

func (h Header) String() string {
	return fmt.Sprintf("c3d points=%d frames=%d..%d rate=%g", h.PointCount, h.FirstFrame, h.LastFrame, h.FrameRate)
}
