package c3d

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/sciconv/internal/binrec"
)

// FrameSource yields the samples of successive frames. NextFrame returns
// io.EOF once the source is exhausted.
type FrameSource interface {
	NextFrame() ([]Sample, error)
}

// Frames is an in-memory FrameSource.
type Frames struct {
	frames [][]Sample
	next   int
}

// NewFrames wraps frames, in frame order, as a FrameSource.
func NewFrames(frames [][]Sample) *Frames {
	return &Frames{frames: frames}
}

// NextFrame returns the next frame or io.EOF.
func (f *Frames) NextFrame() ([]Sample, error) {
	if f.next >= len(f.frames) {
		return nil, io.EOF
	}
	s := f.frames[f.next]
	f.next++
	return s, nil
}

// WriteMotionFile writes hdr, an empty parameter block and then the point
// records of every frame from hdr.FirstFrame to hdr.LastFrame.
//
// The number of frames and points per frame come from the header, not from
// src. Frames are written with exactly hdr.PointCount records: missing
// samples, including whole frames after src is exhausted, are written as
// zero records and surplus samples are dropped. Callers should derive the
// header counts from the input up front.
//
// On failure the destination holds a partial file that must be discarded.
func WriteMotionFile(w io.Writer, hdr Header, src FrameSource) error {
	block := hdr.Encode()
	if err := binrec.WriteFull(w, block[:], binrec.StageWrite, "header block"); err != nil {
		return err
	}

	var params [binrec.BlockSize]byte
	if err := binrec.WriteFull(w, params[:], binrec.StageWrite, "parameter block"); err != nil {
		return err
	}

	points := int(hdr.PointCount)
	buf := make([]byte, points*SampleSize)
	exhausted := false

	for frame := int(hdr.FirstFrame); frame <= int(hdr.LastFrame); frame++ {
		var samples []Sample
		if !exhausted {
			s, err := src.NextFrame()
			switch {
			case errors.Is(err, io.EOF):
				exhausted = true
			case err != nil:
				return fmt.Errorf("frame %d: %w", frame, err)
			default:
				samples = s
			}
		}

		clear(buf)
		for i := 0; i < points && i < len(samples); i++ {
			samples[i].Put(buf[i*SampleSize:])
		}
		if err := binrec.WriteFull(w, buf, binrec.StageWrite, fmt.Sprintf("frame %d", frame)); err != nil {
			return err
		}
	}
	return nil
}

// Reader decodes a motion file written by WriteMotionFile. It is also a
// FrameSource, so a decoded file can be re-encoded directly.
type Reader struct {
	r      io.Reader
	hdr    Header
	frame  int
	buf    []byte
	frames int
}

// NewReader decodes the header from r and positions it at the first point
// record.
func NewReader(r io.Reader) (*Reader, error) {
	hdr, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}
	skip := hdr.DataOffset() - HeaderSize
	if skip > 0 {
		n, err := io.CopyN(io.Discard, r, skip)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, binrec.Errorf(binrec.KindTruncated, binrec.StageHeader, "c3d parameter section", "got %d of %d bytes", n, skip)
			}
			return nil, &binrec.Error{Kind: binrec.KindOpen, Stage: binrec.StageHeader, Op: "c3d parameter section", Err: err}
		}
	}
	return &Reader{
		r:      r,
		hdr:    hdr,
		buf:    make([]byte, int(hdr.PointCount)*SampleSize),
		frames: hdr.FrameCount(),
	}, nil
}

// Header returns the decoded header.
func (r *Reader) Header() Header {
	return r.hdr
}

// NextFrame decodes the next frame, returning io.EOF after the last frame
// the header declares.
func (r *Reader) NextFrame() ([]Sample, error) {
	if r.frame >= r.frames {
		return nil, io.EOF
	}
	op := fmt.Sprintf("frame %d", int(r.hdr.FirstFrame)+r.frame)
	if err := binrec.ReadFull(r.r, r.buf, binrec.StageData, op); err != nil {
		return nil, err
	}
	samples := make([]Sample, r.hdr.PointCount)
	for i := range samples {
		samples[i] = DecodePointSample(r.buf[i*SampleSize:])
	}
	r.frame++
	return samples, nil
}

// ReadAll decodes every remaining frame.
func (r *Reader) ReadAll() ([][]Sample, error) {
	out := make([][]Sample, 0, r.frames-r.frame)
	for {
		s, err := r.NextFrame()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}
