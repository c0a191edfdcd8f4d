// Package pointmatrix reads and writes text matrices of 3D point
// coordinates. Each line is one frame holding x y z triples for every point,
// separated by spaces or tabs:
//
//	x1 y1 z1 x2 y2 z2 ... xn yn zn
package pointmatrix

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/sciconv/internal/binrec"
	"github.com/banshee-data/sciconv/internal/c3d"
)

// MaxLineBytes bounds the length of a single frame line.
const MaxLineBytes = 16 << 20

// Dims is the shape of a point matrix.
type Dims struct {
	Points int
	Frames int
}

func (d Dims) String() string {
	return fmt.Sprintf("%d points x %d frames", d.Points, d.Frames)
}

func isSep(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r'
}

func fields(line []byte) [][]byte {
	var out [][]byte
	start := -1
	for i, b := range line {
		if isSep(rune(b)) {
			if start >= 0 {
				out = append(out, line[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, line[start:])
	}
	return out
}

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	return s
}

func scanError(err error, stage binrec.Stage, line int) error {
	op := fmt.Sprintf("point matrix line %d", line)
	if errors.Is(err, bufio.ErrTooLong) {
		return binrec.Errorf(binrec.KindUnsupportedFormat, stage, op, "line longer than %d bytes", MaxLineBytes)
	}
	return &binrec.Error{Kind: binrec.KindOpen, Stage: stage, Op: op, Err: err}
}

// Scan counts the frames and points of a matrix. The point count is the
// number of values on the first line divided by three; every line, blank or
// not, is a frame.
func Scan(r io.Reader) (Dims, error) {
	var d Dims
	s := newScanner(r)
	for s.Scan() {
		if d.Frames == 0 {
			d.Points = len(fields(s.Bytes())) / 3
		}
		d.Frames++
	}
	if err := s.Err(); err != nil {
		return Dims{}, scanError(err, binrec.StageHeader, d.Frames+1)
	}
	return d, nil
}

// FrameReader parses successive lines of a matrix into frames of samples.
// It implements c3d.FrameSource.
type FrameReader struct {
	s      *bufio.Scanner
	points int
	line   int
}

var _ c3d.FrameSource = (*FrameReader)(nil)

// NewFrameReader returns a reader producing frames of points samples.
func NewFrameReader(r io.Reader, points int) *FrameReader {
	return &FrameReader{s: newScanner(r), points: points}
}

// NextFrame parses the next line. Lines with fewer values than the frame
// needs are zero filled; surplus values are ignored. A value that is not a
// number fails with the line and column where it starts.
func (fr *FrameReader) NextFrame() ([]c3d.Sample, error) {
	if !fr.s.Scan() {
		if err := fr.s.Err(); err != nil {
			return nil, scanError(err, binrec.StageData, fr.line+1)
		}
		return nil, io.EOF
	}
	fr.line++
	line := fr.s.Bytes()

	var xyz [3]float32
	samples := make([]c3d.Sample, fr.points)
	toks := fields(line)
	for i := 0; i < 3*fr.points && i < len(toks); i++ {
		v, err := strconv.ParseFloat(string(toks[i]), 32)
		if err != nil {
			col := cap(line) - cap(toks[i]) + 1
			return nil, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageData,
				fmt.Sprintf("point matrix line %d column %d", fr.line, col), "%q is not a number", toks[i])
		}
		xyz[i%3] = float32(v)
		if i%3 == 2 {
			samples[i/3] = c3d.Sample{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		}
	}
	// A trailing partial triple keeps its parsed coordinates.
	if n := len(toks); n < 3*fr.points && n%3 != 0 {
		p := n / 3
		samples[p].X = xyz[0]
		if n%3 == 2 {
			samples[p].Y = xyz[1]
		}
	}
	return samples, nil
}

// Line reports the number of lines consumed so far.
func (fr *FrameReader) Line() int {
	return fr.line
}

// WriteFrames writes frames as a matrix, one line per frame, values
// separated by single spaces with prec decimals (six when prec is zero).
func WriteFrames(w io.Writer, src c3d.FrameSource, prec int) (int, error) {
	if prec <= 0 {
		prec = 6
	}
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 256)
	n := 0
	for {
		samples, err := src.NextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		buf = buf[:0]
		for i, s := range samples {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = strconv.AppendFloat(buf, float64(s.X), 'f', prec, 32)
			buf = append(buf, ' ')
			buf = strconv.AppendFloat(buf, float64(s.Y), 'f', prec, 32)
			buf = append(buf, ' ')
			buf = strconv.AppendFloat(buf, float64(s.Z), 'f', prec, 32)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return n, &binrec.Error{Kind: binrec.KindWrite, Stage: binrec.StageWrite, Op: fmt.Sprintf("point matrix line %d", n+1), Err: err}
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, &binrec.Error{Kind: binrec.KindWrite, Stage: binrec.StageWrite, Op: "point matrix", Err: err}
	}
	return n, nil
}
