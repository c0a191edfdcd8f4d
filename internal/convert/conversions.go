package convert

import (
	"bufio"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/banshee-data/sciconv/internal/binrec"
	"github.com/banshee-data/sciconv/internal/c3d"
	"github.com/banshee-data/sciconv/internal/pointmatrix"
	"github.com/banshee-data/sciconv/internal/raster"
	"github.com/banshee-data/sciconv/internal/tiffraster"
	"github.com/banshee-data/sciconv/internal/version"
	"github.com/banshee-data/sciconv/internal/zfile"
)

const inputBufferSize = 64 * 1024

// ASCIIToC3D converts a point matrix into a motion file. The matrix is
// read twice: once to count points and frames for the header, then to
// stream the samples.
func (c *Converter) ASCIIToC3D(in, out string) (Result, error) {
	return c.run("a2c3d", in, out, func(t *task) error {
		dims, err := pointmatrix.Scan(sectionOf(t.src))
		if err != nil {
			return err
		}
		if dims.Frames == 0 {
			return binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "point matrix", "no frames")
		}
		if dims.Points == 0 {
			return binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "point matrix", "first line holds fewer than three values")
		}
		if dims.Points > math.MaxUint16 || dims.Frames > math.MaxUint16 {
			t.log.Warn("point or frame count wraps in the 16-bit header fields",
				zap.Int("points", dims.Points), zap.Int("frames", dims.Frames))
		}

		hdr := c3d.NewHeader(dims.Points, dims.Frames, c.Config.GetFrameRate())
		if first := c.Config.GetFirstFrame(); first != 1 {
			last := first + dims.Frames - 1
			if last > math.MaxUint16 {
				return binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "point matrix",
					"frames %d..%d exceed the 16-bit frame numbers", first, last)
			}
			hdr.FirstFrame, hdr.LastFrame = uint16(first), uint16(last)
		}
		t.res.Points, t.res.Frames = dims.Points, dims.Frames
		t.log.Debug("point matrix scanned", zap.Stringer("dims", dims), zap.Stringer("header", hdr))

		w, err := t.out.Writer()
		if err != nil {
			return err
		}
		return c3d.WriteMotionFile(w, hdr, pointmatrix.NewFrameReader(sectionOf(t.src), dims.Points))
	})
}

// C3DToASCII converts a motion file back into a point matrix.
func (c *Converter) C3DToASCII(in, out string) (Result, error) {
	return c.run("c3d2a", in, out, func(t *task) error {
		r, err := c3d.NewReader(bufio.NewReaderSize(sectionOf(t.src), inputBufferSize))
		if err != nil {
			return err
		}
		hdr := r.Header()
		t.res.Points = int(hdr.PointCount)
		t.log.Debug("motion header decoded", zap.Stringer("header", hdr))

		w, err := t.out.Writer()
		if err != nil {
			return err
		}
		n, err := pointmatrix.WriteFrames(w, r, c.Config.GetASCIIPrecision())
		t.res.Frames = n
		return err
	})
}

// Range is the target interval of a rescale.
type Range struct {
	From, To float32
}

// ZOptions controls ZFileToTIFF.
type ZOptions struct {
	// Rescale maps the depth range onto the given interval when set.
	Rescale *Range
}

// ZFileToTIFF converts a depth file into a float TIFF.
func (c *Converter) ZFileToTIFF(in, out string, opts ZOptions) (Result, error) {
	return c.run("z2tiff", in, out, func(t *task) error {
		_, f, err := zfile.Decode(bufio.NewReaderSize(sectionOf(t.src), inputBufferSize))
		if err != nil {
			return err
		}
		t.res.Width, t.res.Height = f.Width, f.Height
		s := raster.Stats(f)
		t.log.Debug("depth raster decoded",
			zap.Int("width", f.Width), zap.Int("height", f.Height),
			zap.Float64("min", s.Min), zap.Float64("max", s.Max), zap.Float64("mean", s.Mean))

		if opts.Rescale != nil {
			raster.RescaleRange(f, opts.Rescale.From, opts.Rescale.To)
		}

		w, err := t.out.Writer()
		if err != nil {
			return err
		}
		return tiffraster.EncodeFloat32(w, f, tiffraster.EncodeOptions{
			RowsPerStrip: c.Config.GetRowsPerStrip(),
			Software:     version.Software(),
			DocumentName: t.res.Output,
		})
	})
}

// ASCIIOptions controls TIFFToASCII.
type ASCIIOptions struct {
	// Channel selects 8-bit channel extraction; ChannelNone reads a float
	// TIFF.
	Channel raster.Channel
	// Window cuts a region; the zero value selects the whole image.
	Window raster.Window
	// Transform is applied to every value; nil leaves values unchanged.
	Transform *raster.Transform
}

// TIFFToASCII converts a float TIFF, or one channel of an 8-bit TIFF, into
// an ASCII array. Channel values are normalised to [0, 1] before the
// transform.
func (c *Converter) TIFFToASCII(in, out string, opts ASCIIOptions) (Result, error) {
	return c.run("tiff2a", in, out, func(t *task) error {
		var g raster.Grid
		if opts.Channel == raster.ChannelNone {
			f, err := tiffraster.DecodeFloat32(t.src)
			if err != nil {
				return err
			}
			g = f
		} else {
			u, err := tiffraster.DecodeChannel8(t.src, opts.Channel)
			if err != nil {
				return err
			}
			g = u
		}

		width, height := g.Dims()
		t.res.Width, t.res.Height = width, height
		win, err := opts.Window.Resolve(width, height)
		if err != nil {
			return &binrec.Error{Kind: binrec.KindUnsupportedFormat, Stage: binrec.StageData, Op: "cut", Err: err}
		}
		tr := raster.Identity
		if opts.Transform != nil {
			tr = *opts.Transform
		}
		t.log.Debug("raster decoded",
			zap.Int("width", width), zap.Int("height", height), zap.Stringer("channel", opts.Channel),
			zap.String("cut", fmt.Sprintf("%d,%d,%d,%d", win.X, win.Y, win.W, win.H)))

		w, err := t.out.Writer()
		if err != nil {
			return err
		}
		err = raster.WriteASCII(w, g, raster.ASCIIOptions{
			Window:    win,
			Transform: tr,
			Precision: c.Config.GetASCIIPrecision(),
		})
		if err != nil {
			return writeError("ascii array", err)
		}
		return nil
	})
}
