package convert

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/banshee-data/sciconv/internal/binrec"
	"github.com/banshee-data/sciconv/internal/c3d"
	"github.com/banshee-data/sciconv/internal/preview"
	"github.com/banshee-data/sciconv/internal/raster"
	"github.com/banshee-data/sciconv/internal/tiffraster"
	"github.com/banshee-data/sciconv/internal/zfile"
)

// InputKind is the kind of file a preview is drawn from.
type InputKind int

const (
	InputDepth InputKind = iota
	InputTIFF
	InputMotion
)

func (k InputKind) String() string {
	switch k {
	case InputTIFF:
		return "tiff"
	case InputMotion:
		return "c3d"
	default:
		return "z"
	}
}

// PreviewOptions controls Preview.
type PreviewOptions struct {
	// Title defaults to the input file name.
	Title string
	// MaxSamples caps the samples of a motion preview.
	MaxSamples int
}

// Sniff classifies an input by its first bytes. Anything that is neither a
// TIFF nor a motion file is taken to be a depth file, which has no magic.
func Sniff(head []byte) InputKind {
	switch {
	case bytes.HasPrefix(head, []byte("II*\x00")), bytes.HasPrefix(head, []byte("MM\x00*")):
		return InputTIFF
	case len(head) >= 2 && head[1] == c3d.FormatID:
		return InputMotion
	default:
		return InputDepth
	}
}

// Preview draws the input for a quick visual check: rasters become a PNG
// heat map and motion files an HTML 3D scatter page.
func (c *Converter) Preview(in, out string, opts PreviewOptions) (Result, error) {
	return c.run("preview", in, out, func(t *task) error {
		head := make([]byte, 4)
		n, err := t.src.ReadAt(head, 0)
		if err != nil && err != io.EOF {
			return &binrec.Error{Kind: binrec.KindOpen, Stage: binrec.StageHeader, Op: "sniff", Err: err}
		}
		kind := Sniff(head[:n])
		t.log.Debug("input sniffed", zap.Stringer("kind", kind))

		title := opts.Title
		if title == "" {
			title = filepath.Base(in)
		}

		if kind == InputMotion {
			r, err := c3d.NewReader(bufio.NewReaderSize(sectionOf(t.src), inputBufferSize))
			if err != nil {
				return err
			}
			frames, err := r.ReadAll()
			if err != nil {
				return err
			}
			hdr := r.Header()
			t.res.Points, t.res.Frames = int(hdr.PointCount), len(frames)
			w, err := t.out.Writer()
			if err != nil {
				return err
			}
			err = preview.MotionHTML(w, hdr, frames, preview.MotionOptions{Title: title, MaxSamples: opts.MaxSamples})
			if err != nil {
				return writeError("motion preview", err)
			}
			return nil
		}

		var f *raster.Float32
		if kind == InputTIFF {
			f, err = tiffraster.DecodeFloat32(t.src)
		} else {
			_, f, err = zfile.Decode(bufio.NewReaderSize(sectionOf(t.src), inputBufferSize))
		}
		if err != nil {
			return err
		}
		t.res.Width, t.res.Height = f.Width, f.Height
		w, err := t.out.Writer()
		if err != nil {
			return err
		}
		if err := preview.RasterPNG(w, f, preview.RasterOptions{Title: title}); err != nil {
			return writeError("raster preview", err)
		}
		return nil
	})
}
