// Package convert runs the file conversions: each one opens its input,
// decodes it, applies the requested transforms and writes the target file.
// A failed conversion never leaves a partial output file behind.
package convert

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/banshee-data/sciconv/internal/binrec"
	"github.com/banshee-data/sciconv/internal/config"
	"github.com/banshee-data/sciconv/internal/fsutil"
	"github.com/banshee-data/sciconv/internal/monitoring"
	"github.com/banshee-data/sciconv/internal/security"
	"github.com/banshee-data/sciconv/internal/timeutil"
)

const outputBufferSize = 64 * 1024

// Converter holds what every conversion needs. The zero value is not usable;
// build one with New.
type Converter struct {
	FS     fsutil.FileSystem
	Logger *zap.Logger
	Config *config.Config
	Clock  timeutil.Clock

	guard *security.Guard
}

// New returns a Converter. A nil logger selects the process logger and a nil
// config selects the defaults. Paths are confined to the config's
// allowed_dirs when it lists any.
func New(fsys fsutil.FileSystem, logger *zap.Logger, cfg *config.Config) (*Converter, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if logger == nil {
		logger = monitoring.L()
	}
	if cfg == nil {
		cfg = config.Empty()
	}
	guard, err := security.NewGuard(cfg.GetAllowedDirs())
	if err != nil {
		return nil, err
	}
	return &Converter{FS: fsys, Logger: logger, Config: cfg, Clock: timeutil.RealClock{}, guard: guard}, nil
}

// Result summarises a finished conversion.
type Result struct {
	RunID  string
	Input  string
	Output string
	// Width and Height are set by raster conversions.
	Width, Height int
	// Points and Frames are set by motion conversions.
	Points, Frames int
	// Bytes is the size of the written output.
	Bytes   int64
	Elapsed time.Duration
}

func (r Result) fields() []zap.Field {
	fields := []zap.Field{zap.Int64("bytes", r.Bytes), zap.Duration("elapsed", r.Elapsed)}
	if r.Width > 0 || r.Height > 0 {
		fields = append(fields, zap.Int("width", r.Width), zap.Int("height", r.Height))
	}
	if r.Points > 0 || r.Frames > 0 {
		fields = append(fields, zap.Int("points", r.Points), zap.Int("frames", r.Frames))
	}
	return fields
}

// output is the destination of one conversion. The file is only created
// when the first writer is requested, so a conversion that fails while
// reading its input never touches the destination.
type output struct {
	fs   fsutil.FileSystem
	path string
	f    io.WriteCloser
	bw   *bufio.Writer
	cw   *countingWriter
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Writer creates the destination file, with its parent directories, on
// first use.
func (o *output) Writer() (io.Writer, error) {
	if o.bw != nil {
		return o.bw, nil
	}
	if dir := filepath.Dir(o.path); dir != "." {
		if err := o.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, &binrec.Error{Kind: binrec.KindOpen, Stage: binrec.StageOpen, Op: "output directory", Err: err}
		}
	}
	f, err := o.fs.Create(o.path)
	if err != nil {
		return nil, &binrec.Error{Kind: binrec.KindOpen, Stage: binrec.StageOpen, Op: "output", Err: err}
	}
	o.f = f
	o.cw = &countingWriter{w: f}
	o.bw = bufio.NewWriterSize(o.cw, outputBufferSize)
	return o.bw, nil
}

// finish flushes and closes the destination. When err or any of those steps
// fails the destination is removed and every failure is returned.
func (o *output) finish(err error) error {
	if o.f == nil {
		return err
	}
	if err == nil {
		if ferr := o.bw.Flush(); ferr != nil {
			err = &binrec.Error{Kind: binrec.KindWrite, Stage: binrec.StageWrite, Op: "flush", Err: ferr}
		}
	}
	if cerr := o.f.Close(); cerr != nil {
		err = multierr.Append(err, &binrec.Error{Kind: binrec.KindWrite, Stage: binrec.StageWrite, Op: "close output", Err: cerr})
	}
	if err != nil {
		if rerr := o.fs.Remove(o.path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			err = multierr.Append(err, fmt.Errorf("remove partial output: %w", rerr))
		}
	}
	return err
}

// written reports the bytes that reached the file.
func (o *output) written() int64 {
	if o.cw == nil {
		return 0
	}
	return o.cw.n
}

// task is the state handed to the body of one run.
type task struct {
	src fsutil.File
	out *output
	res *Result
	log *zap.Logger
}

// conversion is the body of one run: it reads t.src and obtains its writer
// from t.out once the input has been decoded far enough.
type conversion func(t *task) error

// run wraps a conversion with path checks, logging and cleanup.
func (c *Converter) run(name, in, out string, body conversion) (res Result, err error) {
	res = Result{RunID: uuid.NewString(), Input: in, Output: out}
	log := c.Logger.With(
		zap.String("run_id", res.RunID),
		zap.String("conversion", name),
		zap.String("input", in),
		zap.String("output", out),
	)
	start := c.Clock.Now()
	log.Debug("conversion started")
	defer func() {
		res.Elapsed = c.Clock.Since(start)
		if err != nil {
			log.Debug("conversion failed", zap.Error(err), zap.Duration("elapsed", res.Elapsed))
			return
		}
		log.Info("conversion finished", res.fields()...)
	}()

	if err := c.checkPaths(in, out); err != nil {
		return res, err
	}
	if c.sameFile(in, out) {
		return res, binrec.Errorf(binrec.KindOpen, binrec.StageOpen, "output", "%s would overwrite the input", out)
	}

	src, err := c.FS.Open(in)
	if err != nil {
		return res, &binrec.Error{Kind: binrec.KindOpen, Stage: binrec.StageOpen, Op: "input", Err: err}
	}
	defer multierr.AppendInvoke(&err, multierr.Close(src))

	o := &output{fs: c.FS, path: out}
	err = o.finish(body(&task{src: src, out: o, res: &res, log: log}))
	res.Bytes = o.written()
	return res, err
}

func (c *Converter) checkPaths(paths ...string) error {
	for _, p := range paths {
		if err := c.guard.Check(p); err != nil {
			return &binrec.Error{Kind: binrec.KindOpen, Stage: binrec.StageOpen, Op: "path", Err: err}
		}
	}
	return nil
}

// sameFile reports whether in and out name the same existing file.
func (c *Converter) sameFile(in, out string) bool {
	if filepath.Clean(in) == filepath.Clean(out) {
		return true
	}
	a, err := c.FS.Stat(in)
	if err != nil {
		return false
	}
	b, err := c.FS.Stat(out)
	if err != nil {
		return false
	}
	return os.SameFile(a, b)
}

// sectionOf exposes src from its first byte regardless of its read offset.
func sectionOf(src fsutil.File) *io.SectionReader {
	return io.NewSectionReader(src, 0, math.MaxInt64)
}

// writeError tags a failure of the destination writer.
func writeError(op string, err error) error {
	var be *binrec.Error
	if errors.As(err, &be) {
		return err
	}
	return &binrec.Error{Kind: binrec.KindWrite, Stage: binrec.StageWrite, Op: op, Err: err}
}
