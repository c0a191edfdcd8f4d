package convert

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/image/tiff"

	"github.com/banshee-data/sciconv/internal/binrec"
	"github.com/banshee-data/sciconv/internal/c3d"
	"github.com/banshee-data/sciconv/internal/config"
	"github.com/banshee-data/sciconv/internal/fsutil"
	"github.com/banshee-data/sciconv/internal/pointmatrix"
	"github.com/banshee-data/sciconv/internal/raster"
	"github.com/banshee-data/sciconv/internal/security"
	"github.com/banshee-data/sciconv/internal/testutil"
	"github.com/banshee-data/sciconv/internal/tiffraster"
	"github.com/banshee-data/sciconv/internal/timeutil"
	"github.com/banshee-data/sciconv/internal/version"
)

func newConverter(t *testing.T, mfs *fsutil.MemoryFileSystem, cfg *config.Config) (*Converter, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	c, err := New(mfs, zap.New(core), cfg)
	require.NoError(t, err)
	return c, logs
}

func TestZFileToTIFF(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	src := testutil.Ramp(t, 5, 3, -1, 0.5)
	mfs.AddFile("/in/depth.z", testutil.ZFile(t, src))
	c, logs := newConverter(t, mfs, nil)

	res, err := c.ZFileToTIFF("/in/depth.z", "/out/tiff/depth.tif", ZOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Width)
	assert.Equal(t, 3, res.Height)
	assert.NotEmpty(t, res.RunID)

	data, err := mfs.ReadFile("/out/tiff/depth.tif")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), res.Bytes)

	got, err := tiffraster.DecodeFloat32(bytes.NewReader(data))
	require.NoError(t, err)
	testutil.AssertBitsEqual(t, src.Pix, got.Pix)

	info, err := tiffraster.DecodeInfo(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "/out/tiff/depth.tif", info.DocumentName)
	assert.Equal(t, version.Software(), info.Software)

	finished := logs.FilterMessage("conversion finished").All()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.Equal(t, res.RunID, fields["run_id"])
	assert.Equal(t, "z2tiff", fields["conversion"])
	assert.Equal(t, int64(5), fields["width"])
}

func TestRun_Elapsed(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("points.txt", []byte(testutil.PointMatrix(1, 1)))
	c, logs := newConverter(t, mfs, nil)
	c.Clock = timeutil.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1500*time.Millisecond)

	res, err := c.ASCIIToC3D("points.txt", "points.c3d")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, res.Elapsed)

	finished := logs.FilterMessage("conversion finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, 1500*time.Millisecond, finished[0].ContextMap()["elapsed"])
}

func TestZFileToTIFF_Rescale(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("depth.z", testutil.ZFile(t, testutil.Ramp(t, 3, 1, 10, 5)))
	c, _ := newConverter(t, mfs, nil)

	_, err := c.ZFileToTIFF("depth.z", "depth.tif", ZOptions{Rescale: &Range{From: 0, To: 1}})
	require.NoError(t, err)

	data, err := mfs.ReadFile("depth.tif")
	require.NoError(t, err)
	got, err := tiffraster.DecodeFloat32(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5, 1}, got.Pix)
}

func TestZFileToTIFF_RowsPerStripFromConfig(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("depth.z", testutil.ZFile(t, testutil.Ramp(t, 4, 5, 0, 1)))
	rows := 2
	c, _ := newConverter(t, mfs, &config.Config{RowsPerStrip: &rows})

	_, err := c.ZFileToTIFF("depth.z", "depth.tif", ZOptions{})
	require.NoError(t, err)

	data, err := mfs.ReadFile("depth.tif")
	require.NoError(t, err)
	info, err := tiffraster.DecodeInfo(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, info.RowsPerStrip)
	assert.Len(t, info.StripOffsets, 3)
}

func TestZFileToTIFF_TruncatedLeavesNoOutput(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("short.z", make([]byte, 40))
	full := testutil.ZFile(t, testutil.Ramp(t, 4, 4, 0, 1))
	mfs.AddFile("cut.z", full[:len(full)-3])
	c, logs := newConverter(t, mfs, nil)

	_, err := c.ZFileToTIFF("short.z", "/out/short.tif", ZOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, binrec.ErrTruncated)
	assert.Equal(t, binrec.StageHeader, binrec.StageOf(err))
	assert.False(t, mfs.Exists("/out/short.tif"))
	assert.False(t, mfs.Exists("/out"))

	_, err = c.ZFileToTIFF("cut.z", "cut.tif", ZOptions{})
	assert.ErrorIs(t, err, binrec.ErrTruncated)
	assert.Equal(t, binrec.StageData, binrec.StageOf(err))
	assert.False(t, mfs.Exists("cut.tif"))

	// The caller reports the returned error; the log only carries detail.
	failed := logs.FilterMessage("conversion failed").All()
	assert.Len(t, failed, 2)
	for _, e := range failed {
		assert.Equal(t, zap.DebugLevel, e.Level)
	}
	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestZFileToTIFF_WriteFailureRemovesOutput(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("depth.z", testutil.ZFile(t, testutil.Ramp(t, 64, 64, 0, 1)))
	mfs.SetWriteLimit(100)
	c, _ := newConverter(t, mfs, nil)

	res, err := c.ZFileToTIFF("depth.z", "depth.tif", ZOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, binrec.ErrWrite)
	assert.ErrorIs(t, err, fsutil.ErrNoSpace)
	assert.False(t, mfs.Exists("depth.tif"))
	assert.Equal(t, int64(100), res.Bytes)
}

func TestRun_MissingInput(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	c, _ := newConverter(t, mfs, nil)

	_, err := c.C3DToASCII("missing.c3d", "out.txt")
	assert.ErrorIs(t, err, binrec.ErrOpen)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, mfs.Exists("out.txt"))
}

func TestRun_RejectsOverwritingInput(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	matrix := testutil.PointMatrix(1, 2)
	mfs.AddFile("/data/points.txt", []byte(matrix))
	c, _ := newConverter(t, mfs, nil)

	_, err := c.ASCIIToC3D("/data/points.txt", "/data/../data/points.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, binrec.ErrOpen)
	assert.Contains(t, err.Error(), "would overwrite the input")

	data, err := mfs.ReadFile("/data/points.txt")
	require.NoError(t, err)
	assert.Equal(t, matrix, string(data))
}

func TestRun_AllowedDirs(t *testing.T) {
	t.Parallel()

	allowed := t.TempDir()
	outside := t.TempDir()
	in := filepath.Join(allowed, "points.txt")
	require.NoError(t, os.WriteFile(in, []byte(testutil.PointMatrix(1, 1)), 0o644))

	cfg := &config.Config{AllowedDirs: []string{allowed}}
	c, err := New(fsutil.OSFileSystem{}, zap.NewNop(), cfg)
	require.NoError(t, err)

	_, err = c.ASCIIToC3D(in, filepath.Join(outside, "points.c3d"))
	require.Error(t, err)
	assert.ErrorIs(t, err, security.ErrOutsideAllowedDirs)
	assert.ErrorIs(t, err, binrec.ErrOpen)
	_, statErr := os.Stat(filepath.Join(outside, "points.c3d"))
	assert.True(t, os.IsNotExist(statErr))

	res, err := c.ASCIIToC3D(in, filepath.Join(allowed, "sub", "points.c3d"))
	require.NoError(t, err)
	assert.Equal(t, int64(2*binrec.BlockSize+c3d.SampleSize), res.Bytes)
}

func TestNew_BadAllowedDir(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{AllowedDirs: []string{filepath.Join(t.TempDir(), "missing")}}
	_, err := New(nil, nil, cfg)
	assert.Error(t, err)
}

func TestASCIIToC3D(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("points.txt", []byte(testutil.PointMatrix(2, 3)))
	c, _ := newConverter(t, mfs, nil)

	res, err := c.ASCIIToC3D("points.txt", "points.c3d")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Points)
	assert.Equal(t, 3, res.Frames)

	data, err := mfs.ReadFile("points.c3d")
	require.NoError(t, err)
	assert.Len(t, data, 2*binrec.BlockSize+6*c3d.SampleSize)

	r, err := c3d.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	hdr := r.Header()
	assert.Equal(t, uint16(2), hdr.PointCount)
	assert.Equal(t, uint16(1), hdr.FirstFrame)
	assert.Equal(t, uint16(3), hdr.LastFrame)
	assert.Equal(t, float32(c3d.DefaultFrameRate), hdr.FrameRate)

	frames, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for f := range frames {
		for p := range frames[f] {
			v := testutil.PointValue(f, p)
			assert.Equal(t, c3d.Sample{X: v, Y: v + 0.25, Z: v + 0.5}, frames[f][p], "frame %d point %d", f, p)
		}
	}
}

func TestASCIIToC3D_Config(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("points.txt", []byte(testutil.PointMatrix(1, 3)))
	rate, first := 120.0, 10
	c, _ := newConverter(t, mfs, &config.Config{FrameRate: &rate, FirstFrame: &first})

	_, err := c.ASCIIToC3D("points.txt", "points.c3d")
	require.NoError(t, err)

	data, err := mfs.ReadFile("points.c3d")
	require.NoError(t, err)
	hdr, err := c3d.DecodeHeader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, float32(120), hdr.FrameRate)
	assert.Equal(t, uint16(10), hdr.FirstFrame)
	assert.Equal(t, uint16(12), hdr.LastFrame)

	last := 65534
	c, _ = newConverter(t, mfs, &config.Config{FirstFrame: &last})
	_, err = c.ASCIIToC3D("points.txt", "late.c3d")
	assert.ErrorIs(t, err, binrec.ErrUnsupportedFormat)
	assert.False(t, mfs.Exists("late.c3d"))
}

func TestASCIIToC3D_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "no frames"},
		{"short first line", "1 2\n3 4 5\n", "fewer than three values"},
		{"not a number", "1 2 3\n1 2 z\n", "line 2 column 5"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mfs := fsutil.NewMemoryFileSystem()
			mfs.AddFile("points.txt", []byte(tt.input))
			c, _ := newConverter(t, mfs, nil)

			_, err := c.ASCIIToC3D("points.txt", "points.c3d")
			require.Error(t, err)
			assert.ErrorIs(t, err, binrec.ErrUnsupportedFormat)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, mfs.Exists("points.c3d"))
		})
	}
}

func TestC3DToASCII_RoundTrip(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("points.txt", []byte(testutil.PointMatrix(3, 4)))
	prec := 9
	c, _ := newConverter(t, mfs, &config.Config{ASCIIPrecision: &prec})

	_, err := c.ASCIIToC3D("points.txt", "points.c3d")
	require.NoError(t, err)
	res, err := c.C3DToASCII("points.c3d", "back.txt")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Points)
	assert.Equal(t, 4, res.Frames)

	data, err := mfs.ReadFile("back.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "0.000000000 0.250000000 0.500000000 "))

	dims, err := pointmatrix.Scan(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, pointmatrix.Dims{Points: 3, Frames: 4}, dims)

	// Converting the text back gives the same motion file.
	_, err = c.ASCIIToC3D("back.txt", "again.c3d")
	require.NoError(t, err)
	first, _ := mfs.ReadFile("points.c3d")
	again, _ := mfs.ReadFile("again.c3d")
	assert.Equal(t, first, again)
}

func TestC3DToASCII_Truncated(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("points.txt", []byte(testutil.PointMatrix(2, 2)))
	c, _ := newConverter(t, mfs, nil)
	_, err := c.ASCIIToC3D("points.txt", "points.c3d")
	require.NoError(t, err)

	data, _ := mfs.ReadFile("points.c3d")
	mfs.AddFile("cut.c3d", data[:len(data)-5])
	_, err = c.C3DToASCII("cut.c3d", "cut.txt")
	assert.ErrorIs(t, err, binrec.ErrTruncated)
	assert.False(t, mfs.Exists("cut.txt"))
}

func TestTIFFToASCII_Float(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("depth.z", testutil.ZFile(t, testutil.Ramp(t, 3, 2, 1, 1)))
	c, _ := newConverter(t, mfs, nil)
	_, err := c.ZFileToTIFF("depth.z", "depth.tif", ZOptions{})
	require.NoError(t, err)

	res, err := c.TIFFToASCII("depth.tif", "all.txt", ASCIIOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Width)
	data, _ := mfs.ReadFile("all.txt")
	assert.Equal(t, "1.000000 2.000000 3.000000 \n4.000000 5.000000 6.000000 \n", string(data))

	_, err = c.TIFFToASCII("depth.tif", "cut.txt", ASCIIOptions{
		Window:    raster.Window{X: 1, Y: 1, W: 2, H: 1},
		Transform: &raster.Transform{Base: 10, Scale: 0.5},
	})
	require.NoError(t, err)
	data, _ = mfs.ReadFile("cut.txt")
	assert.Equal(t, "12.500000 13.000000 \n", string(data))
}

func TestTIFFToASCII_Precision(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("depth.z", testutil.ZFile(t, testutil.Ramp(t, 2, 1, 0.5, 1)))
	prec := 2
	c, _ := newConverter(t, mfs, &config.Config{ASCIIPrecision: &prec})
	_, err := c.ZFileToTIFF("depth.z", "depth.tif", ZOptions{})
	require.NoError(t, err)

	_, err = c.TIFFToASCII("depth.tif", "out.txt", ASCIIOptions{})
	require.NoError(t, err)
	data, _ := mfs.ReadFile("out.txt")
	assert.Equal(t, "0.50 1.50 \n", string(data))
}

func TestTIFFToASCII_BadCut(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("depth.z", testutil.ZFile(t, testutil.Ramp(t, 3, 2, 0, 1)))
	c, _ := newConverter(t, mfs, nil)
	_, err := c.ZFileToTIFF("depth.z", "depth.tif", ZOptions{})
	require.NoError(t, err)

	_, err = c.TIFFToASCII("depth.tif", "out.txt", ASCIIOptions{Window: raster.Window{X: 2, W: 2, H: 1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, binrec.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "exceeds raster 3x2")
	assert.False(t, mfs.Exists("out.txt"))
}

func TestTIFFToASCII_Channel(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	copy(img.Pix, []uint8{255, 0, 51, 255, 0, 255, 102, 255})
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("rgb.tif", buf.Bytes())
	c, _ := newConverter(t, mfs, nil)

	_, err := c.TIFFToASCII("rgb.tif", "red.txt", ASCIIOptions{Channel: raster.ChannelRed})
	require.NoError(t, err)
	data, _ := mfs.ReadFile("red.txt")
	assert.Equal(t, "1.000000 0.000000 \n", string(data))

	_, err = c.TIFFToASCII("rgb.tif", "blue.txt", ASCIIOptions{
		Channel:   raster.ChannelBlue,
		Transform: &raster.Transform{Scale: 100},
	})
	require.NoError(t, err)
	data, _ = mfs.ReadFile("blue.txt")
	assert.Equal(t, "20.000000 40.000000 \n", string(data))

	// Without a channel the 8-bit file is not a float TIFF.
	_, err = c.TIFFToASCII("rgb.tif", "float.txt", ASCIIOptions{})
	assert.ErrorIs(t, err, binrec.ErrUnsupportedFormat)
	assert.False(t, mfs.Exists("float.txt"))
}

func TestSniff(t *testing.T) {
	t.Parallel()

	assert.Equal(t, InputTIFF, Sniff([]byte("II*\x00")))
	assert.Equal(t, InputTIFF, Sniff([]byte("MM\x00*")))
	assert.Equal(t, InputMotion, Sniff([]byte{2, c3d.FormatID, 1, 0}))
	assert.Equal(t, InputDepth, Sniff([]byte("Aqsis ZFile")))
	assert.Equal(t, InputDepth, Sniff(nil))
	assert.Equal(t, "c3d", InputMotion.String())
}

func TestPreview_Raster(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("depth.z", testutil.ZFile(t, testutil.Ramp(t, 8, 4, 0, 1)))
	c, _ := newConverter(t, mfs, nil)
	_, err := c.ZFileToTIFF("depth.z", "depth.tif", ZOptions{})
	require.NoError(t, err)

	for _, in := range []string{"depth.z", "depth.tif"} {
		out := in + ".png"
		res, err := c.Preview(in, out, PreviewOptions{})
		require.NoError(t, err, in)
		assert.Equal(t, 8, res.Width)

		data, err := mfs.ReadFile(out)
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Positive(t, cfg.Width)
		assert.Equal(t, cfg.Width, cfg.Height)
	}
}

func TestPreview_Motion(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("points.txt", []byte(testutil.PointMatrix(2, 3)))
	c, _ := newConverter(t, mfs, nil)
	_, err := c.ASCIIToC3D("points.txt", "points.c3d")
	require.NoError(t, err)

	res, err := c.Preview("points.c3d", "points.html", PreviewOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Frames)

	data, err := mfs.ReadFile("points.html")
	require.NoError(t, err)
	assert.Contains(t, string(data), "points.c3d")
	assert.Contains(t, string(data), "scatter3D")
}

func TestPreview_BadInput(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("junk.bin", []byte("II*\x00garbage"))
	c, _ := newConverter(t, mfs, nil)

	_, err := c.Preview("junk.bin", "junk.png", PreviewOptions{})
	assert.Error(t, err)
	assert.False(t, mfs.Exists("junk.png"))
}
