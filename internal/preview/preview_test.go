package preview

import (
	"bytes"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sciconv/internal/c3d"
	"github.com/banshee-data/sciconv/internal/raster"
)

func ramp(t *testing.T, w, h int) *raster.Float32 {
	t.Helper()
	f, err := raster.NewFloat32(w, h)
	require.NoError(t, err)
	for i := range f.Pix {
		f.Pix[i] = float32(i)
	}
	return f
}

func TestGrid_Orientation(t *testing.T) {
	t.Parallel()

	g := newGrid(ramp(t, 3, 2), DefaultMaxCells)
	c, r := g.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 2, r)

	// Grid row 0 is the bottom raster row.
	assert.Equal(t, float64(3), g.Z(0, 0))
	assert.Equal(t, float64(0), g.Z(0, 1))
	assert.Equal(t, float64(0), g.Y(0))
	assert.Equal(t, float64(1), g.Y(1))
	assert.Equal(t, float64(2), g.X(2))
}

func TestGrid_Sampling(t *testing.T) {
	t.Parallel()

	g := newGrid(ramp(t, 1000, 10), 512)
	assert.Equal(t, 2, g.stride)
	c, r := g.Dims()
	assert.Equal(t, 500, c)
	assert.Equal(t, 5, r)
	assert.Equal(t, float64(998), g.X(499))
}

func TestGrid_Range(t *testing.T) {
	t.Parallel()

	f := ramp(t, 2, 2)
	f.Pix[0] = float32(math.Inf(1))
	f.Pix[1] = float32(math.NaN())
	lo, hi := newGrid(f, DefaultMaxCells).zRange()
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 3.0, hi)

	flat, _ := raster.NewFloat32(2, 2)
	lo, hi = newGrid(flat, DefaultMaxCells).zRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	for i := range flat.Pix {
		flat.Pix[i] = float32(math.NaN())
	}
	lo, hi = newGrid(flat, DefaultMaxCells).zRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestRasterPNG(t *testing.T) {
	t.Parallel()

	f := ramp(t, 20, 10)
	f.Pix[5] = float32(math.NaN())

	var out bytes.Buffer
	require.NoError(t, RasterPNG(&out, f, RasterOptions{Title: "depth", Size: 3 * vg.Inch}))

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.Greater(t, cfg.Width, 0)
	assert.Equal(t, cfg.Width, cfg.Height)
}

func TestRasterPNG_Empty(t *testing.T) {
	t.Parallel()

	empty, _ := raster.NewFloat32(0, 4)
	assert.Error(t, RasterPNG(&bytes.Buffer{}, empty, RasterOptions{}))
}

func motionFrames(points, frames int) [][]c3d.Sample {
	out := make([][]c3d.Sample, frames)
	for f := range out {
		out[f] = make([]c3d.Sample, points)
		for p := range out[f] {
			out[f][p] = c3d.Sample{X: float32(f), Y: float32(p), Z: 1}
		}
	}
	return out
}

func TestMotionHTML(t *testing.T) {
	t.Parallel()

	hdr := c3d.NewHeader(2, 3, 60)
	var out bytes.Buffer
	require.NoError(t, MotionHTML(&out, hdr, motionFrames(2, 3), MotionOptions{Title: "walk.c3d"}))

	html := out.String()
	assert.Contains(t, html, "walk.c3d")
	assert.Contains(t, html, "scatter3D")
	assert.Contains(t, html, "points=2 frames=3")
	assert.Contains(t, html, "frame 3 point 2")
}

func TestMotionHTML_MaxSamples(t *testing.T) {
	t.Parallel()

	hdr := c3d.NewHeader(10, 100, 60)
	var out bytes.Buffer
	require.NoError(t, MotionHTML(&out, hdr, motionFrames(10, 100), MotionOptions{Title: "big", MaxSamples: 100}))
	assert.Contains(t, out.String(), "samples=100")
	assert.Equal(t, 0, strings.Count(out.String(), "frame 2 point 1"))
	assert.Equal(t, 1, strings.Count(out.String(), "frame 11 point 1\""))
}
