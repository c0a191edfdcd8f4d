// Package preview renders quick-look images of conversion inputs: a PNG heat
// map for float rasters and an interactive HTML scatter for motion files.
package preview

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sciconv/internal/raster"
)

// DefaultMaxCells bounds the heat map resolution along each axis.
const DefaultMaxCells = 512

// RasterOptions controls RasterPNG.
type RasterOptions struct {
	Title string
	// Size is the edge length of the square image; zero selects 6 inches.
	Size vg.Length
	// MaxCells limits the cells drawn per axis by sampling every n-th
	// row and column; zero selects DefaultMaxCells.
	MaxCells int
}

// grid adapts a float raster to plotter.GridXYZ, sampling every stride-th
// sample. Raster row 0 is drawn at the top. Infinite values are treated as
// missing.
type grid struct {
	f      *raster.Float32
	stride int
	cols   int
	rows   int
}

func newGrid(f *raster.Float32, maxCells int) *grid {
	stride := 1
	for f.Width/stride > maxCells || f.Height/stride > maxCells {
		stride++
	}
	return &grid{
		f:      f,
		stride: stride,
		cols:   (f.Width + stride - 1) / stride,
		rows:   (f.Height + stride - 1) / stride,
	}
}

func (g *grid) Dims() (c, r int) { return g.cols, g.rows }

// row maps grid row r, counted from the bottom, to a raster row.
func (g *grid) row(r int) int { return (g.rows - 1 - r) * g.stride }

func (g *grid) Z(c, r int) float64 {
	v := float64(g.f.At(g.row(r), c*g.stride))
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func (g *grid) X(c int) float64 { return float64(c * g.stride) }

func (g *grid) Y(r int) float64 { return float64(g.f.Height - 1 - g.row(r)) }

// zRange returns the finite minimum and maximum of the sampled grid. A grid
// with no spread is widened by one so the palette has a range to map.
func (g *grid) zRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			v := g.Z(c, r)
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi {
		return 0, 1
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}

// RasterPNG draws f as a heat map and writes it to w as PNG.
func RasterPNG(w io.Writer, f *raster.Float32, opts RasterOptions) error {
	if f.Width == 0 || f.Height == 0 {
		return fmt.Errorf("cannot plot empty raster %dx%d", f.Width, f.Height)
	}
	maxCells := opts.MaxCells
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	size := opts.Size
	if size <= 0 {
		size = 6 * vg.Inch
	}

	g := newGrid(f, maxCells)
	hm := plotter.NewHeatMap(g, palette.Heat(64, 1))
	hm.Min, hm.Max = g.zRange()

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(hm)

	wt, err := p.WriterTo(size, size, "png")
	if err != nil {
		return fmt.Errorf("render heat map: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write heat map: %w", err)
	}
	return nil
}
