package raster

import (
	"bufio"
	"io"
	"strconv"
)

// Transform is the affine map applied to each value on output.
type Transform struct {
	Base  float64
	Scale float64
}

// Identity leaves values unchanged.
var Identity = Transform{Base: 0, Scale: 1}

// Apply returns base + scale·v.
func (t Transform) Apply(v float64) float64 {
	return t.Base + t.Scale*v
}

// DefaultPrecision is the number of decimals written per value.
const DefaultPrecision = 6

// ASCIIOptions controls WriteASCII.
type ASCIIOptions struct {
	Window    Window
	Transform Transform
	// Precision is the number of decimals; zero selects DefaultPrecision.
	Precision int
}

// WriteASCII writes the window of g as text: one line per row, each value
// followed by a single space. Byte grids are normalised to [0, 1] before the
// transform is applied.
func WriteASCII(w io.Writer, g Grid, opts ASCIIOptions) error {
	width, height := g.Dims()
	win, err := opts.Window.Resolve(width, height)
	if err != nil {
		return err
	}
	prec := opts.Precision
	if prec <= 0 {
		prec = DefaultPrecision
	}

	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for row := win.Y; row < win.Y+win.H; row++ {
		for col := win.X; col < win.X+win.W; col++ {
			buf = strconv.AppendFloat(buf[:0], opts.Transform.Apply(g.Value(row, col)), 'f', prec, 64)
			buf = append(buf, ' ')
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
