package raster

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Channel selects which component of a colour raster is extracted.
type Channel int

const (
	ChannelNone Channel = iota
	ChannelRed
	ChannelGreen
	ChannelBlue
	ChannelMono
)

func (c Channel) String() string {
	switch c {
	case ChannelNone:
		return "none"
	case ChannelRed:
		return "red"
	case ChannelGreen:
		return "green"
	case ChannelBlue:
		return "blue"
	case ChannelMono:
		return "mono"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// ParseChannel accepts the first letter or full name of a channel
// (r, g, b, m); the empty string selects no extraction.
func ParseChannel(s string) (Channel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return ChannelNone, nil
	}
	switch s[0] {
	case 'r':
		return ChannelRed, nil
	case 'g':
		return ChannelGreen, nil
	case 'b':
		return ChannelBlue, nil
	case 'm':
		return ChannelMono, nil
	}
	return ChannelNone, fmt.Errorf("can't extract %q: want red, green, blue or mono", s)
}

// Window is a rectangular cut of a raster.
type Window struct {
	X, Y int
	W, H int
}

// Resolve applies the cut defaults and checks bounds. A zero width with a
// zero x origin means the full width, likewise for the height.
func (w Window) Resolve(width, height int) (Window, error) {
	if w.W == 0 && w.X == 0 {
		w.W = width
	}
	if w.H == 0 && w.Y == 0 {
		w.H = height
	}
	if w.X < 0 || w.Y < 0 || w.W < 0 || w.H < 0 {
		return Window{}, fmt.Errorf("cut %d,%d,%d,%d has negative components", w.X, w.Y, w.W, w.H)
	}
	if w.W > width-w.X || w.H > height-w.Y {
		return Window{}, fmt.Errorf("cut %d,%d,%d,%d exceeds raster %dx%d", w.X, w.Y, w.W, w.H, width, height)
	}
	return w, nil
}

// Summary describes the value distribution of a float raster.
type Summary struct {
	Min, Max     float64
	Mean, StdDev float64
	Count        int
}

// Stats summarises f. An empty raster has a zero summary.
func Stats(f *Float32) Summary {
	if len(f.Pix) == 0 {
		return Summary{}
	}
	vals := widen(f.Pix)
	mean, std := stat.MeanStdDev(vals, nil)
	if len(vals) == 1 {
		std = 0
	}
	return Summary{
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
		Mean:   mean,
		StdDev: std,
		Count:  len(vals),
	}
}

// RescaleRange maps the value range of f linearly onto [from, to] in place.
// A flat raster maps every sample to from.
func RescaleRange(f *Float32, from, to float32) {
	if len(f.Pix) == 0 {
		return
	}
	vals := widen(f.Pix)
	lo, hi := floats.Min(vals), floats.Max(vals)
	span := hi - lo
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		for i := range f.Pix {
			f.Pix[i] = from
		}
		return
	}
	floats.AddConst(-lo, vals)
	floats.Scale(float64(to-from)/span, vals)
	floats.AddConst(float64(from), vals)
	for i, v := range vals {
		f.Pix[i] = float32(v)
	}
}

// Crop copies the window w out of f.
func Crop(f *Float32, w Window) (*Float32, error) {
	w, err := w.Resolve(f.Width, f.Height)
	if err != nil {
		return nil, err
	}
	out, err := NewFloat32(w.W, w.H)
	if err != nil {
		return nil, err
	}
	for row := 0; row < w.H; row++ {
		src := f.Row(w.Y + row)[w.X : w.X+w.W]
		copy(out.Row(row), src)
	}
	return out, nil
}

func widen(pix []float32) []float64 {
	out := make([]float64, len(pix))
	for i, v := range pix {
		out[i] = float64(v)
	}
	return out
}
