// Package raster holds row-major image buffers and the transforms applied
// between decoding and writing: cropping, channel selection, rescaling and
// ASCII output.
package raster

import "fmt"

// Float32 is a width × height grid of float samples, row-major, origin top-left.
type Float32 struct {
	Width  int
	Height int
	Pix    []float32
}

// Pixels returns width × height, rejecting the dimensions NewFloat32 would
// refuse. Decoders use it to validate a header before reading any samples.
func Pixels(width, height int) (int, error) {
	return size(width, height)
}

// NewFloat32 allocates a zeroed grid.
func NewFloat32(width, height int) (*Float32, error) {
	n, err := size(width, height)
	if err != nil {
		return nil, err
	}
	return &Float32{Width: width, Height: height, Pix: make([]float32, n)}, nil
}

// Offset returns the index of (row, col) in Pix.
func (f *Float32) Offset(row, col int) int {
	return row*f.Width + col
}

// At returns the sample at (row, col).
func (f *Float32) At(row, col int) float32 {
	return f.Pix[f.Offset(row, col)]
}

// Set stores v at (row, col).
func (f *Float32) Set(row, col int, v float32) {
	f.Pix[f.Offset(row, col)] = v
}

// Row returns the samples of one row. The slice aliases Pix.
func (f *Float32) Row(row int) []float32 {
	start := row * f.Width
	return f.Pix[start : start+f.Width : start+f.Width]
}

// Dims returns the grid dimensions.
func (f *Float32) Dims() (width, height int) { return f.Width, f.Height }

// Value returns the sample at (row, col) widened to float64.
func (f *Float32) Value(row, col int) float64 { return float64(f.At(row, col)) }

// Uint8 is a width × height grid of byte samples, typically one extracted
// colour channel.
type Uint8 struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewUint8 allocates a zeroed grid.
func NewUint8(width, height int) (*Uint8, error) {
	n, err := size(width, height)
	if err != nil {
		return nil, err
	}
	return &Uint8{Width: width, Height: height, Pix: make([]uint8, n)}, nil
}

// At returns the sample at (row, col).
func (u *Uint8) At(row, col int) uint8 {
	return u.Pix[row*u.Width+col]
}

// Set stores v at (row, col).
func (u *Uint8) Set(row, col int, v uint8) {
	u.Pix[row*u.Width+col] = v
}

// Dims returns the grid dimensions.
func (u *Uint8) Dims() (width, height int) { return u.Width, u.Height }

// Value returns the sample at (row, col) normalised to [0, 1].
func (u *Uint8) Value(row, col int) float64 { return float64(u.At(row, col)) / 255.0 }

// Grid is the read-only view shared by both buffer types.
type Grid interface {
	Dims() (width, height int)
	// Value returns the sample at (row, col) as written to text output.
	Value(row, col int) float64
}

var (
	_ Grid = (*Float32)(nil)
	_ Grid = (*Uint8)(nil)
)

// maxPixels bounds allocations driven by header-declared dimensions.
const maxPixels = 1 << 30

func size(width, height int) (int, error) {
	if width < 0 || height < 0 {
		return 0, fmt.Errorf("invalid raster dimensions %dx%d", width, height)
	}
	if width != 0 && height > maxPixels/width {
		return 0, fmt.Errorf("raster dimensions %dx%d exceed %d pixels", width, height, maxPixels)
	}
	return width * height, nil
}
