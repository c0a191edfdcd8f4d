// Package testutil provides shared test fixtures for conversion tests.
package testutil

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/sciconv/internal/raster"
	"github.com/banshee-data/sciconv/internal/zfile"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Ramp returns a width x height raster whose values rise by step from base
// in row-major order.
func Ramp(t *testing.T, width, height int, base, step float32) *raster.Float32 {
	t.Helper()
	f, err := raster.NewFloat32(width, height)
	AssertNoError(t, err)
	for i := range f.Pix {
		f.Pix[i] = base + float32(i)*step
	}
	return f
}

// ZFile encodes f as a depth file with the default format tag.
func ZFile(t *testing.T, f *raster.Float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	AssertNoError(t, zfile.Encode(&buf, zfile.Header{}, f))
	return buf.Bytes()
}

// PointMatrix returns a matrix of points x frames where every coordinate of
// point p in frame f is written as f.p with axis offsets 0, 0.25 and 0.5.
func PointMatrix(points, frames int) string {
	var b strings.Builder
	for f := 0; f < frames; f++ {
		for p := 0; p < points; p++ {
			if p > 0 {
				b.WriteByte(' ')
			}
			v := PointValue(f, p)
			fmt.Fprintf(&b, "%g %g %g", v, v+0.25, v+0.5)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// PointValue is the x coordinate PointMatrix writes for point p in frame f.
func PointValue(frame, point int) float32 {
	return float32(frame) + float32(point)/10
}

// AssertBitsEqual fails unless want and got hold the same float bit patterns.
func AssertBitsEqual(t *testing.T, want, got []float32) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Float32bits(want[i]) != math.Float32bits(got[i]) {
			t.Fatalf("value %d = %v (%#08x), want %v (%#08x)", i, got[i], math.Float32bits(got[i]), want[i], math.Float32bits(want[i]))
		}
	}
}
