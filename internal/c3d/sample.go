package c3d

import "github.com/banshee-data/sciconv/internal/binrec"

// SampleSize is the encoded size of one point record: three float32
// coordinates, a camera byte and a residual byte.
const SampleSize = 3*4 + 1 + 1

// Sample is one point's position at one frame.
type Sample struct {
	X, Y, Z  float32
	Cameras  uint8
	Residual uint8
}

// Put encodes s into b[0:SampleSize].
func (s Sample) Put(b []byte) {
	_ = b[SampleSize-1]
	binrec.PutFloat32(b[0:], s.X)
	binrec.PutFloat32(b[4:], s.Y)
	binrec.PutFloat32(b[8:], s.Z)
	b[12] = s.Cameras
	b[13] = s.Residual
}

// EncodePointSample returns the point record for one sample.
func EncodePointSample(x, y, z float32, cameras, residual uint8) [SampleSize]byte {
	var b [SampleSize]byte
	Sample{X: x, Y: y, Z: z, Cameras: cameras, Residual: residual}.Put(b[:])
	return b
}

// DecodePointSample decodes b[0:SampleSize].
func DecodePointSample(b []byte) Sample {
	_ = b[SampleSize-1]
	return Sample{
		X:        binrec.Float32(b[0:]),
		Y:        binrec.Float32(b[4:]),
		Z:        binrec.Float32(b[8:]),
		Cameras:  b[12],
		Residual: b[13],
	}
}
