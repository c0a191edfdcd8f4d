package tiffraster

import (
	"errors"
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/image/tiff"

	"github.com/banshee-data/sciconv/internal/binrec"
	"github.com/banshee-data/sciconv/internal/raster"
)

// DecodeChannel8 reads an 8-bit-per-sample TIFF and extracts one channel.
// Red, green and blue select a colour component; mono selects the grey
// level, which for grey images is the stored sample.
func DecodeChannel8(r io.ReaderAt, ch raster.Channel) (*raster.Uint8, error) {
	if ch == raster.ChannelNone {
		return nil, errors.New("no channel selected")
	}
	in, err := DecodeInfo(r)
	if err != nil {
		return nil, err
	}
	if bits := in.Bits(); bits != 8 {
		return nil, binrec.Errorf(binrec.KindUnsupportedFormat, binrec.StageHeader, "tiff", "colour data not 8 bit per channel (it's %d)", bits)
	}

	img, err := tiff.Decode(io.NewSectionReader(r, 0, math.MaxInt64))
	if err != nil {
		return nil, decodeError(err)
	}
	return extract(img, ch)
}

func decodeError(err error) error {
	var fe tiff.FormatError
	var ue tiff.UnsupportedError
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &binrec.Error{Kind: binrec.KindTruncated, Stage: binrec.StageData, Op: "tiff", Err: err}
	case errors.As(err, &fe), errors.As(err, &ue):
		return &binrec.Error{Kind: binrec.KindUnsupportedFormat, Stage: binrec.StageData, Op: "tiff", Err: err}
	}
	return &binrec.Error{Kind: binrec.KindOpen, Stage: binrec.StageData, Op: "tiff", Err: err}
}

func extract(img image.Image, ch raster.Channel) (*raster.Uint8, error) {
	b := img.Bounds()
	out, err := raster.NewUint8(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < out.Height; y++ {
			copy(out.Pix[y*out.Width:(y+1)*out.Width], g.Pix[y*g.Stride:y*g.Stride+out.Width])
		}
		return out, nil
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			var v uint8
			if ch == raster.ChannelMono {
				v = color.GrayModel.Convert(c).(color.Gray).Y
			} else {
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				switch ch {
				case raster.ChannelRed:
					v = n.R
				case raster.ChannelGreen:
					v = n.G
				case raster.ChannelBlue:
					v = n.B
				}
			}
			out.Pix[y*out.Width+x] = v
		}
	}
	return out, nil
}
