package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banshee-data/sciconv/internal/cli"
	"github.com/banshee-data/sciconv/internal/convert"
	"github.com/banshee-data/sciconv/internal/raster"
)

// maxScale is the largest value -s accepts.
const maxScale = 100

func (a *app) newA2C3DCommand() *cobra.Command {
	var rate float64
	cmd := a.conversionCommand("a2c3d", "Convert an ASCII point matrix to a C3D motion file", nil)
	cmd.Long = `Convert an ASCII point matrix to a reduced C3D motion file.

Each line of the input is a frame holding x y z for every point, separated by
spaces or tabs. The point count is taken from the first line; short lines are
zero-filled.`
	a.bind(cmd, []cli.Opt{
		{DestP: &rate, Flag: "frame-rate", Desc: "frame rate in Hz written to the header (default from config, else 60)"},
	})
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if a.explicit(cmd, "frame-rate") {
			a.cfg.FrameRate = &rate
			if err := a.cfg.Validate(); err != nil {
				return err
			}
		}
		c, err := a.converter()
		if err != nil {
			return err
		}
		_, err = c.ASCIIToC3D(args[0], args[1])
		return err
	}
	return cmd
}

func (a *app) newC3D2ACommand() *cobra.Command {
	return a.conversionCommand("c3d2a", "Convert a C3D motion file to an ASCII point matrix", func(in, out string) error {
		c, err := a.converter()
		if err != nil {
			return err
		}
		_, err = c.C3DToASCII(in, out)
		return err
	})
}

func (a *app) newZ2TIFFCommand() *cobra.Command {
	var rescale string
	cmd := a.conversionCommand("z2tiff", "Convert a raw depth file to a float TIFF", nil)
	a.bind(cmd, []cli.Opt{
		{DestP: &rescale, Flag: "rescale", Desc: "map the depth range onto from,to"},
	})
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		var opts convert.ZOptions
		if rescale != "" {
			r, err := cli.ParseFloats(rescale, 2)
			if err != nil {
				return fmt.Errorf("--rescale: %w", err)
			}
			opts.Rescale = &convert.Range{From: float32(r[0]), To: float32(r[1])}
		}
		c, err := a.converter()
		if err != nil {
			return err
		}
		_, err = c.ZFileToTIFF(args[0], args[1], opts)
		return err
	}
	return cmd
}

type tiff2aFlags struct {
	rescale string
	cut     string
	extract string
	scale   float64
}

func (a *app) newTIFF2ACommand() *cobra.Command {
	var f tiff2aFlags
	cmd := a.conversionCommand("tiff2a", "Convert a TIFF to an ASCII array", nil)
	cmd.Long = `Convert a float TIFF, or one channel of an 8-bit TIFF, to an ASCII array.

Every value v is written as base + scale*v. Channel values are first divided
by 255.`
	a.bind(cmd, []cli.Opt{
		{DestP: &f.rescale, Flag: "rescale", Short: "r", Desc: "base,scale applied to every value"},
		{DestP: &f.cut, Flag: "cut", Short: "c", Desc: "x,y,w,h region to write"},
		{DestP: &f.extract, Flag: "extract", Short: "e", Desc: "channel of an 8-bit TIFF: r, g, b or m"},
		{DestP: &f.scale, Flag: "scale", Short: "s", Desc: "scale from 0 to 100, overrides the scale of --rescale"},
	})
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := a.tiff2aOptions(cmd, f)
		if err != nil {
			return err
		}
		c, err := a.converter()
		if err != nil {
			return err
		}
		_, err = c.TIFFToASCII(args[0], args[1], opts)
		return err
	}
	return cmd
}

func (a *app) tiff2aOptions(cmd *cobra.Command, f tiff2aFlags) (convert.ASCIIOptions, error) {
	var opts convert.ASCIIOptions
	tr := raster.Identity

	if f.rescale != "" {
		r, err := cli.ParseFloats(f.rescale, 2)
		if err != nil {
			return opts, fmt.Errorf("--rescale: %w", err)
		}
		tr = raster.Transform{Base: r[0], Scale: r[1]}
	}
	if a.explicit(cmd, "scale") {
		s := f.scale
		if s < 0 || s > maxScale {
			a.logger.Warn("scale out of range, using the maximum",
				zap.Float64("scale", s), zap.Int("max", maxScale))
			s = maxScale
		}
		tr.Scale = s
	}
	opts.Transform = &tr

	if f.cut != "" {
		c, err := cli.ParseInts(f.cut, 4)
		if err != nil {
			return opts, fmt.Errorf("--cut: %w", err)
		}
		opts.Window = raster.Window{X: c[0], Y: c[1], W: c[2], H: c[3]}
	}

	ch, err := raster.ParseChannel(f.extract)
	if err != nil {
		return opts, fmt.Errorf("--extract: %w", err)
	}
	opts.Channel = ch
	return opts, nil
}

func (a *app) newPreviewCommand() *cobra.Command {
	var opts convert.PreviewOptions
	cmd := a.conversionCommand("preview", "Draw a depth file, float TIFF or C3D file for a visual check", nil)
	cmd.Long = `Draw an input for a visual check. Depth files and float TIFFs become a PNG
heat map; C3D motion files become an HTML page with a 3D scatter of every
point sample.`
	a.bind(cmd, []cli.Opt{
		{DestP: &opts.Title, Flag: "title", Desc: "chart title (default the input file name)"},
		{DestP: &opts.MaxSamples, Flag: "max-samples", Desc: "cap the samples of a motion preview; 0 plots all"},
	})
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		c, err := a.converter()
		if err != nil {
			return err
		}
		_, err = c.Preview(args[0], args[1], opts)
		return err
	}
	return cmd
}
