package preview

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sciconv/internal/c3d"
)

// frameColors runs from early (dark) to late (bright) frames.
var frameColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// MotionOptions controls MotionHTML.
type MotionOptions struct {
	Title string
	// MaxSamples caps the plotted samples by skipping whole frames; zero
	// plots every sample.
	MaxSamples int
	// AssetsHost overrides where the page loads the echarts scripts from.
	AssetsHost string
}

// MotionHTML renders every point sample of frames as a 3D scatter page,
// coloured by frame number.
func MotionHTML(w io.Writer, hdr c3d.Header, frames [][]c3d.Sample, opt MotionOptions) error {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	stride := 1
	if opt.MaxSamples > 0 {
		for total/stride > opt.MaxSamples {
			stride++
		}
	}

	data := make([]opts.Chart3DData, 0, total/stride+1)
	for i := 0; i < len(frames); i += stride {
		frame := int(hdr.FirstFrame) + i
		for p, s := range frames[i] {
			data = append(data, opts.Chart3DData{
				Name:  fmt.Sprintf("frame %d point %d", frame, p+1),
				Value: []interface{}{s.X, s.Y, s.Z, frame},
			})
		}
	}

	lastFrame := int(hdr.FirstFrame) + len(frames) - 1
	if lastFrame < int(hdr.FirstFrame) {
		lastFrame = int(hdr.FirstFrame)
	}

	initOpts := opts.Initialization{PageTitle: opt.Title, Width: "900px", Height: "900px"}
	if opt.AssetsHost != "" {
		initOpts.AssetsHost = opt.AssetsHost
	}

	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{
			Title:    opt.Title,
			Subtitle: fmt.Sprintf("points=%d frames=%d rate=%gHz samples=%d", hdr.PointCount, len(frames), hdr.FrameRate, len(data)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(hdr.FirstFrame),
			Max:        float32(lastFrame),
			Dimension:  "3",
			InRange:    &opts.VisualMapInRange{Color: frameColors},
		}),
	)
	scatter.AddSeries("samples", data)

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render motion preview: %w", err)
	}
	return nil
}
