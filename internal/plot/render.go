package plot

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNothingToPlot is returned when both series are empty.
var ErrNothingToPlot = errors.New("no result points to plot")

const (
	XAxisLabel = "Distance along traverse (m)"
	YAxisLabel = "Magnetic value (TMI)"
)

// Options controls the rendered image.
type Options struct {
	Width  int
	Height int
	Title  string
	Color  drawing.Color
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1024
	}
	if o.Height <= 0 {
		o.Height = 480
	}
	if o.Title == "" {
		o.Title = "Measured (filled) and predicted (open) TMI"
	}
	if o.Color.IsZero() {
		o.Color = chart.ColorBlue
	}
	return o
}

const (
	markerRadius = 4
	ringHole     = 2.5
)

// markerStyle draws points only, with no connecting line.
func markerStyle(col drawing.Color, radius float64) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    radius,
		DotColor:    col,
	}
}

// Render writes p as a PNG. Measured points are filled markers; predicted points
// are open rings, drawn as a colored dot with a background-colored center.
func Render(w io.Writer, p Projection, opts Options) error {
	if p.Empty() {
		return ErrNothingToPlot
	}
	opts = opts.withDefaults()

	var series []chart.Series
	if len(p.Measured) > 0 {
		xs, ys := split(p.Measured)
		series = append(series, chart.ContinuousSeries{
			Name:    "measured",
			XValues: xs,
			YValues: ys,
			Style:   markerStyle(opts.Color, markerRadius),
		})
	}
	if len(p.Predicted) > 0 {
		xs, ys := split(p.Predicted)
		series = append(series,
			chart.ContinuousSeries{
				Name:    "predicted",
				XValues: xs,
				YValues: ys,
				Style:   markerStyle(opts.Color, markerRadius),
			},
			chart.ContinuousSeries{
				XValues: xs,
				YValues: ys,
				Style:   markerStyle(chart.ColorWhite, ringHole),
			},
		)
	}

	xr, yr := bounds(p)
	ch := chart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{Name: XAxisLabel, Range: xr},
		YAxis:      chart.YAxis{Name: YAxisLabel, Range: yr},
		Series:     series,
	}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}
	return nil
}

func split(pts []Point) ([]float64, []float64) {
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, pt := range pts {
		xs[i] = pt.X
		ys[i] = pt.Y
	}
	return xs, ys
}

// bounds returns axis ranges covering every point with a small margin. A
// degenerate range is widened to a span of 1.
func bounds(p Projection) (*chart.ContinuousRange, *chart.ContinuousRange) {
	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	for _, pts := range [][]Point{p.Measured, p.Predicted} {
		for _, pt := range pts {
			xmin = math.Min(xmin, pt.X)
			xmax = math.Max(xmax, pt.X)
			ymin = math.Min(ymin, pt.Y)
			ymax = math.Max(ymax, pt.Y)
		}
	}
	return padded(xmin, xmax), padded(ymin, ymax)
}

func padded(lo, hi float64) *chart.ContinuousRange {
	span := hi - lo
	if span == 0 {
		span = 1
		lo -= 0.5
		hi += 0.5
	}
	margin := span * 0.05
	return &chart.ContinuousRange{Min: lo - margin, Max: hi + margin}
}
