// Package plot builds the "Chart with Current Trend" figure: a scatter of the
// recent readings plus the fitted trend line, rendered with go-chart.
package plot

import (
	"bytes"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/katehuntsman/cintel-05-cintel/src/analysis"
)

// MarkerSize is the dot width of the reading markers. It is the same on every
// render, whatever the number of points, so markers do not change size
// (flash) when the figure is replaced after an update.
const MarkerSize = 8

// TrendSeriesName labels the regression line in the legend.
const TrendSeriesName = "Trend Line"

var (
	markerColor    = chart.ColorBlue
	trendColor     = drawing.ColorFromHex("ff7f0e")
	darkBackground = drawing.Color{R: 17, G: 17, B: 17, A: 255}
	darkCanvas     = drawing.Color{R: 24, G: 24, B: 27, A: 255}
	darkText       = drawing.Color{R: 230, G: 230, B: 230, A: 255}
	darkGrid       = drawing.Color{R: 80, G: 80, B: 88, A: 255}
)

// Options controls titles, size and theme.
type Options struct {
	Title  string
	XLabel string
	YLabel string
	Width  int
	Height int
	Dark   bool
	// Hint, when set, is drawn as a caption on PNG output.
	Hint string
}

// DefaultOptions are the temperature chart defaults.
func DefaultOptions() Options {
	return Options{
		Title:  "Temperature Readings with Regression Line",
		XLabel: "Time",
		YLabel: "Temperature (°C)",
		Width:  900,
		Height: 420,
		Dark:   true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.XLabel == "" {
		o.XLabel = d.XLabel
	}
	if o.YLabel == "" {
		o.YLabel = d.YLabel
	}
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	return o
}

// markerStyle renders points only (no connecting line) at the fixed MarkerSize.
func markerStyle() chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    MarkerSize,
		DotColor:    markerColor,
	}
}

func trendStyle() chart.Style {
	return chart.Style{
		StrokeWidth: 2,
		StrokeColor: trendColor,
	}
}

// Build assembles the figure for column key. The frame must not be empty.
func Build(f *analysis.Frame, key string, tr analysis.Trend, opts Options) (chart.Chart, error) {
	opts = opts.withDefaults()
	if f == nil || f.Len() == 0 {
		return chart.Chart{}, analysis.ErrNoData
	}
	ys, err := f.Column(key)
	if err != nil {
		return chart.Chart{}, err
	}
	field, ok := f.Field(key)
	times := append([]time.Time(nil), f.Times()...)
	fit := tr.Line(len(ys))

	// go-chart needs two distinct X values; pad a lone reading by one second.
	if len(times) == 1 {
		times = append(times, times[0].Add(time.Second))
		ys = append(ys, ys[0])
		fit = append(fit, fit[0])
	}

	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	for _, v := range append(append([]float64(nil), ys...), fit...) {
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}
	yMin, yMax := niceAxisBounds(minY, maxY)

	minT, maxT := times[0], times[len(times)-1]
	step, labelFmt := pickTimeStep(maxT.Sub(minT))
	xTicks := makeNiceTimeTicks(minT, maxT, step, labelFmt)

	decimals := -1
	if ok {
		decimals = field.Decimals
	}
	name := field.Label
	if name == "" {
		name = key
	}
	ch := chart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 24, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  opts.XLabel,
			Ticks: xTicks,
			Range: timeAxisRange(minT, maxT, step, xTicks),
		},
		YAxis: chart.YAxis{
			Name:  opts.YLabel,
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
			Ticks: niceTicks(yMin, yMax, 6, decimals),
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: name, XValues: times, YValues: ys, Style: markerStyle()},
			chart.TimeSeries{Name: TrendSeriesName, XValues: times, YValues: fit, Style: trendStyle()},
		},
	}
	legendStyle := chart.Style{}
	if opts.Dark {
		applyDarkTheme(&ch)
		legendStyle = chart.Style{FillColor: darkCanvas, FontColor: darkText, StrokeColor: darkGrid}
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch, legendStyle)}
	return ch, nil
}

func applyDarkTheme(ch *chart.Chart) {
	ch.Background.FillColor = darkBackground
	ch.Canvas = chart.Style{FillColor: darkCanvas}
	ch.TitleStyle = chart.Style{FontColor: darkText}
	axis := chart.Style{FontColor: darkText, StrokeColor: darkGrid}
	ch.XAxis.Style = axis
	ch.XAxis.NameStyle = axis
	ch.YAxis.Style = axis
	ch.YAxis.NameStyle = axis
}

// RenderSVG writes the figure as SVG. An empty frame yields a placeholder.
func RenderSVG(w io.Writer, f *analysis.Frame, key string, tr analysis.Trend, opts Options) error {
	opts = opts.withDefaults()
	if f == nil || f.Len() == 0 {
		_, err := io.WriteString(w, placeholderSVG(opts))
		return err
	}
	ch, err := Build(f, key, tr, opts)
	if err != nil {
		return err
	}
	if err := ch.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("plot: render svg: %w", err)
	}
	return nil
}

// RenderImage renders the figure to an image, falling back to a blank canvas
// for an empty frame so viewers always have something to show.
func RenderImage(f *analysis.Frame, key string, tr analysis.Trend, opts Options) (image.Image, error) {
	opts = opts.withDefaults()
	if f == nil || f.Len() == 0 {
		return blank(opts.Width, opts.Height), nil
	}
	ch, err := Build(f, key, tr, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("plot: render png: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("plot: decode png: %w", err)
	}
	if opts.Hint != "" {
		img = drawHint(img, opts.Hint)
	}
	return img, nil
}

// RenderPNG writes the figure as PNG.
func RenderPNG(w io.Writer, f *analysis.Frame, key string, tr analysis.Trend, opts Options) error {
	img, err := RenderImage(f, key, tr, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// TrendHint is the default PNG caption: an ASCII summary of the fit.
func TrendHint(tr analysis.Trend) string {
	return fmt.Sprintf("n=%d slope=%+.3f/reading r2=%.2f (%s)", tr.N, tr.Slope, tr.RSquared, tr.Direction())
}

func placeholderSVG(opts Options) string {
	bg, fg := "#ffffff", "#555555"
	if opts.Dark {
		bg, fg = "#111111", "#bbbbbb"
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`+
		`<rect width="100%%" height="100%%" fill="%s"/>`+
		`<text x="50%%" y="50%%" fill="%s" font-family="sans-serif" font-size="16" text-anchor="middle">%s: waiting for data</text>`+
		`</svg>`, opts.Width, opts.Height, bg, fg, html.EscapeString(opts.Title))
}

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 18, G: 18, B: 18, A: 255}), image.Point{}, draw.Src)
	return img
}

// drawHint stamps text in a dark box at the bottom-right of img, clear of
// the legend and the y axis labels.
func drawHint(img image.Image, text string) image.Image {
	if img == nil || strings.TrimSpace(text) == "" {
		return img
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)

	const pad, margin = 6, 8
	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: rgba, Face: face}
	tw := dr.MeasureString(text).Ceil()
	x := b.Max.X - margin - tw
	if x < b.Min.X+margin {
		x = b.Min.X + margin
	}
	y := b.Max.Y - margin
	box := image.Rect(x-pad, y-face.Metrics().Ascent.Ceil()-pad, x+tw+pad, y+pad/2)
	draw.Draw(rgba, box, image.NewUniform(color.RGBA{A: 200}), image.Point{}, draw.Over)

	// 1px shadow keeps the text legible over grid lines
	for _, pass := range []struct {
		off int
		c   color.RGBA
	}{{1, color.RGBA{A: 180}}, {0, color.RGBA{R: 255, G: 255, B: 255, A: 255}}} {
		dr.Src = image.NewUniform(pass.c)
		dr.Dot = fixed.P(x+pass.off, y+pass.off)
		dr.DrawString(text)
	}
	return rgba
}
