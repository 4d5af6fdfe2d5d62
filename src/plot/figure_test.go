package plot

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/katehuntsman/cintel-05-cintel/src/analysis"
	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

func frameOf(t *testing.T, temps ...float64) (*analysis.Frame, analysis.Trend) {
	t.Helper()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rs := make([]monitor.Reading, len(temps))
	for i, v := range temps {
		rs[i] = monitor.Reading{Timestamp: start.Add(time.Duration(3*i) * time.Second), Temp: v, Humidity: 80, Pressure: 1000}
	}
	f, err := analysis.NewFrame(rs, monitor.NewEnvironmentSource(1).Fields())
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	var tr analysis.Trend
	if len(temps) > 0 {
		tr, err = analysis.FitTrend(temps)
		if err != nil {
			t.Fatalf("fit: %v", err)
		}
	}
	return f, tr
}

func TestBuildUsesFixedMarkerSize(t *testing.T) {
	for _, temps := range [][]float64{{-17}, {-17, -16.5}, {-17.9, -16.2, -17.1, -16.8, -17.4}} {
		f, tr := frameOf(t, temps...)
		ch, err := Build(f, "temp", tr, DefaultOptions())
		if err != nil {
			t.Fatalf("build n=%d: %v", len(temps), err)
		}
		if len(ch.Series) != 2 {
			t.Fatalf("n=%d: %d series want 2", len(temps), len(ch.Series))
		}
		markers := ch.Series[0].(chart.TimeSeries)
		if markers.Style.DotWidth != MarkerSize {
			t.Fatalf("n=%d: marker dot width %v want %v", len(temps), markers.Style.DotWidth, MarkerSize)
		}
		if markers.Style.StrokeWidth != chart.Disabled {
			t.Fatalf("n=%d: markers must not be joined by a line", len(temps))
		}
		trend := ch.Series[1].(chart.TimeSeries)
		if trend.Name != TrendSeriesName {
			t.Fatalf("trend series name = %q", trend.Name)
		}
		if len(trend.YValues) != len(markers.YValues) || len(markers.XValues) < 2 {
			t.Fatalf("n=%d: x=%d y=%d trend=%d", len(temps), len(markers.XValues), len(markers.YValues), len(trend.YValues))
		}
	}
}

func TestBuildTrendValuesFollowFit(t *testing.T) {
	f, tr := frameOf(t, -18, -17.5, -17)
	ch, err := Build(f, "temp", tr, DefaultOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	trend := ch.Series[1].(chart.TimeSeries)
	for i, want := range []float64{-18, -17.5, -17} {
		if d := trend.YValues[i] - want; d > 1e-9 || d < -1e-9 {
			t.Fatalf("trend[%d]=%v want %v", i, trend.YValues[i], want)
		}
	}
	if ch.YAxis.Range.GetMin() > -18 || ch.YAxis.Range.GetMax() < -17 {
		t.Fatalf("y range %v..%v clips data", ch.YAxis.Range.GetMin(), ch.YAxis.Range.GetMax())
	}
}

func TestBuildErrors(t *testing.T) {
	f, tr := frameOf(t)
	if _, err := Build(f, "temp", tr, Options{}); !errors.Is(err, analysis.ErrNoData) {
		t.Fatalf("empty frame err=%v want ErrNoData", err)
	}
	f, tr = frameOf(t, -17, -16)
	if _, err := Build(f, "wind", tr, Options{}); !errors.Is(err, analysis.ErrUnknownColumn) {
		t.Fatalf("unknown key err=%v", err)
	}
}

func TestRenderSVG(t *testing.T) {
	f, tr := frameOf(t, -17, -16.4, -16.9)
	var buf bytes.Buffer
	if err := RenderSVG(&buf, f, "temp", tr, DefaultOptions()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<svg") || !strings.Contains(out, TrendSeriesName) {
		t.Fatalf("svg missing root or legend entry: %.200s", out)
	}

	empty, _ := frameOf(t)
	buf.Reset()
	if err := RenderSVG(&buf, empty, "temp", analysis.Trend{}, DefaultOptions()); err != nil {
		t.Fatalf("render empty: %v", err)
	}
	if !strings.Contains(buf.String(), "waiting for data") {
		t.Fatalf("expected placeholder, got %q", buf.String())
	}
}

func TestRenderImageBlankForEmpty(t *testing.T) {
	empty, _ := frameOf(t)
	img, err := RenderImage(empty, "temp", analysis.Trend{}, Options{Width: 640, Height: 300})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if img.Bounds().Dx() != 640 || img.Bounds().Dy() != 300 {
		t.Fatalf("blank size = %v", img.Bounds())
	}
}

func TestRenderPNGWithHint(t *testing.T) {
	f, tr := frameOf(t, -17, -16.4)
	opts := DefaultOptions()
	opts.Hint = TrendHint(tr)
	var buf bytes.Buffer
	if err := RenderPNG(&buf, f, "temp", tr, opts); err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != opts.Width {
		t.Fatalf("width = %d want %d", img.Bounds().Dx(), opts.Width)
	}
	if !strings.Contains(opts.Hint, "rising") {
		t.Fatalf("hint = %q", opts.Hint)
	}
}

func nearMarkerBlue(c color.Color) bool {
	r, g, b, a := c.RGBA()
	if a < 0x4000 {
		return false
	}
	R, G, B := float64(r>>8), float64(g>>8), float64(b>>8)
	return B > 120 && B > R+60 && B > G+40
}

// markerWidths finds clusters of marker-blue columns and returns each cluster's width in pixels.
func markerWidths(img image.Image) []int {
	b := img.Bounds()
	cols := make([]bool, b.Dx())
	for x := 0; x < b.Dx(); x++ {
		for y := 0; y < b.Dy(); y++ {
			if nearMarkerBlue(img.At(b.Min.X+x, b.Min.Y+y)) {
				cols[x] = true
				break
			}
		}
	}
	var widths []int
	start := -1
	for x, on := range cols {
		switch {
		case on && start < 0:
			start = x
		case !on && start >= 0:
			widths = append(widths, x-start)
			start = -1
		}
	}
	if start >= 0 {
		widths = append(widths, len(cols)-start)
	}
	return widths
}

func renderMarkers(t *testing.T, temps ...float64) image.Image {
	t.Helper()
	f, tr := frameOf(t, temps...)
	ch, err := Build(f, "temp", tr, DefaultOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ch.Elements = nil // the legend swatch shares the marker colour
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

// Rendered markers keep the same on-screen size as the window fills up.
func TestRenderedMarkersKeepSizeAcrossUpdates(t *testing.T) {
	var ref int
	for _, temps := range [][]float64{{-17, -16.2}, {-17, -16.2, -17.5}, {-17, -16.2, -17.5, -16.8, -17.1}} {
		widths := markerWidths(renderMarkers(t, temps...))
		if len(widths) != len(temps) {
			t.Fatalf("n=%d: found %d marker clusters (%v)", len(temps), len(widths), widths)
		}
		for _, w := range widths {
			if ref == 0 {
				ref = w
			}
			if d := w - ref; d > 2 || d < -2 {
				t.Fatalf("n=%d: marker width %d differs from first render %d", len(temps), w, ref)
			}
		}
	}
	if ref < MarkerSize {
		t.Fatalf("marker width %d smaller than MarkerSize %d", ref, MarkerSize)
	}
}
