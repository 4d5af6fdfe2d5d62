package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

var (
	// ErrNoData is returned when there is nothing to fit.
	ErrNoData = errors.New("no data")
	// ErrNonFinite is returned when an input value is NaN or infinite.
	ErrNonFinite = errors.New("non-finite value")
)

// steadySlope is the per-row change below which a trend counts as flat.
const steadySlope = 0.01

// Trend is a least-squares line fitted against the row index (0..N-1).
type Trend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
}

// FitTrend regresses ys on their row index. A single value yields a flat
// line through it.
func FitTrend(ys []float64) (Trend, error) {
	n := len(ys)
	if n == 0 {
		return Trend{}, ErrNoData
	}
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return Trend{}, fmt.Errorf("analysis: row %d: %w", i, ErrNonFinite)
		}
	}
	if n == 1 {
		return Trend{Intercept: ys[0], N: 1}, nil
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	// constant series: SStot is zero and R² is undefined
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	return Trend{Slope: beta, Intercept: alpha, RSquared: r2, N: n}, nil
}

// At evaluates the line at row index x.
func (t Trend) At(x float64) float64 { return t.Slope*x + t.Intercept }

// Line returns the fitted value for every row index 0..n-1.
func (t Trend) Line(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = t.At(float64(i))
	}
	return out
}

// Direction classifies the slope as "rising", "falling" or "steady".
func (t Trend) Direction() string {
	switch {
	case t.Slope > steadySlope:
		return "rising"
	case t.Slope < -steadySlope:
		return "falling"
	default:
		return "steady"
	}
}

// Summary is everything the dashboard shows about one column.
type Summary struct {
	Field  monitor.Field   `json:"field"`
	Latest monitor.Reading `json:"latest"`
	Trend  Trend           `json:"trend"`
	Min    float64         `json:"min"`
	Max    float64         `json:"max"`
	Mean   float64         `json:"mean"`
}

// Summarize fits the trend for key and collects basic column statistics.
func Summarize(f *Frame, latest monitor.Reading, key string) (Summary, error) {
	field, ok := f.Field(key)
	if !ok {
		return Summary{}, fmt.Errorf("analysis: summarize %q: %w", key, ErrUnknownColumn)
	}
	ys, err := f.Column(key)
	if err != nil {
		return Summary{}, err
	}
	tr, err := FitTrend(ys)
	if err != nil {
		return Summary{}, err
	}
	col := f.df.Col(key)
	return Summary{
		Field:  field,
		Latest: latest,
		Trend:  tr,
		Min:    col.Min(),
		Max:    col.Max(),
		Mean:   col.Mean(),
	}, nil
}
