package plot

import (
	"math"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
)

// ComputeChartDimensions applies the width/height clamp rules used for charts.
// Input: desired raw width (e.g. browser card or window width). Returns clamped width & height.
func ComputeChartDimensions(rawW int) (int, int) {
	w := rawW
	if w < 480 {
		w = 480
	}
	if w > 1600 {
		w = 1600
	}
	h := int(float32(w) * 0.5)
	if h < 280 {
		h = 280
	}
	if h > 520 {
		h = 520
	}
	return w, h
}

// niceAxisBounds pads [min,max] by 5% and snaps outward to the span's power of ten.
func niceAxisBounds(min, max float64) (float64, float64) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return min, max
	}
	// a flat series still needs a visible band
	if max <= min {
		max = min + 1
	}
	span := max - min
	pad := span * 0.05
	a, b := min-pad, max+pad
	mag := math.Pow(10, math.Floor(math.Log10(span)))
	if !math.IsInf(mag, 0) && mag > 0 {
		a = math.Floor(a/mag) * mag
		b = math.Ceil(b/mag) * mag
	}
	return a, b
}

// tickSteps are the multipliers tried at each power of ten.
var tickSteps = []float64{1, 2, 2.5, 5, 10}

// niceTicks returns about n ticks over [min,max]. Labels carry no more
// decimals than the field is displayed with; decimals < 0 means no cap.
func niceTicks(min, max float64, n, decimals int) []chart.Tick {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	step, best := mag, math.MaxFloat64
	for _, c := range tickSteps {
		count := math.Max(2, math.Ceil(span/(c*mag)))
		if score := math.Abs(count - float64(n)); score < best {
			step, best = c*mag, score
		}
	}
	prec := tickDecimals(step, decimals)
	ticks := []chart.Tick{}
	end := math.Ceil(max/step) * step
	for v := math.Floor(min/step) * step; v <= end+step/2 && len(ticks) <= n+2; v += step {
		v = round6(v)
		ticks = append(ticks, chart.Tick{Value: v, Label: formatTick(v, prec)})
	}
	return ticks
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

// tickDecimals is the precision a tick step needs (2.5 needs one more digit
// than 2 or 5), capped at the field's display decimals.
func tickDecimals(step float64, decimals int) int {
	d := 0
	if step < 1 {
		d = int(math.Ceil(-math.Log10(step) - 1e-9))
	}
	if frac := step / math.Pow(10, float64(-d)); math.Abs(frac-math.Round(frac)) > 1e-6 {
		d++
	}
	if decimals >= 0 && d > decimals {
		d = decimals
	}
	return d
}

func formatTick(v float64, prec int) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// pickTimeStep selects a readable step and label format for a given time span.
// The live window is short (a handful of readings a few seconds apart) so the
// fine-grained steps matter most.
func pickTimeStep(span time.Duration) (time.Duration, string) {
	switch {
	case span <= 10*time.Second:
		return 2 * time.Second, "15:04:05"
	case span <= 30*time.Second:
		return 5 * time.Second, "15:04:05"
	case span <= 2*time.Minute:
		return 10 * time.Second, "15:04:05"
	case span <= 10*time.Minute:
		return 1 * time.Minute, "15:04"
	case span <= 30*time.Minute:
		return 5 * time.Minute, "15:04"
	case span <= 2*time.Hour:
		return 10 * time.Minute, "15:04"
	case span <= 24*time.Hour:
		return 1 * time.Hour, "Jan 2 15:04"
	default:
		return 24 * time.Hour, "Jan 2"
	}
}

// makeNiceTimeTicks returns rounded ticks between min and max at the given step.
// Labels use the location of minT so the axis matches the date/time card.
func makeNiceTimeTicks(minT, maxT time.Time, step time.Duration, labelFmt string) []chart.Tick {
	if step <= 0 {
		return nil
	}
	loc := minT.Location()
	st := int64(step.Seconds())
	if st <= 0 {
		st = 1
	}
	aligned := time.Unix((minT.Unix()/st)*st, 0).In(loc)
	ticks := []chart.Tick{}
	for t := aligned; !t.After(maxT.Add(step)); t = t.Add(step) {
		ticks = append(ticks, chart.Tick{Value: chart.TimeToFloat64(t), Label: t.Format(labelFmt)})
		if len(ticks) > 20 {
			break
		}
	}
	return ticks
}

// timeAxisRange spans the tick set (or pads a zero-width span by one step).
func timeAxisRange(minT, maxT time.Time, step time.Duration, ticks []chart.Tick) *chart.ContinuousRange {
	minF := chart.TimeToFloat64(minT)
	maxF := chart.TimeToFloat64(maxT)
	if len(ticks) > 0 {
		minF = math.Min(minF, ticks[0].Value)
		maxF = math.Max(maxF, ticks[len(ticks)-1].Value)
	}
	if maxF <= minF {
		// TimeToFloat64 is in nanoseconds
		maxF = minF + float64(step)
		if maxF <= minF {
			maxF = minF + float64(time.Second)
		}
	}
	return &chart.ContinuousRange{Min: minF, Max: maxF}
}
