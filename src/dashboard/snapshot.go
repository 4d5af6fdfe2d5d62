package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/katehuntsman/cintel-05-cintel/src/analysis"
	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

// Snapshot is the JSON body of /api/snapshot and of every SSE event. It
// carries both raw values and the display strings the page swaps in.
type Snapshot struct {
	Seq      uint64            `json:"seq"`
	Source   string            `json:"source"`
	Latest   *monitor.Reading  `json:"latest,omitempty"`
	Readings []monitor.Reading `json:"readings"`
	Trend    *analysis.Trend   `json:"trend,omitempty"`
	Fields   []monitor.Field   `json:"fields"`

	ValueText   string     `json:"value_text"`
	Caption     string     `json:"caption"`
	DateTime    string     `json:"datetime"`
	Header      []string   `json:"header"`
	Rows        [][]string `json:"rows"`
	TrendText   string     `json:"trend_text"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// view bundles a snapshot with the frame it was computed from so the chart
// and table handlers do not rebuild it.
type view struct {
	snap  Snapshot
	frame *analysis.Frame
	key   string
	trend analysis.Trend
}

func primaryField(fields []monitor.Field) monitor.Field {
	if len(fields) == 0 {
		return monitor.Field{Key: "temp", Label: "Temperature", Unit: "°C", Decimals: 1}
	}
	return fields[0]
}

func buildView(src monitor.Source, u monitor.Update, now time.Time) (view, error) {
	fields := src.Fields()
	primary := primaryField(fields)
	f, err := analysis.NewFrame(u.Readings, fields)
	if err != nil {
		return view{}, fmt.Errorf("dashboard: frame: %w", err)
	}
	snap := Snapshot{
		Seq:         u.Seq,
		Source:      src.Name(),
		Readings:    u.Readings,
		Fields:      fields,
		Header:      f.Header(),
		Rows:        f.Records(),
		DateTime:    now.Format(monitor.TimestampLayout),
		GeneratedAt: now,
		ValueText:   "waiting for data",
		Caption:     captionFor(src.Name(), "warming up"),
	}
	if snap.Readings == nil {
		snap.Readings = []monitor.Reading{}
	}
	if snap.Rows == nil {
		snap.Rows = [][]string{}
	}
	v := view{frame: f, key: primary.Key}
	if u.Seq == 0 || f.Len() == 0 {
		v.snap = snap
		return v, nil
	}

	latest := u.Latest
	snap.Latest = &latest
	// the card follows the newest reading, not the render time
	snap.DateTime = latest.TimestampLabel()
	sum, err := analysis.Summarize(f, latest, primary.Key)
	if err != nil && !errors.Is(err, analysis.ErrNoData) {
		return view{}, fmt.Errorf("dashboard: summarize: %w", err)
	}
	if err == nil {
		tr := sum.Trend
		snap.Trend = &tr
		v.trend = tr
		snap.TrendText = fmt.Sprintf("%s over the last %d readings (slope %+.3f, R² %.2f)",
			tr.Direction(), tr.N, tr.Slope, tr.RSquared)
		snap.Caption = captionFor(src.Name(), tr.Direction())
	}
	if val, ok := latest.Value(primary.Key); ok {
		snap.ValueText = primary.Format(val)
	}
	v.snap = snap
	return v, nil
}

func captionFor(source, direction string) string {
	if source == "stock" {
		return "Current price, " + direction
	}
	return "Current temperature, " + direction
}
