package main

import (
	"fmt"
	"image"
	"sync"

	"github.com/katehuntsman/cintel-05-cintel/src/analysis"
	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
	"github.com/katehuntsman/cintel-05-cintel/src/plot"
)

// viewState is what the window shows for one monitor update. It is built
// off the UI goroutine and handed over whole.
type viewState struct {
	seq       uint64
	valueText string
	clockText string
	trendText string
	header    []string
	rows      [][]string
	chart     image.Image
}

// stateBuilder turns updates into view states for one source.
type stateBuilder struct {
	src  monitor.Source
	opts plot.Options

	mu   sync.Mutex
	last viewState
}

func newStateBuilder(src monitor.Source, opts plot.Options) *stateBuilder {
	return &stateBuilder{src: src, opts: opts}
}

func (b *stateBuilder) build(u monitor.Update) (viewState, error) {
	fields := b.src.Fields()
	f, err := analysis.NewFrame(u.Readings, fields)
	if err != nil {
		return viewState{}, err
	}
	vs := viewState{
		seq:       u.Seq,
		valueText: "waiting for data",
		header:    f.Header(),
		rows:      f.Records(),
	}
	key := fields[0].Key
	var tr analysis.Trend
	if f.Len() > 0 {
		sum, err := analysis.Summarize(f, u.Latest, key)
		if err != nil {
			return viewState{}, err
		}
		tr = sum.Trend
		if v, ok := u.Latest.Value(key); ok {
			vs.valueText = sum.Field.Format(v)
		}
		vs.clockText = u.Latest.TimestampLabel()
		vs.trendText = fmt.Sprintf("Trend: %s (slope %+.3f, R² %.2f)", tr.Direction(), tr.Slope, tr.RSquared)
	}
	opts := b.opts
	if f.Len() > 0 {
		opts.Hint = plot.TrendHint(tr)
	}
	img, err := plot.RenderImage(f, key, tr, opts)
	if err != nil {
		return viewState{}, err
	}
	vs.chart = img

	b.mu.Lock()
	b.last = vs
	b.mu.Unlock()
	return vs, nil
}

func (b *stateBuilder) current() viewState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// cell returns the table text for (row, col); row 0 is the header.
func (vs viewState) cell(row, col int) string {
	if row == 0 {
		if col < len(vs.header) {
			return vs.header[col]
		}
		return ""
	}
	r := row - 1
	if r < 0 || r >= len(vs.rows) || col >= len(vs.rows[r]) {
		return ""
	}
	return vs.rows[r][col]
}

func (vs viewState) size() (int, int) {
	return len(vs.rows) + 1, len(vs.header)
}
