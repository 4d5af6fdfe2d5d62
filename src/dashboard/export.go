package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
	"github.com/katehuntsman/cintel-05-cintel/src/plot"
)

// Export writes a static copy of the dashboard for mon's current state into
// dir, ready to publish with GitHub Pages. It returns the written file names.
func Export(dir string, mon *monitor.Monitor, opts ...Option) ([]string, error) {
	return NewServer(DefaultSettings(), mon, opts...).Export(dir)
}

// Export writes index.html (without the event stream), chart.svg, chart.png,
// snapshot.json, readings.csv, readings.xlsx and .nojekyll into dir.
func (s *Server) Export(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dashboard: create out dir: %w", err)
	}
	v, err := s.currentView()
	if err != nil {
		return nil, err
	}
	pngOpts := s.chartOpts
	if v.snap.Trend != nil && pngOpts.Hint == "" {
		pngOpts.Hint = plot.TrendHint(v.trend)
	}

	toWrite := []struct {
		name string
		fn   func(*bytes.Buffer) error
	}{
		{"index.html", func(b *bytes.Buffer) error { return renderIndex(b, s.settings, v.snap, true) }},
		{"chart.svg", func(b *bytes.Buffer) error { return plot.RenderSVG(b, v.frame, v.key, v.trend, s.chartOpts) }},
		{"chart.png", func(b *bytes.Buffer) error { return plot.RenderPNG(b, v.frame, v.key, v.trend, pngOpts) }},
		{"snapshot.json", func(b *bytes.Buffer) error {
			enc := json.NewEncoder(b)
			enc.SetIndent("", "  ")
			return enc.Encode(v.snap)
		}},
		{"readings.csv", func(b *bytes.Buffer) error { return v.frame.WriteCSV(b) }},
		{"readings.xlsx", func(b *bytes.Buffer) error { return v.frame.WriteXLSX(b) }},
		// GitHub Pages would otherwise run the folder through Jekyll
		{".nojekyll", func(*bytes.Buffer) error { return nil }},
	}

	written := make([]string, 0, len(toWrite))
	for _, item := range toWrite {
		var buf bytes.Buffer
		if err := item.fn(&buf); err != nil {
			return written, fmt.Errorf("dashboard: export %s: %w", item.name, err)
		}
		path := filepath.Join(dir, item.name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return written, fmt.Errorf("dashboard: write %s: %w", path, err)
		}
		written = append(written, item.name)
	}
	s.logger.Printf("dashboard: exported %d files to %s (seq=%d)", len(written), dir, v.snap.Seq)
	return written, nil
}
