package dashboard

import (
	_ "embed"
	"html/template"
	"io"
	"strings"

	"github.com/katehuntsman/cintel-05-cintel/src/icons"
)

//go:embed index.gohtml
var index string

var indexTmpl = template.Must(template.New("dashboard/index.gohtml").Funcs(template.FuncMap{
	"icon":     icons.MustSVG,
	"linkIcon": linkIcon,
}).Parse(index))

type indexContext struct {
	Title     string
	Links     []Link
	ValueIcon string
	Snap      Snapshot
	// Static pages are exported snapshots: no event stream, relative asset URLs.
	Static   bool
	ChartURL string
	CSVURL   string
	XLSXURL  string
}

func valueIcon(source string) string {
	if source == "stock" {
		return "chart-line"
	}
	return "sun"
}

func linkIcon(url string) string {
	if strings.Contains(url, "github") {
		return "github"
	}
	return "chart-line"
}

func renderIndex(w io.Writer, s Settings, snap Snapshot, static bool) error {
	ctx := indexContext{
		Title:     s.Title,
		Links:     s.Links,
		ValueIcon: valueIcon(snap.Source),
		Snap:      snap,
		Static:    static,
		ChartURL:  "/chart.svg",
		CSVURL:    "/api/readings.csv",
		XLSXURL:   "/api/readings.xlsx",
	}
	if static {
		ctx.ChartURL = "chart.svg"
		ctx.CSVURL = "readings.csv"
		ctx.XLSXURL = "readings.xlsx"
	}
	return indexTmpl.Execute(w, ctx)
}
