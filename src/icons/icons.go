// Package icons serves the small inline SVG icon set used by the dashboard
// page and the static export.
package icons

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"sort"
	"strings"
)

//go:embed svg/*.svg
var files embed.FS

// ErrUnknownIcon is returned for names that have no embedded SVG.
var ErrUnknownIcon = errors.New("unknown icon")

// SVG returns the named icon as inline markup.
func SVG(name string) (template.HTML, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return "", fmt.Errorf("icons: %q: %w", name, ErrUnknownIcon)
	}
	b, err := files.ReadFile("svg/" + name + ".svg")
	if err != nil {
		return "", fmt.Errorf("icons: %q: %w", name, ErrUnknownIcon)
	}
	// embedded assets are trusted markup
	return template.HTML(strings.TrimSpace(string(b))), nil
}

// MustSVG is SVG for template helpers; unknown names render nothing.
func MustSVG(name string) template.HTML {
	h, err := SVG(name)
	if err != nil {
		return ""
	}
	return h
}

// Names lists the available icons in sorted order.
func Names() []string {
	entries, err := fs.ReadDir(files, "svg")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".svg"))
	}
	sort.Strings(out)
	return out
}
