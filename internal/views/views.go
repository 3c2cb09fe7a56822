// Package views holds the embedded dashboard page templates and assets.
package views

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tokyotraffic/tokyotraffic/internal/dashboard"
	"github.com/tokyotraffic/tokyotraffic/internal/render"
)

// PageTemplate is the name of the dashboard page template.
const PageTemplate = "dashboard"

//go:embed templates/*.gohtml
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Page is the data the dashboard page template draws.
type Page struct {
	Title           string
	Clock           string
	ChartLibraryURL string
	MapLibraryURL   string
	View            *dashboard.View

	// PollAttempts and PollInterval bound how long the page waits for the
	// chart library before showing the standby drawing.
	PollAttempts int
	PollInterval time.Duration

	// ResizeDebounce is the quiet period before maps recompute their size.
	ResizeDebounce time.Duration
}

// MapStyleURL is the stylesheet shipped next to the map library script.
func (p Page) MapStyleURL() string {
	if !strings.HasSuffix(p.MapLibraryURL, ".js") {
		return ""
	}
	return strings.TrimSuffix(p.MapLibraryURL, ".js") + ".css"
}

// chartPayload is the JSON handed to the chart library for one region.
type chartPayload struct {
	Config   *render.ChartConfig `json:"config"`
	Tooltips []string            `json:"tooltips"`
}

var funcs = template.FuncMap{
	"chartPayload": func(c *render.ChartConfig) chartPayload {
		return chartPayload{Config: c, Tooltips: c.Tooltips}
	},
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
	// pct formats a plot position; values come from the renderer, not the feed
	"pct": func(v float64) template.CSS {
		return template.CSS(strconv.FormatFloat(v, 'f', 2, 64) + "%")
	},
}

// Parse parses the embedded page templates.
func Parse() (*template.Template, error) {
	return template.New(PageTemplate).Funcs(funcs).ParseFS(templateFS, "templates/*.gohtml")
}

// Static serves the embedded scripts and styles, to be mounted under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// the embed pattern guarantees the directory exists
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
