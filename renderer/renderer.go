// Package renderer turns analyses, watchlists, tickers and vault listings into
// markdown, charts into SVG, and exports reports as PDF and XLSX.
package renderer

import (
	"embed"
	"fmt"
	"html"
	"io"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"github.com/etnz/askwarren"
)

//go:embed templates/*
var embedded embed.FS

var templates, _ = fs.Sub(embedded, "templates")

// Location is the time zone dates are printed in.
var Location = time.Local

var funcs = template.FuncMap{
	"date":  FormatDate,
	"bytes": askwarren.FormatBytes,
	"icon":  askwarren.VerdictIcon,
	"tick":  tick,
	"xml":   html.EscapeString,
	"cell":  cell,
	"num":   num,
	"sub":   func(a, b float64) float64 { return a - b },
	"deref": func(f *float64) float64 { return *f },
}

// FormatDate prints a unix milliseconds timestamp as dd.mm.yyyy.
func FormatDate(ms int64) string {
	return time.UnixMilli(ms).In(Location).Format("02.01.2006")
}

// tick formats a series value for tables.
func tick(v float64) string { return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".") }

// cell escapes a value for a markdown table cell.
func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

// RenderAnalysis renders an analysis with its key figures and sources.
func RenderAnalysis(a *askwarren.AnalysisResponse) string {
	partials := map[string]string{
		"analysis_charts":  "analysis_charts.md",
		"analysis_sources": "analysis_sources.md",
	}
	if len(a.Sources) == 0 {
		partials["analysis_sources"] = ""
	}
	return renderTemplate("analysis", "analysis.md", partials, analysisView{a, askwarren.ExtractVerdict(a.Text), askwarren.ChartSpecs(a.Charts)})
}

type analysisView struct {
	*askwarren.AnalysisResponse
	Verdict string
	Charts  []askwarren.ChartSpec
}

// RenderWatchlist renders the saved analyses in the given order.
func RenderWatchlist(items []askwarren.WatchlistItem) string {
	return renderTemplate("watchlist", "watchlist.md", nil, items)
}

// Ticker is the market overview.
type Ticker struct {
	Quotes  []askwarren.TickerInfo
	Sources []askwarren.GroundingChunk
}

// RenderTicker renders the market overview.
func RenderTicker(t Ticker) string {
	return renderTemplate("ticker", "ticker.md", nil, t)
}

// Vault is a user's document listing.
type Vault struct {
	Files []askwarren.FileRecord
	Used  int64
	Limit int64
}

// RenderVault renders the documents of a vault and its usage.
func RenderVault(v Vault) string {
	return renderTemplate("vault", "vault.md", nil, v)
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	var b strings.Builder
	if err := executeTemplate(&b, templateName, mainFile, partials, data); err != nil {
		return err.Error()
	}
	return b.String()
}

func executeTemplate(w io.Writer, templateName, mainFile string, partials map[string]string, data any) error {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Errorf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Errorf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		// An empty file name is a valid case, resulting in an empty template.
		if file != "" {
			content, err = fs.ReadFile(templates, file)
			if err != nil {
				return fmt.Errorf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	if err := tmpl.ExecuteTemplate(w, templateName, data); err != nil {
		return fmt.Errorf("error executing template %q: %v", templateName, err)
	}
	return nil
}
