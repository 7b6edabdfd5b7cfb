package askwarren

import "github.com/etnz/askwarren/chart"

// ChartKind selects how a series is drawn.
type ChartKind string

const (
	Bar  ChartKind = "bar"
	Line ChartKind = "line"
)

// ChartSpec describes one panel of the analysis report.
type ChartSpec struct {
	Metric    string // stable identifier used in URLs
	Title     string
	Unit      string
	Kind      ChartKind
	Color     string
	Benchmark *float64
	Points    []chart.MetricPoint
}

// ROICTarget is the return on invested capital a durable business should exceed.
const ROICTarget = 15.0

// ChartSpecs returns the report panels in display order. Empty series are skipped.
func ChartSpecs(c *FinancialCharts) []ChartSpec {
	if c == nil {
		return nil
	}
	roic := ROICTarget
	all := []ChartSpec{
		{Metric: "revenue", Title: "Umsatzentwicklung", Unit: "Mrd.", Kind: Bar, Color: "#3b82f6", Points: c.Revenue},
		{Metric: "margins", Title: "Netto-Gewinnmarge", Unit: "%", Kind: Line, Color: "#ec4899", Points: c.Margins},
		{Metric: "roic", Title: "Kapitalrendite (ROIC)", Unit: "%", Kind: Line, Color: "#10b981", Benchmark: &roic, Points: c.ROIC},
		{Metric: "stockPrice", Title: "Historischer Kursverlauf", Unit: "Währung", Kind: Line, Color: "#8b5cf6", Points: c.StockPrice},
	}
	specs := make([]ChartSpec, 0, len(all))
	for _, s := range all {
		if len(s.Points) > 0 {
			specs = append(specs, s)
		}
	}
	return specs
}

// ChartSpecFor returns the panel for metric.
func ChartSpecFor(c *FinancialCharts, metric string) (ChartSpec, bool) {
	for _, s := range ChartSpecs(c) {
		if s.Metric == metric {
			return s, true
		}
	}
	return ChartSpec{}, false
}

// Geometry lays out the panel on the standard canvas.
func (s ChartSpec) Geometry() (*chart.Geometry, error) {
	return chart.Map(chart.DefaultInput(s.Points, s.Benchmark))
}
