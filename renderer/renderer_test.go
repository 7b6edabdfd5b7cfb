package renderer

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/chart"
	"github.com/xuri/excelize/v2"
)

func init() { Location = time.UTC }

var noon = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC).UnixMilli()

var sample = &askwarren.AnalysisResponse{
	Query: "Coca-Cola",
	Text:  "1️⃣ Geschäftsmodell\nGetränke mit **starker** Marke.\n\n🔮 Urteil des Orakels von Omaha\n✅ Langfristig attraktiv\nBegründung.",
	Sources: []askwarren.GroundingChunk{
		{Web: &askwarren.WebSource{URI: "https://investors.coca-colacompany.com", Title: "Coca-Cola IR"}},
	},
	Charts: &askwarren.FinancialCharts{
		Revenue: []chart.MetricPoint{{Label: "2022", Value: 43}, {Label: "2023", Value: 45.8}},
		ROIC:    []chart.MetricPoint{{Label: "2022", Value: 12}, {Label: "2023", Value: 18.25}},
	},
}

func TestRenderAnalysis(t *testing.T) {
	got := RenderAnalysis(sample)
	for _, want := range []string{
		"# Analyse: Coca-Cola\n",
		"**Urteil:** ✅ Langfristig attraktiv\n",
		"Getränke mit **starker** Marke.",
		"## Umsatzentwicklung (Mrd.)",
		"| 2023 | 45.8 |",
		"## Kapitalrendite (ROIC) (%)",
		"| 2023 | 18.25 |",
		"Zielwert: 15 %",
		"- [Coca-Cola IR](https://investors.coca-colacompany.com)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderAnalysis() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Netto-Gewinnmarge") {
		t.Errorf("empty series must not be rendered")
	}
	if strings.Contains(got, "error") {
		t.Errorf("template error: %s", got)
	}

	bare := RenderAnalysis(&askwarren.AnalysisResponse{Query: "X", Text: "kein Urteil"})
	if strings.Contains(bare, "Quellen") || !strings.Contains(bare, "**Urteil:** Unbekannt") {
		t.Errorf("unexpected bare analysis:\n%s", bare)
	}
}

func TestRenderWatchlist(t *testing.T) {
	if got := RenderWatchlist(nil); !strings.Contains(got, "Ihre Watchlist ist leer.") {
		t.Errorf("RenderWatchlist(nil) = %q", got)
	}
	got := RenderWatchlist([]askwarren.WatchlistItem{
		{Query: "Apple", Verdict: string(askwarren.Patience), Timestamp: noon},
		{Query: "A|B", Verdict: string(askwarren.TooHard), Timestamp: noon},
	})
	for _, want := range []string{
		"| ⚖️ | Apple | ⚖️ Beobachten, Geduld erforderlich | 05.03.2024 |",
		`| 📦 | A\|B |`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderWatchlist() missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderTicker(t *testing.T) {
	got := RenderTicker(Ticker{
		Quotes: []askwarren.TickerInfo{
			{Name: "DAX", Symbol: "GDAXI", Price: "18.000", Change: "-0,1%", IsUp: false},
			{Name: "Apple", Symbol: "AAPL", Price: "190,00", Change: "+1,2%", IsUp: true},
		},
		Sources: []askwarren.GroundingChunk{{Web: &askwarren.WebSource{URI: "https://a", Title: "A"}}},
	})
	for _, want := range []string{"| DAX | GDAXI | 18.000 | ▼ -0,1% |", "| Apple | AAPL | 190,00 | ▲ +1,2% |", "Quellen: [A](https://a)"} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderTicker() missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderVault(t *testing.T) {
	got := RenderVault(Vault{
		Files: []askwarren.FileRecord{{Name: "bericht.pdf", Size: 1536, Type: "application/pdf", Timestamp: noon, Note: "wichtig", AISummary: "Starke Marke."}},
		Used:  1536,
		Limit: askwarren.StorageLimit,
	})
	for _, want := range []string{"Speicher: 1.5 KB von 5 GB", "## bericht.pdf", "1.5 KB · application/pdf · 05.03.2024", "> wichtig", "Starke Marke."} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderVault() missing %q in:\n%s", want, got)
		}
	}
	if got := RenderVault(Vault{Limit: askwarren.StorageLimit}); !strings.Contains(got, "Noch keine Dokumente.") {
		t.Errorf("empty vault = %q", got)
	}
}

func TestChartSVG(t *testing.T) {
	specs := askwarren.ChartSpecs(sample.Charts)
	if len(specs) != 2 {
		t.Fatalf("len(specs) = %d, want 2", len(specs))
	}
	for _, spec := range specs {
		t.Run(spec.Metric, func(t *testing.T) {
			var buf bytes.Buffer
			if err := ChartSVG(&buf, spec); err != nil {
				t.Fatalf("ChartSVG() unexpected error: %v", err)
			}
			// the document must be well formed XML
			d := xml.NewDecoder(bytes.NewReader(buf.Bytes()))
			for {
				_, err := d.Token()
				if err != nil {
					if err != io.EOF {
						t.Fatalf("invalid svg: %v\n%s", err, buf.String())
					}
					break
				}
			}
			svg := buf.String()
			if got := strings.Count(svg, "<rect"); spec.Kind == askwarren.Bar && got != 2 {
				t.Errorf("bars = %d, want 2", got)
			}
			if spec.Kind == askwarren.Line && !strings.Contains(svg, `<path d="M 45 `) {
				t.Errorf("line path missing:\n%s", svg)
			}
			if got := strings.Contains(svg, `class="benchmark"`); got != (spec.Benchmark != nil) {
				t.Errorf("benchmark drawn = %v", got)
			}
			if !strings.Contains(svg, ">2023</text>") {
				t.Errorf("x labels missing")
			}
		})
	}

	if err := ChartSVG(&bytes.Buffer{}, askwarren.ChartSpec{Metric: "empty"}); err == nil {
		t.Errorf("ChartSVG(empty) should fail")
	}
}

func TestAnalysisPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := AnalysisPDF(&buf, sample); err != nil {
		t.Fatalf("AnalysisPDF() unexpected error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("output is not a pdf")
	}

	buf.Reset()
	if err := AnalysisPDF(&buf, &askwarren.AnalysisResponse{Query: "X", Text: "- eins\n- zwei\n\n---\n*kursiv*"}); err != nil {
		t.Fatalf("AnalysisPDF(no charts) unexpected error: %v", err)
	}
}

func TestWinLatin(t *testing.T) {
	testCases := map[string]string{
		"Geschäftsmodell":         "Geschäftsmodell",
		"„Zitat“ – 5 €":           "„Zitat“ – 5 €",
		"✅ Langfristig attraktiv": "Langfristig attraktiv",
		"📦 Too-Hard-Pile":         "Too-Hard-Pile",
	}
	for in, want := range testCases {
		if got := winLatin(in); got != want {
			t.Errorf("winLatin(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWatchlistXLSX(t *testing.T) {
	var buf bytes.Buffer
	items := []askwarren.WatchlistItem{{Query: "Apple", Verdict: string(askwarren.Attractive), Timestamp: noon}}
	if err := WatchlistXLSX(&buf, items); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("Watchlist")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"Unternehmen", "Urteil", "Analysiert am"}, {"Apple", string(askwarren.Attractive), "05.03.2024"}}
	if len(rows) != 2 || strings.Join(rows[1], "|") != strings.Join(want[1], "|") || strings.Join(rows[0], "|") != strings.Join(want[0], "|") {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestAnalysisXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := AnalysisXLSX(&buf, sample); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("Analyse", "B2"); got != "✅ Langfristig attraktiv" {
		t.Errorf("verdict cell = %q", got)
	}
	if got, _ := f.GetCellValue("Analyse", "C3"); got != "https://investors.coca-colacompany.com" {
		t.Errorf("source cell = %q", got)
	}
	rows, err := f.GetRows("Umsatzentwicklung")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[2][0] != "2023" || rows[2][1] != "45.8" {
		t.Errorf("revenue rows = %v", rows)
	}
	if got := f.GetSheetList(); len(got) != 3 {
		t.Errorf("sheets = %v, want Analyse and two charts", got)
	}
}
