package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/etnz/askwarren"
	"github.com/go-pdf/fpdf"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const (
	pageMargin = 15.0
	pageWidth  = 210.0 - 2*pageMargin
	lineHeight = 5.0
	// chartScale maps the chart canvas onto the page width, in mm per pixel.
	chartScale = pageWidth / 400
)

// AnalysisPDF writes the analysis report: sections, key figure charts and sources.
func AnalysisPDF(w io.Writer, a *askwarren.AnalysisResponse) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	r := &pdfRenderer{pdf: pdf, tr: func(s string) string { return tr(winLatin(s)) }, font: "Helvetica", size: 10}

	pdf.SetTitle(r.tr("Analyse: "+a.Query), false)
	pdf.SetAuthor("Ask Warren", false)
	pdf.AddPage()

	pdf.SetFont(r.font, "B", 18)
	pdf.MultiCell(0, 9, r.tr("Analyse: "+a.Query), "", "L", false)
	pdf.SetFont(r.font, "", 11)
	pdf.SetTextColor(71, 85, 105)
	pdf.MultiCell(0, 6, r.tr("Urteil: "+askwarren.ExtractVerdict(a.Text)), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))
	for _, section := range askwarren.SplitSections(a.Text) {
		title, body := askwarren.CutSection(section)
		if askwarren.IsVerdictSection(section) {
			pdf.SetFillColor(241, 245, 249)
		}
		if title != "" {
			r.heading(title)
		}
		r.markdown(md, body)
		pdf.SetFillColor(255, 255, 255)
	}

	for _, spec := range askwarren.ChartSpecs(a.Charts) {
		if err := r.chart(spec); err != nil {
			return fmt.Errorf("cannot draw %s chart: %w", spec.Metric, err)
		}
	}

	if len(a.Sources) > 0 {
		r.heading("Quellen")
		pdf.SetFont(r.font, "", 8)
		for _, s := range a.Sources {
			if s.Web == nil {
				continue
			}
			pdf.SetTextColor(37, 99, 235)
			pdf.WriteLinkString(4, r.tr("- "+s.Web.Title), s.Web.URI)
			pdf.Ln(4)
		}
		pdf.SetTextColor(0, 0, 0)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("cannot write pdf: %w", err)
	}
	return nil
}

// winLatin drops the characters the core PDF fonts cannot show, emojis mostly.
func winLatin(s string) string {
	return strings.TrimLeft(strings.Map(func(r rune) rune {
		if r < 0x100 || strings.ContainsRune("€‚ƒ„…†‡ˆ‰Š‹ŒŽ‘’“”•–—˜™š›œžŸ", r) {
			return r
		}
		return -1
	}, s), " ")
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	tr        func(string) string
	source    []byte
	font      string
	size      float64
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(r.font, style, r.size)
}

func (r *pdfRenderer) heading(s string) {
	r.pdf.Ln(3)
	r.pdf.SetFont(r.font, "B", 13)
	r.pdf.MultiCell(0, 7, r.tr(strings.TrimSpace(s)), "", "L", true)
	r.pdf.Ln(1)
	r.updateFont()
}

func (r *pdfRenderer) markdown(md goldmark.Markdown, s string) {
	r.source = []byte(s)
	doc := md.Parser().Parse(text.NewReader(r.source))
	// walk never fails: every handler returns a nil error.
	_ = ast.Walk(doc, r.walk)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(2)
			r.pdf.SetFont(r.font, "B", 14-float64(n.Level))
		} else {
			r.pdf.Ln(lineHeight + 1)
			r.updateFont()
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(lineHeight + 2)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(lineHeight, r.tr(string(n.Segment.Value(r.source))))
			if n.SoftLineBreak() {
				r.pdf.Write(lineHeight, " ")
			}
			if n.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			}
		}
	case *ast.Emphasis:
		if n.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.List:
		if entering {
			r.listLevel++
		} else if r.listLevel--; r.listLevel == 0 {
			r.pdf.Ln(2)
		}
	case *ast.ListItem:
		if entering {
			r.pdf.SetX(pageMargin + float64(r.listLevel)*5)
			r.pdf.Write(lineHeight, "- ")
		}
	case *ast.TextBlock:
		if !entering {
			r.pdf.Ln(lineHeight)
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(pageMargin, r.pdf.GetY(), pageMargin+pageWidth, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

// rgb converts a "#rrggbb" color.
func rgb(hex string) (int, int, int) {
	c := drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
	return int(c.R), int(c.G), int(c.B)
}

// chart draws the panel from the same geometry as the SVG charts.
func (r *pdfRenderer) chart(spec askwarren.ChartSpec) error {
	g, err := spec.Geometry()
	if err != nil {
		return err
	}
	pdf := r.pdf
	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+g.Input.Height*chartScale+12 > pageHeight-pageMargin {
		pdf.AddPage()
	}
	r.heading(spec.Title + " (" + spec.Unit + ")")

	x0, y0 := pageMargin, pdf.GetY()
	px := func(x float64) float64 { return x0 + x*chartScale }
	py := func(y float64) float64 { return y0 + y*chartScale }
	left, right := px(g.Input.PaddingX), px(g.Input.Width-g.Input.PaddingX)

	pdf.SetFont(r.font, "", 7)
	pdf.SetLineWidth(0.2)
	pdf.SetDrawColor(226, 232, 240)
	pdf.SetDashPattern([]float64{1, 1}, 0)
	for _, gl := range g.GridLines {
		pdf.Line(left, py(gl.Y), right, py(gl.Y))
		pdf.Text(left-2-pdf.GetStringWidth(gl.Label), py(gl.Y)+1, gl.Label)
	}
	pdf.SetDashPattern([]float64{}, 0)

	if g.BenchmarkY != nil {
		pdf.SetDrawColor(rgb("#10b981"))
		pdf.SetLineWidth(0.4)
		pdf.SetDashPattern([]float64{2, 1}, 0)
		pdf.Line(left, py(*g.BenchmarkY), right, py(*g.BenchmarkY))
		pdf.SetDashPattern([]float64{}, 0)
		label := r.tr(fmt.Sprintf("Ziel: %s%s", tick(*spec.Benchmark), spec.Unit))
		pdf.Text(right-pdf.GetStringWidth(label), py(*g.BenchmarkY)-1, label)
	}

	pdf.SetDrawColor(rgb(spec.Color))
	pdf.SetFillColor(rgb(spec.Color))
	if spec.Kind == askwarren.Bar {
		for _, b := range g.Bars() {
			pdf.Rect(px(b.X), py(b.Y), b.Width*chartScale, b.Height*chartScale, "F")
		}
	} else {
		pdf.SetLineWidth(0.8)
		for i := 1; i < len(g.Points); i++ {
			a, b := g.Points[i-1], g.Points[i]
			pdf.Line(px(a.X), py(a.Y), px(b.X), py(b.Y))
		}
		for _, p := range g.Points {
			pdf.Circle(px(p.X), py(p.Y), 0.9, "F")
		}
	}

	pdf.SetLineWidth(0.2)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetFillColor(255, 255, 255)
	labelY := py(g.Input.Height - g.Input.PaddingY + 12)
	for _, p := range g.Points {
		l := r.tr(p.Source.Label)
		pdf.Text(px(p.X)-pdf.GetStringWidth(l)/2, labelY, l)
	}
	pdf.SetY(y0 + g.Input.Height*chartScale)
	r.updateFont()
	return pdf.Error()
}
