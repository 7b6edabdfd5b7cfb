package renderer

import (
	"io"
	"strconv"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/chart"
)

type svgView struct {
	Spec        askwarren.ChartSpec
	G           *chart.Geometry
	Bars        []chart.Bar
	Left, Right float64 // plot area edges
	LabelY      float64 // baseline of the x axis labels
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

// ChartSVG writes the panel as a standalone SVG document.
func ChartSVG(w io.Writer, spec askwarren.ChartSpec) error {
	g, err := spec.Geometry()
	if err != nil {
		return err
	}
	in := g.Input
	v := svgView{
		Spec:   spec,
		G:      g,
		Left:   in.PaddingX,
		Right:  in.Width - in.PaddingX,
		LabelY: in.Height - in.PaddingY + 20,
	}
	if spec.Kind == askwarren.Bar {
		v.Bars = g.Bars()
	}
	return executeTemplate(w, "chart", "chart.svg", nil, v)
}
