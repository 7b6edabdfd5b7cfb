// Package chart maps a financial metric series onto a rectangular pixel canvas.
//
// The mapping is pure: the same Input always yields the same Geometry, nothing
// is cached and no state is shared, so Map can be called concurrently from any
// number of renderers.
package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MetricPoint is one observation of a series, typically a fiscal year and its value.
type MetricPoint struct {
	Label string  `json:"year"`
	Value float64 `json:"value"`
}

// headroom is applied above the largest value, and below the smallest negative one.
const headroom = 1.2

// GridFractions are the positions of the horizontal grid lines, as fractions of the range.
var GridFractions = []float64{0, 0.25, 0.5, 0.75, 1}

// Range is the value interval mapped onto the vertical pixel axis.
type Range struct {
	Min  float64
	Max  float64
	Span float64
}

// Contains reports whether v is inside the range, bounds included.
func (r Range) Contains(v float64) bool { return r.Min <= v && v <= r.Max }

// InvalidSeriesError is returned when the mapper is called without any point.
type InvalidSeriesError struct{}

func (InvalidSeriesError) Error() string { return "chart: empty series" }

// DegenerateRangeError is returned when the computed span is not strictly positive.
type DegenerateRangeError struct {
	Range Range
}

func (e DegenerateRangeError) Error() string {
	return fmt.Sprintf("chart: degenerate range [%v, %v]", e.Range.Min, e.Range.Max)
}

// ComputeRange returns the value range covering all points, the benchmark if
// any, and zero. Non-negative series are floored at exactly 0.
func ComputeRange(points []MetricPoint, benchmark *float64) (Range, error) {
	if len(points) == 0 {
		return Range{}, InvalidSeriesError{}
	}
	rawMax, rawMin := 1.0, 0.0
	for _, p := range points {
		rawMax = math.Max(rawMax, p.Value)
		rawMin = math.Min(rawMin, p.Value)
	}
	if benchmark != nil {
		rawMax = math.Max(rawMax, *benchmark)
		rawMin = math.Min(rawMin, *benchmark)
	}

	r := Range{Max: rawMax * headroom}
	if rawMin < 0 {
		r.Min = rawMin * headroom
	}
	r.Span = r.Max - r.Min
	// NaN compares false, so a NaN span is caught here too.
	if !(r.Span > 0) || math.IsInf(r.Span, 0) {
		return r, DegenerateRangeError{Range: r}
	}
	return r, nil
}

// PixelX returns the horizontal position of the point at index among count points.
// A single point sits on the left padding edge.
func PixelX(index, count int, width, paddingX float64) float64 {
	if count <= 1 {
		return paddingX
	}
	return paddingX + float64(index)*(width-2*paddingX)/float64(count-1)
}

// PixelY returns the vertical position of value. Higher values get smaller Y.
func PixelY(value float64, r Range, height, paddingY float64) float64 {
	return height - paddingY - (value-r.Min)/r.Span*(height-2*paddingY)
}

// FormatTick formats a grid line value: thousands get a "k" suffix, small
// non-zero values keep one decimal, everything else is rounded to an integer.
func FormatTick(v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 1000:
		return strconv.FormatFloat(v/1000, 'f', 1, 64) + "k"
	case a > 0 && a < 10:
		return strconv.FormatFloat(v, 'f', 1, 64)
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}

// Input is everything needed to lay out one chart.
type Input struct {
	Points    []MetricPoint
	Width     float64
	Height    float64
	PaddingX  float64
	PaddingY  float64
	Benchmark *float64 // optional reference value
}

// DefaultInput returns an Input using the standard 400x240 canvas.
func DefaultInput(points []MetricPoint, benchmark *float64) Input {
	return Input{
		Points:    points,
		Width:     400,
		Height:    240,
		PaddingX:  45,
		PaddingY:  40,
		Benchmark: benchmark,
	}
}

// GridLine is a horizontal reference line.
type GridLine struct {
	Y     float64
	Value float64
	Label string
}

// PointPixel is a data point placed on the canvas.
type PointPixel struct {
	X, Y   float64
	Source MetricPoint
}

// Bar is the rectangle drawn for one point in a bar chart.
type Bar struct {
	X, Y          float64 // top left corner
	Width, Height float64
}

// Geometry holds every plotting primitive of a chart.
type Geometry struct {
	Input     Input
	Range     Range
	GridLines []GridLine
	Points    []PointPixel
	// BenchmarkY is nil when there is no benchmark or it falls outside the range.
	BenchmarkY *float64
	ZeroY      float64
}

// Map computes the geometry of in. It either returns a complete geometry or an error.
func Map(in Input) (*Geometry, error) {
	r, err := ComputeRange(in.Points, in.Benchmark)
	if err != nil {
		return nil, err
	}
	g := &Geometry{
		Input: in,
		Range: r,
		ZeroY: PixelY(0, r, in.Height, in.PaddingY),
	}

	g.GridLines = make([]GridLine, len(GridFractions))
	for i, p := range GridFractions {
		v := r.Min + p*r.Span
		g.GridLines[i] = GridLine{
			Y:     PixelY(v, r, in.Height, in.PaddingY),
			Value: v,
			Label: FormatTick(v),
		}
	}

	if in.Benchmark != nil && r.Contains(*in.Benchmark) {
		y := PixelY(*in.Benchmark, r, in.Height, in.PaddingY)
		g.BenchmarkY = &y
	}

	g.Points = make([]PointPixel, len(in.Points))
	for i, p := range in.Points {
		g.Points[i] = PointPixel{
			X:      PixelX(i, len(in.Points), in.Width, in.PaddingX),
			Y:      PixelY(p.Value, r, in.Height, in.PaddingY),
			Source: p,
		}
	}
	return g, nil
}

// BarWidth is half of the horizontal slot available to each point.
func (g *Geometry) BarWidth() float64 {
	return (g.Input.Width - 2*g.Input.PaddingX) / float64(len(g.Points)) * 0.5
}

// Bars returns one rectangle per point, growing up or down from the zero line.
func (g *Geometry) Bars() []Bar {
	w := g.BarWidth()
	bars := make([]Bar, len(g.Points))
	for i, p := range g.Points {
		bars[i] = Bar{
			X:      p.X - w/2,
			Y:      math.Min(p.Y, g.ZeroY),
			Width:  w,
			Height: math.Abs(g.ZeroY - p.Y),
		}
	}
	return bars
}

// LinePath returns the SVG path data of the polyline joining the points.
func (g *Geometry) LinePath() string {
	var b strings.Builder
	for i, p := range g.Points {
		if i > 0 {
			b.WriteByte(' ')
		}
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&b, "%s %s %s", cmd, num(p.X), num(p.Y))
	}
	return b.String()
}

// AreaPath returns the line path closed down to the zero line.
func (g *Geometry) AreaPath() string {
	first, last := g.Points[0], g.Points[len(g.Points)-1]
	return fmt.Sprintf("%s L %s %s L %s %s Z",
		g.LinePath(), num(last.X), num(g.ZeroY), num(first.X), num(g.ZeroY))
}

// num prints the shortest representation that round-trips.
func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
