package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/renderer"
	"github.com/google/subcommands"
)

type chartCmd struct {
	metric string
	out    string
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "draw the charts of a saved analysis as SVG" }
func (*chartCmd) Usage() string {
	return `warren chart [-m <metric>] [-o <path>] <analysis.json>

  Draws the metric charts of an analysis saved as JSON (an analysis or a
  watchlist item). Metrics are revenue, margins, roic and stockPrice.
  With -m, writes one chart to -o (stdout by default). Without, writes every
  chart as <metric>.svg into the -o directory.
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.metric, "m", "", "Metric to draw.")
	f.StringVar(&c.out, "o", "", "Output file, or directory when drawing every chart.")
}

func (c *chartCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "chart requires exactly one analysis file")
		return subcommands.ExitUsageError
	}
	a, err := readAnalysis(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.metric != "" {
		spec, ok := askwarren.ChartSpecFor(a.Charts, c.metric)
		if !ok {
			fmt.Fprintf(os.Stderr, "no %q data in %s\n", c.metric, f.Arg(0))
			return subcommands.ExitFailure
		}
		if err := c.write(c.out, spec); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	specs := askwarren.ChartSpecs(a.Charts)
	if len(specs) == 0 {
		fmt.Fprintf(os.Stderr, "no chart data in %s\n", f.Arg(0))
		return subcommands.ExitFailure
	}
	dir := c.out
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	for _, spec := range specs {
		path := filepath.Join(dir, spec.Metric+".svg")
		if err := c.write(path, spec); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Println(path)
	}
	return subcommands.ExitSuccess
}

// write draws spec into path, or stdout when path is empty.
func (c *chartCmd) write(path string, spec askwarren.ChartSpec) error {
	if path == "" {
		return renderer.ChartSVG(os.Stdout, spec)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := renderer.ChartSVG(f, spec); err != nil {
		f.Close()
		return fmt.Errorf("cannot draw %s: %w", spec.Metric, err)
	}
	return f.Close()
}
