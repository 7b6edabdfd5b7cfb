package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/renderer"
	"github.com/google/subcommands"
)

type exportCmd struct {
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a saved analysis as PDF, XLSX or markdown" }
func (*exportCmd) Usage() string {
	return `warren export -o <file.pdf|file.xlsx|file.md> <analysis.json>

  Exports an analysis saved as JSON. The format follows the extension of -o.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "Output file.")
}

// exporters by file extension.
var exporters = map[string]func(io.Writer, *askwarren.AnalysisResponse) error{
	".pdf":  renderer.AnalysisPDF,
	".xlsx": renderer.AnalysisXLSX,
	".md": func(w io.Writer, a *askwarren.AnalysisResponse) error {
		_, err := io.WriteString(w, renderer.RenderAnalysis(a))
		return err
	},
}

func (c *exportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.out == "" {
		fmt.Fprintln(os.Stderr, "export requires -o and exactly one analysis file")
		return subcommands.ExitUsageError
	}
	export, ok := exporters[strings.ToLower(filepath.Ext(c.out))]
	if !ok {
		fmt.Fprintf(os.Stderr, "unsupported export format %q\n", filepath.Ext(c.out))
		return subcommands.ExitUsageError
	}
	a, err := readAnalysis(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	out, err := os.Create(c.out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := export(out, a); err != nil {
		out.Close()
		fmt.Fprintf(os.Stderr, "Error exporting %s: %v\n", c.out, err)
		return subcommands.ExitFailure
	}
	if err := out.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Successfully exported %q to %s\n", a.Query, c.out)
	return subcommands.ExitSuccess
}
