package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/agent"
	"github.com/etnz/askwarren/renderer"
	"github.com/google/subcommands"
)

// analyzeCmd is the interactive oracle.
type analyzeCmd struct {
	raw bool
}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "ask the oracle about companies" }
func (*analyzeCmd) Usage() string {
	return `warren analyze [-raw] [<company>...]

  Starts an interactive session: each line is a company to analyse. Companies
  given as arguments are analysed first. Analyses are kept for the session.
`
}

func (c *analyzeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print markdown without terminal styling.")
}

func (c *analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	oracle, err := NewOracle(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	s := agent.NewSession(os.Stdout, os.Stdin, oracle)
	s.Render = func(a *askwarren.AnalysisResponse) string {
		md := renderer.RenderAnalysis(a)
		if c.raw {
			return md
		}
		return styled(md)
	}
	var prompts []string
	if f.NArg() > 0 {
		prompts = []string{strings.Join(f.Args(), " ")}
	}
	if err := s.Run(ctx, prompts...); err != nil {
		fmt.Fprintln(os.Stderr, "Session failed:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
