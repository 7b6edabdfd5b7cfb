package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/askwarren/renderer"
	"github.com/google/subcommands"
)

type tickerCmd struct {
	timeout time.Duration
}

func (*tickerCmd) Name() string     { return "ticker" }
func (*tickerCmd) Synopsis() string { return "show the market ticker" }
func (*tickerCmd) Usage() string {
	return `warren ticker [-timeout <duration>]

  Asks the oracle for the current quotes of the indices and companies Warren
  follows. Falls back to placeholder quotes when the market data is unavailable.
`
}

func (c *tickerCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.timeout, "timeout", 2*time.Minute, "Give up after this duration.")
}

func (c *tickerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	oracle, err := NewOracle(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	quotes, sources := oracle.FetchMarketTicker(ctx)
	printMarkdown(renderer.RenderTicker(renderer.Ticker{Quotes: quotes, Sources: sources}))
	return subcommands.ExitSuccess
}
