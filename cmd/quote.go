package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/askwarren"
	"github.com/google/subcommands"
)

type quoteCmd struct {
	all bool
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "print a word of wisdom" }
func (*quoteCmd) Usage() string {
	return `warren quote [-a] [<price>]

  Prints a random quote of the oracle, or all of them with -a.
  Given a price such as "1.234,56 EUR", prints it normalised instead.
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "a", false, "Print every quote.")
}

func (c *quoteCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 0 {
		for _, arg := range f.Args() {
			q, err := askwarren.ParseQuote(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing %q: %v\n", arg, err)
				return subcommands.ExitUsageError
			}
			fmt.Println(q)
		}
		return subcommands.ExitSuccess
	}
	if c.all {
		for _, q := range askwarren.Quotes {
			fmt.Println(q)
		}
		return subcommands.ExitSuccess
	}
	fmt.Println(askwarren.RandomQuote())
	return subcommands.ExitSuccess
}
