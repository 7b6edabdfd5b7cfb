package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/askwarren/renderer"
	"github.com/etnz/askwarren/store"
	"github.com/google/subcommands"
)

type watchlistCmd struct {
	user   string
	xlsx   string
	remove string
}

func (*watchlistCmd) Name() string     { return "watchlist" }
func (*watchlistCmd) Synopsis() string { return "show a user's watchlist" }
func (*watchlistCmd) Usage() string {
	return `warren watchlist -u <email> [-xlsx <file>] [-rm <id>]

  Reads the watchlist of a user from the database. The server must not be
  running, the database is opened exclusively.
`
}

func (c *watchlistCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", "", "Email address of the user.")
	f.StringVar(&c.xlsx, "xlsx", "", "Write the watchlist to this spreadsheet instead of printing it.")
	f.StringVar(&c.remove, "rm", "", "Remove the item with this id first.")
}

func (c *watchlistCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "watchlist requires -u")
		return subcommands.ExitUsageError
	}
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	u, err := st.UserByEmail(c.user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding user %q: %v\n", c.user, err)
		return subcommands.ExitFailure
	}
	if c.remove != "" {
		if err := st.DeleteWatchlistItem(u.UID, c.remove); err != nil {
			fmt.Fprintf(os.Stderr, "Error removing %q: %v\n", c.remove, err)
			return subcommands.ExitFailure
		}
	}
	items, err := st.ListWatchlist(u.UID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.xlsx == "" {
		printMarkdown(renderer.RenderWatchlist(items))
		return subcommands.ExitSuccess
	}
	out, err := os.Create(c.xlsx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := renderer.WatchlistXLSX(out, items); err != nil {
		out.Close()
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := out.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
