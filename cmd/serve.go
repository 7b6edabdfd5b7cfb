package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/etnz/askwarren/auth"
	"github.com/etnz/askwarren/blob"
	"github.com/etnz/askwarren/mailer"
	"github.com/etnz/askwarren/server"
	"github.com/etnz/askwarren/store"
	"github.com/etnz/askwarren/vault"
	"github.com/google/subcommands"
	"github.com/phuslu/log"
	"golang.org/x/time/rate"
)

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the Ask Warren API server" }
func (*serveCmd) Usage() string {
	return `warren serve [-addr <addr>]

  Serves the JSON API, the chart and export endpoints and the live ticker
  websocket until interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address, overrides the configuration.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		log.Error().Err(err).Msg("cannot open database")
		return subcommands.ExitFailure
	}
	defer st.Close()

	objects, err := blob.New(cfg.Files.Root, cfg.Files.URL)
	if err != nil {
		log.Error().Err(err).Msg("cannot open file storage")
		return subcommands.ExitFailure
	}

	oracle, err := NewOracle(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("cannot reach the oracle")
		return subcommands.ExitFailure
	}

	accounts := auth.New(cfg.AuthConfig(), st, objects, mailer.New(cfg.Mail))
	srv := server.New(server.Options{
		BaseURL:        cfg.Server.BaseURL,
		CORSOrigins:    cfg.Server.CORSOrigins,
		AnalysisRate:   rate.Limit(cfg.Server.AnalysisPerMinute / 60),
		AnalysisBurst:  cfg.Server.AnalysisBurst,
		TickerSchedule: cfg.Server.TickerSchedule,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		FilesURL:       cfg.Files.URL,
	}, accounts, st, objects, vault.New(st, objects, oracle), oracle)

	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return subcommands.ExitFailure
	}
	log.Info().Msg("server stopped")
	return subcommands.ExitSuccess
}
