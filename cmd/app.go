// Package cmd implements the warren command line: the API server, the
// interactive oracle and the offline renderers.
package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/agent"
	"github.com/etnz/askwarren/config"
	"github.com/google/subcommands"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&serveCmd{}, "server")

	c.Register(&analyzeCmd{}, "oracle")
	c.Register(&tickerCmd{}, "oracle")
	c.Register(&quoteCmd{}, "oracle")

	c.Register(&chartCmd{}, "reports")
	c.Register(&exportCmd{}, "reports")
	c.Register(&watchlistCmd{}, "reports")

	c.Register(&topicCmd{}, "academy")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", os.Getenv("WARREN_CONFIG"), "Path to the TOML configuration file")

// Verbose enables debug logs.
var Verbose = flag.Bool("v", false, "Verbose output")

// LoadConfig reads the configuration and sets up logging.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	if *Verbose {
		cfg.Log.Level = "debug"
	}
	cfg.SetupLogging()
	return cfg, nil
}

// NewOracle connects to Gemini with the configured key.
func NewOracle(ctx context.Context, cfg *config.Config) (*agent.Oracle, error) {
	return agent.NewFromClient(ctx, cfg.Gemini.APIKey)
}

// styled renders md for the terminal, or returns it unchanged when it cannot.
func styled(md string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func printMarkdown(md string) { fmt.Print(styled(md)) }

// readAnalysis decodes an analysis saved as JSON, either a bare analysis or a
// watchlist item holding one.
func readAnalysis(path string) (*askwarren.AnalysisResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var item askwarren.WatchlistItem
	if err := json.Unmarshal(data, &item); err == nil && item.FullAnalysis != nil {
		return item.FullAnalysis, nil
	}
	var a askwarren.AnalysisResponse
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("cannot decode analysis %s: %w", path, err)
	}
	return &a, nil
}
