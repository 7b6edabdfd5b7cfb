package main

import (
	"flag"
	"strings"

	"github.com/etnz/askwarren/docs"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// flag values that can be completed better than with any word.
var flagPredictors = map[string]complete.Predictor{
	"config": predict.Files("*.toml"),
	"o":      predict.Files("*"),
	"m":      predict.Set{"revenue", "margins", "roic", "stockPrice"},
}

// positional arguments per command.
var argPredictors = map[string]complete.Predictor{
	"chart":  predict.Files("*.json"),
	"export": predict.Files("*.json"),
	"topic":  complete.PredictFunc(topicNames),
}

func topicNames(prefix string) []string {
	index, err := docs.Index()
	if err != nil {
		return nil
	}
	var names []string
	for _, t := range index {
		if strings.HasPrefix(t.Name, prefix) {
			names = append(names, t.Name)
		}
	}
	return names
}

// completion describes the command line of commander for shell completion.
func completion(commander *subcommands.Commander) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: predictFlags(flag.CommandLine),
	}
	commander.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(f)
		root.Sub[c.Name()] = &complete.Command{
			Flags: predictFlags(f),
			Args:  argPredictors[c.Name()],
		}
	})
	return root
}

// predictFlags maps every flag of f to its predictor. Boolean flags take no value.
func predictFlags(f *flag.FlagSet) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	f.VisitAll(func(fl *flag.Flag) {
		if b, ok := fl.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			flags[fl.Name] = nil
			return
		}
		if p, ok := flagPredictors[fl.Name]; ok {
			flags[fl.Name] = p
			return
		}
		flags[fl.Name] = predict.Something
	})
	return flags
}
