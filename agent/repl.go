package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/askwarren"
)

const prompt = "warren> "

// Session is an interactive question loop: each line is a company to analyse.
type Session struct {
	w      io.Writer
	r      *bufio.Reader
	oracle *Oracle
	// Render turns an analysis into the text printed to the user.
	Render func(*askwarren.AnalysisResponse) string
	// Watchlist caches analyses across the session.
	Watchlist *askwarren.Watchlist
}

// NewSession creates a session reading companies from r and writing analyses to w.
func NewSession(w io.Writer, r io.Reader, o *Oracle) *Session {
	return &Session{
		w:         w,
		r:         bufio.NewReader(r),
		oracle:    o,
		Render:    func(a *askwarren.AnalysisResponse) string { return a.Text },
		Watchlist: askwarren.NewWatchlist(),
	}
}

// Run starts the loop. Queued prompts are answered first, then lines are read until EOF or "bye".
func (s *Session) Run(ctx context.Context, prompts ...string) error {
	fmt.Fprintln(s.w, "Willkommen bei Ask Warren. Geben Sie 'bye' ein, um das Gespräch zu beenden.")

	for {
		fmt.Fprint(s.w, prompt)
		var input string

		// Flush prompts from the list and then ask for the user.
		if len(prompts) > 0 {
			input, prompts = prompts[0], prompts[1:]
			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			fmt.Fprintln(s.w, input)
		} else {
			var err error
			input, err = s.r.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil // Clean exit on Ctrl+D
				}
				return err
			}
			input = strings.TrimSpace(input)
		}

		switch input {
		case "":
			continue
		case "bye":
			return nil
		}

		if a, ok := s.Watchlist.Cached(input); ok {
			fmt.Fprintln(s.w, s.Render(a))
			continue
		}
		fmt.Fprintln(s.w, askwarren.LoadingQuote)
		a, err := s.oracle.AnalyzeCompany(ctx, input)
		if err != nil {
			fmt.Fprintln(s.w, err)
			continue
		}
		s.Watchlist.Add(askwarren.NewWatchlistItem("", a))
		fmt.Fprintln(s.w, s.Render(a))
	}
}
