package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
	"google.golang.org/genai"
)

// Generator is the completion API the experts talk to. *genai.Models implements it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Retry controls how an expert waits after a rate limit error.
type Retry struct {
	MaxRetries int
	Backoff    time.Duration // first wait, multiplied by 1.5 on each attempt
	MaxBackoff time.Duration
}

// DefaultRetry matches the one minute quota window of the Gemini API.
var DefaultRetry = Retry{MaxRetries: 3, Backoff: 20 * time.Second, MaxBackoff: 60 * time.Second}

// Expert is a single purpose prompt: a model, its configuration and the way to ask it.
type Expert struct {
	Name      string                       `json:"name"`
	ModelName string                       `json:"model_name"`
	Config    *genai.GenerateContentConfig `json:"config"`
	Retry     Retry                        `json:"-"`
}

// Ask sends parts to the expert and returns the raw response.
// Rate limit errors are retried according to e.Retry.
func (e *Expert) Ask(ctx context.Context, gen Generator, parts ...*genai.Part) (*genai.GenerateContentResponse, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	wait := e.Retry.Backoff
	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err := gen.GenerateContent(ctx, e.ModelName, contents, e.Config)
		if err == nil {
			log.Debug().Str("expert", e.Name).Str("model", e.ModelName).Dur("duration", time.Since(start)).Msg("expert answered")
			return resp, nil
		}
		if !IsRateLimitError(err) || attempt >= e.Retry.MaxRetries {
			return nil, fmt.Errorf("expert %s: %w", e.Name, err)
		}
		if d, ok := retryDelay(err); ok {
			wait = d
		}
		log.Warn().Err(err).Str("expert", e.Name).Int("attempt", attempt+1).Dur("wait", wait).Msg("rate limited, retrying")
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("expert %s: %w", e.Name, ctx.Err())
		case <-time.After(wait):
		}
		wait = min(time.Duration(float64(wait)*1.5), e.Retry.MaxBackoff)
	}
}

// AskText is like Ask but returns the concatenated text of the first candidate.
func (e *Expert) AskText(ctx context.Context, gen Generator, parts ...*genai.Part) (string, *genai.GenerateContentResponse, error) {
	resp, err := e.Ask(ctx, gen, parts...)
	if err != nil {
		return "", nil, err
	}
	return resp.Text(), resp, nil
}

// IsRateLimitError reports whether err is a quota error from the API.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "quota")
}

var retryDelayRegexp = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// retryDelay extracts the server suggested delay from the error message.
func retryDelay(err error) (time.Duration, bool) {
	m := retryDelayRegexp.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	secs, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
