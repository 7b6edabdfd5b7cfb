// Package agent talks to the generative AI model: it writes company analyses,
// extracts their metric series, collects the market ticker and summarises
// vault documents.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/askwarren"
	"github.com/phuslu/log"
	"google.golang.org/genai"
)

// ErrOracleUnavailable is returned when an analysis could not be produced.
var ErrOracleUnavailable = errors.New("oracle unavailable")

const (
	noAnalysis       = "Keine Analyse verfügbar."
	noSummary        = "Zusammenfassung konnte nicht generiert werden."
	summaryFailed    = "Fehler bei der Dokumentenanalyse."
	summaryPrompt    = "Fasse dieses Dokument aus der Perspektive von Warren Buffett zusammen. Konzentriere dich auf Geschäftsmodell, Wettbewerbsvorteile und finanzielle Integrität. Halte es prägnant (max 200 Wörter)."
	tickerPrompt     = "Aktuelle Kurse für: S&P 500, DAX, Berkshire Hathaway B, Apple, Coca-Cola."
	tickerJSONPrompt = "Formatiere diese Kurse als JSON Array: "
)

// FallbackTicker is shown when the market data could not be fetched.
var FallbackTicker = []askwarren.TickerInfo{
	{Name: "S&P 500", Symbol: ".INX", Price: "---", Change: "0.0%", IsUp: true},
	{Name: "DAX", Symbol: "GDAXI", Price: "---", Change: "0.0%", IsUp: true},
	{Name: "Berkshire B", Symbol: "BRK.B", Price: "---", Change: "0.0%", IsUp: true},
}

// Oracle is the investment assistant. It is safe for concurrent use.
type Oracle struct {
	gen       Generator
	Analyst   *Expert
	Extractor *Expert
	Scout     *Expert
	Clerk     *Expert
	Archivist *Expert
}

// New creates an Oracle using gen, typically client.Models of a *genai.Client.
func New(gen Generator) *Oracle {
	return &Oracle{
		gen:       gen,
		Analyst:   NewAnalyst(),
		Extractor: NewExtractor(),
		Scout:     NewScout(),
		Clerk:     NewClerk(),
		Archivist: NewArchivist(),
	}
}

// NewFromClient creates the genai client from the environment (GOOGLE_API_KEY or
// GEMINI_API_KEY) unless apiKey is set, and returns an Oracle on top of it.
func NewFromClient(ctx context.Context, apiKey string) (*Oracle, error) {
	var cfg *genai.ClientConfig
	if apiKey != "" {
		cfg = &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot initialize Gemini's client: %w", err)
	}
	return New(client.Models), nil
}

// AnalyzeCompany produces the analysis of query: a grounded text review and,
// when they can be extracted, the company's metric series.
func (o *Oracle) AnalyzeCompany(ctx context.Context, query string) (*askwarren.AnalysisResponse, error) {
	log.Info().Str("query", query).Msg("analysing company")

	txt, resp, err := o.Analyst.AskText(ctx, o.gen, &genai.Part{Text: fmt.Sprintf("Führe eine Buffett-Analyse für %s durch.", query)})
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("analysis failed")
		return nil, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	if strings.TrimSpace(txt) == "" {
		txt = noAnalysis
	}

	js, _, err := o.Extractor.AskText(ctx, o.gen, &genai.Part{Text: fmt.Sprintf("Extrahiere die Finanzdaten (Umsatz, Margen, ROIC, Kursverlauf) für %s basierend auf aktuellen Marktdaten der letzten 5 Jahre als JSON.", query)})
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("chart extraction failed")
		return nil, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	charts, err := ParseCharts(js)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("invalid chart data")
		return nil, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}

	return &askwarren.AnalysisResponse{
		Query:   query,
		Text:    txt,
		Sources: Sources(resp),
		Charts:  charts,
	}, nil
}

// FetchMarketTicker returns the current quotes. It never fails: on error the
// FallbackTicker is returned without sources.
func (o *Oracle) FetchMarketTicker(ctx context.Context) ([]askwarren.TickerInfo, []askwarren.GroundingChunk) {
	quotes, resp, err := o.Scout.AskText(ctx, o.gen, &genai.Part{Text: tickerPrompt})
	if err != nil {
		log.Warn().Err(err).Msg("ticker search failed, using fallback")
		return fallbackTicker(), nil
	}
	js, _, err := o.Clerk.AskText(ctx, o.gen, &genai.Part{Text: tickerJSONPrompt + quotes})
	if err != nil {
		log.Warn().Err(err).Msg("ticker formatting failed, using fallback")
		return fallbackTicker(), nil
	}
	tickers, err := ParseTicker(js)
	if err != nil {
		log.Warn().Err(err).Msg("invalid ticker data, using fallback")
		return fallbackTicker(), nil
	}
	return tickers, Sources(resp)
}

func fallbackTicker() []askwarren.TickerInfo {
	return append([]askwarren.TickerInfo(nil), FallbackTicker...)
}

// SummarizeDocument summarises a PDF or an image. Failures are reported in the
// returned text, as the summary is informative only.
func (o *Oracle) SummarizeDocument(ctx context.Context, data []byte, mimeType string) string {
	txt, _, err := o.Archivist.AskText(ctx, o.gen,
		&genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
		&genai.Part{Text: summaryPrompt},
	)
	if err != nil {
		log.Error().Err(err).Str("mime", mimeType).Int("size", len(data)).Msg("summary failed")
		return summaryFailed
	}
	if strings.TrimSpace(txt) == "" {
		return noSummary
	}
	return txt
}

// Sources extracts the web grounding of the first candidate. Chunks without a
// URI are dropped, a missing title defaults to the URI.
func Sources(resp *genai.GenerateContentResponse) []askwarren.GroundingChunk {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var sources []askwarren.GroundingChunk
	for _, c := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if c == nil || c.Web == nil || c.Web.URI == "" {
			continue
		}
		title := c.Web.Title
		if title == "" {
			title = c.Web.URI
		}
		sources = append(sources, askwarren.GroundingChunk{Web: &askwarren.WebSource{URI: c.Web.URI, Title: title}})
	}
	return sources
}

// ParseCharts reads the "charts" object of the extractor's JSON answer.
// An empty answer yields no charts.
func ParseCharts(js string) (*askwarren.FinancialCharts, error) {
	js = strings.TrimSpace(js)
	if js == "" {
		js = "{}"
	}
	var obj any
	if err := json.Unmarshal([]byte(js), &obj); err != nil {
		return nil, fmt.Errorf("cannot decode chart data: %w", err)
	}
	jval, err := jsonpath.Get("$.charts", obj)
	if err != nil {
		// no charts in the answer is not an error, the analysis stays usable.
		return nil, nil
	}
	var charts askwarren.FinancialCharts
	if err := remarshal(jval, &charts); err != nil {
		return nil, fmt.Errorf("cannot decode chart data: %w", err)
	}
	return &charts, nil
}

// ParseTicker reads the clerk's JSON answer, either an array or an object with
// a "tickers" array. Prices and changes are normalised.
func ParseTicker(js string) ([]askwarren.TickerInfo, error) {
	js = strings.TrimSpace(js)
	if js == "" {
		js = "[]"
	}
	var obj any
	if err := json.Unmarshal([]byte(js), &obj); err != nil {
		return nil, fmt.Errorf("cannot decode ticker data: %w", err)
	}
	if _, ok := obj.(map[string]any); ok {
		jval, err := jsonpath.Get("$.tickers", obj)
		if err != nil {
			return nil, fmt.Errorf("cannot find tickers: %w", err)
		}
		obj = jval
	}
	var tickers []askwarren.TickerInfo
	if err := remarshal(obj, &tickers); err != nil {
		return nil, fmt.Errorf("cannot decode ticker data: %w", err)
	}
	for i, t := range tickers {
		tickers[i] = t.Normalize()
	}
	return tickers, nil
}

func remarshal(v any, dst any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
