package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/etnz/askwarren"
	"google.golang.org/genai"
)

// fakeGen answers each call with the next scripted reply.
type fakeGen struct {
	mu      sync.Mutex
	replies []reply
	calls   []call
}

type reply struct {
	resp *genai.GenerateContentResponse
	err  error
}

type call struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGen) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{model, contents, config})
	if len(f.replies) == 0 {
		return nil, errors.New("no more replies")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.resp, r.err
}

func textReply(s string, sources ...*genai.GroundingChunk) reply {
	c := &genai.Candidate{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: s}}}}
	if len(sources) > 0 {
		c.GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: sources}
	}
	return reply{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{c}}}
}

func web(uri, title string) *genai.GroundingChunk {
	return &genai.GroundingChunk{Web: &genai.GroundingChunkWeb{URI: uri, Title: title}}
}

const chartsJSON = `{"charts":{"revenue":[{"year":"2022","value":43},{"year":"2023","value":45.8}],"margins":[],"roic":[{"year":"2023","value":18}],"stockPrice":[]}}`

func TestAnalyzeCompany(t *testing.T) {
	gen := &fakeGen{replies: []reply{
		textReply("1️⃣ Geschäftsmodell\n🔮 Urteil des Orakels von Omaha\n✅ Langfristig attraktiv",
			web("https://example.com/ko", "Coca-Cola IR"),
			web("https://example.com/untitled", ""),
			web("", "dropped"),
			&genai.GroundingChunk{},
		),
		textReply(chartsJSON),
	}}
	o := New(gen)

	a, err := o.AnalyzeCompany(context.Background(), "Coca-Cola")
	if err != nil {
		t.Fatalf("AnalyzeCompany() unexpected error: %v", err)
	}
	if a.Query != "Coca-Cola" || !strings.Contains(a.Text, "Langfristig attraktiv") {
		t.Errorf("unexpected analysis %+v", a)
	}
	if len(a.Sources) != 2 {
		t.Fatalf("len(sources) = %d, want 2", len(a.Sources))
	}
	if got := a.Sources[1].Web.Title; got != "https://example.com/untitled" {
		t.Errorf("untitled source title = %q, want its URI", got)
	}
	if a.Charts == nil || len(a.Charts.Revenue) != 2 || a.Charts.Revenue[1].Value != 45.8 || a.Charts.Revenue[1].Label != "2023" {
		t.Errorf("unexpected charts %+v", a.Charts)
	}

	if len(gen.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(gen.calls))
	}
	if gen.calls[0].config.Tools[0].GoogleSearch == nil {
		t.Errorf("analysis must be grounded with Google Search")
	}
	if gen.calls[1].config.ResponseMIMEType != "application/json" {
		t.Errorf("extraction must request JSON")
	}
	if got := gen.calls[0].contents[0].Parts[0].Text; !strings.Contains(got, "Coca-Cola") {
		t.Errorf("prompt %q does not name the company", got)
	}
}

func TestAnalyzeCompanyEmptyText(t *testing.T) {
	gen := &fakeGen{replies: []reply{textReply(""), textReply("")}}
	a, err := New(gen).AnalyzeCompany(context.Background(), "X")
	if err != nil {
		t.Fatal(err)
	}
	if a.Text != noAnalysis {
		t.Errorf("Text = %q, want %q", a.Text, noAnalysis)
	}
	if a.Charts != nil {
		t.Errorf("Charts = %+v, want nil", a.Charts)
	}
}

func TestAnalyzeCompanyFailure(t *testing.T) {
	gen := &fakeGen{replies: []reply{{err: errors.New("boom")}}}
	_, err := New(gen).AnalyzeCompany(context.Background(), "X")
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Errorf("AnalyzeCompany() error = %v, want ErrOracleUnavailable", err)
	}

	gen = &fakeGen{replies: []reply{textReply("ok"), textReply("not json")}}
	if _, err := New(gen).AnalyzeCompany(context.Background(), "X"); !errors.Is(err, ErrOracleUnavailable) {
		t.Errorf("AnalyzeCompany(bad json) error = %v, want ErrOracleUnavailable", err)
	}
}

func TestFetchMarketTicker(t *testing.T) {
	gen := &fakeGen{replies: []reply{
		textReply("S&P 500 bei 5.100 Punkten", web("https://example.com/spx", "SPX")),
		textReply(`[{"name":"S&P 500","symbol":".INX","price":"5.100,00","change":"+0,4%","isUp":true}]`),
	}}
	tickers, sources := New(gen).FetchMarketTicker(context.Background())
	if len(tickers) != 1 || tickers[0].Symbol != ".INX" || !tickers[0].IsUp {
		t.Errorf("unexpected tickers %+v", tickers)
	}
	if len(sources) != 1 {
		t.Errorf("len(sources) = %d, want 1", len(sources))
	}
	if got := gen.calls[1].contents[0].Parts[0].Text; !strings.HasSuffix(got, "S&P 500 bei 5.100 Punkten") {
		t.Errorf("format prompt %q does not carry the quotes", got)
	}
}

func TestFetchMarketTickerFallback(t *testing.T) {
	for name, gen := range map[string]*fakeGen{
		"search error": {replies: []reply{{err: errors.New("down")}}},
		"format error": {replies: []reply{textReply("quotes"), {err: errors.New("down")}}},
		"bad json":     {replies: []reply{textReply("quotes"), textReply("{")}},
	} {
		t.Run(name, func(t *testing.T) {
			tickers, sources := New(gen).FetchMarketTicker(context.Background())
			if len(tickers) != 3 || tickers[2].Symbol != "BRK.B" || tickers[0].Price != "---" {
				t.Errorf("unexpected fallback %+v", tickers)
			}
			if sources != nil {
				t.Errorf("fallback must not carry sources")
			}
			tickers[0].Name = "mutated"
			if FallbackTicker[0].Name == "mutated" {
				t.Errorf("fallback ticker shared with caller")
			}
		})
	}
}

func TestParseTicker(t *testing.T) {
	tickers, err := ParseTicker(`{"tickers":[
		{"name":"DAX","symbol":"GDAXI","price":"18.000","change":"-0,1%","isUp":true,"currency":""},
		{"name":"Apple","symbol":"AAPL","price":"1.234,5","change":"+2%","isUp":false,"currency":"USD"}
	]}`)
	if err != nil {
		t.Fatal(err)
	}
	want := []askwarren.TickerInfo{
		{Name: "DAX", Symbol: "GDAXI", Price: "18000.00", Change: "-0.10%", IsUp: false},
		{Name: "Apple", Symbol: "AAPL", Price: "$1,234.50", Change: "+2.00%", IsUp: true, Currency: "USD"},
	}
	if !reflect.DeepEqual(tickers, want) {
		t.Errorf("ParseTicker() = %+v, want %+v", tickers, want)
	}
	if tickers, err := ParseTicker(""); err != nil || len(tickers) != 0 {
		t.Errorf("ParseTicker(\"\") = %v, %v", tickers, err)
	}
}

func TestSummarizeDocument(t *testing.T) {
	gen := &fakeGen{replies: []reply{textReply("Starker Burggraben.")}}
	o := New(gen)
	if got := o.SummarizeDocument(context.Background(), []byte("%PDF-1.4"), "application/pdf"); got != "Starker Burggraben." {
		t.Errorf("SummarizeDocument() = %q", got)
	}
	blob := gen.calls[0].contents[0].Parts[0].InlineData
	if blob == nil || blob.MIMEType != "application/pdf" || !bytes.Equal(blob.Data, []byte("%PDF-1.4")) {
		t.Errorf("document not sent inline: %+v", blob)
	}

	if got := New(&fakeGen{replies: []reply{textReply("  ")}}).SummarizeDocument(context.Background(), nil, "image/png"); got != noSummary {
		t.Errorf("SummarizeDocument(empty) = %q, want %q", got, noSummary)
	}
	if got := New(&fakeGen{}).SummarizeDocument(context.Background(), nil, "image/png"); got != summaryFailed {
		t.Errorf("SummarizeDocument(error) = %q, want %q", got, summaryFailed)
	}
}

func TestExpertRetriesRateLimits(t *testing.T) {
	gen := &fakeGen{replies: []reply{
		{err: errors.New("Error 429, RESOURCE_EXHAUSTED")},
		{err: fmt.Errorf("quota exceeded, retryDelay: 0.001s")},
		textReply("done"),
	}}
	e := &Expert{Name: "t", Retry: Retry{MaxRetries: 2, Backoff: time.Millisecond, MaxBackoff: time.Millisecond}}
	got, _, err := e.AskText(context.Background(), gen, &genai.Part{Text: "hi"})
	if err != nil || got != "done" {
		t.Errorf("AskText() = %q, %v", got, err)
	}

	gen = &fakeGen{replies: []reply{{err: errors.New("429")}, {err: errors.New("429")}}}
	e.Retry.MaxRetries = 1
	if _, err := e.Ask(context.Background(), gen); err == nil {
		t.Errorf("Ask() should give up after MaxRetries")
	}

	gen = &fakeGen{replies: []reply{{err: errors.New("invalid argument")}, textReply("never")}}
	if _, err := e.Ask(context.Background(), gen); err == nil || len(gen.calls) != 1 {
		t.Errorf("non rate limit errors must not be retried")
	}
}

func TestRetryDelay(t *testing.T) {
	d, ok := retryDelay(errors.New("Please retry in 12.5s."))
	if !ok || d != 12500*time.Millisecond {
		t.Errorf("retryDelay() = %v, %v", d, ok)
	}
	if _, ok := retryDelay(errors.New("nothing")); ok {
		t.Errorf("retryDelay(nothing) should not match")
	}
}
