package askwarren

import (
	"time"

	"github.com/etnz/askwarren/chart"
)

// GroundingChunk is a web source the oracle relied on.
type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

// WebSource is the page behind a GroundingChunk.
type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// FinancialCharts are the metric series extracted for the last five years.
type FinancialCharts struct {
	Revenue    []chart.MetricPoint `json:"revenue"`
	Margins    []chart.MetricPoint `json:"margins"`
	ROIC       []chart.MetricPoint `json:"roic"`
	StockPrice []chart.MetricPoint `json:"stockPrice"`
}

// AnalysisResponse is the oracle's answer to a query.
type AnalysisResponse struct {
	Query   string           `json:"query"`
	Text    string           `json:"text"`
	Sources []GroundingChunk `json:"sources"`
	Charts  *FinancialCharts `json:"charts,omitempty"`
}

// WatchlistItem is an analysis saved by a user.
type WatchlistItem struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	Query        string            `json:"query"`
	Verdict      string            `json:"verdict"`
	Timestamp    int64             `json:"timestamp"` // unix milliseconds
	FullAnalysis *AnalysisResponse `json:"fullAnalysis,omitempty"`
}

// Time returns the item's timestamp as a time.
func (w WatchlistItem) Time() time.Time { return time.UnixMilli(w.Timestamp) }

// TickerInfo is one line of the market ticker.
type TickerInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Price    string `json:"price"`
	Change   string `json:"change"`
	IsUp     bool   `json:"isUp"`
	Currency string `json:"currency,omitempty"`
}

// UserProfile is the public profile of a user.
type UserProfile struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	PhotoURL  string `json:"photoURL"`
	CreatedAt int64  `json:"createdAt"` // unix milliseconds
}

// FileRecord describes a document stored in a user's vault.
type FileRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	StoragePath string `json:"storagePath,omitempty"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	Timestamp   int64  `json:"timestamp"` // unix milliseconds
	Note        string `json:"note,omitempty"`
	AISummary   string `json:"aiSummary,omitempty"`
}

// Verdict is the oracle's conclusion on a company.
type Verdict string

const (
	Attractive   Verdict = "✅ Langfristig attraktiv"
	Patience     Verdict = "⚖️ Beobachten, Geduld erforderlich"
	NoInvestment Verdict = "❌ Kein Investment nach Buffett-Kriterien"
	TooHard      Verdict = "📦 Too-Hard-Pile (zu komplex)"
)

// Verdicts lists the verdicts the oracle is instructed to choose from.
var Verdicts = []Verdict{Attractive, Patience, NoInvestment, TooHard}

// NowMillis returns the current time in unix milliseconds, the unit used by all timestamps.
func NowMillis() int64 { return time.Now().UnixMilli() }
