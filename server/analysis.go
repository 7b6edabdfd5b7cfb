package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/docs"
	"github.com/etnz/askwarren/renderer"
	"github.com/gorilla/mux"
	"github.com/phuslu/log"
)

type analysisRequest struct {
	Query string `json:"query" validate:"required,max=200"`
}

// analysisReply is an analysis, flagged when it was served from the watchlist.
type analysisReply struct {
	*askwarren.AnalysisResponse
	Cached bool `json:"cached"`
}

// analyze answers from the user's watchlist when the company was saved,
// otherwise asks the oracle within the user's rate limit.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := decode(r, &req); err != nil {
		Fail(w, r, err)
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		WriteError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	uid := currentUser(r).UID

	items, err := s.docs.ListWatchlist(uid)
	if err != nil {
		Fail(w, r, err)
		return
	}
	if a, ok := askwarren.NewWatchlist(items...).Cached(query); ok {
		log.Debug().Str("uid", uid).Str("query", query).Msg("analysis served from watchlist")
		WriteJSON(w, http.StatusOK, analysisReply{AnalysisResponse: a, Cached: true})
		return
	}

	if !s.limiter(uid).Allow() {
		WriteError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}
	a, err := s.oracle.AnalyzeCompany(r.Context(), query)
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, analysisReply{AnalysisResponse: a})
}

func (s *Server) listWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := s.docs.ListWatchlist(currentUser(r).UID)
	if err != nil {
		Fail(w, r, err)
		return
	}
	if items == nil {
		items = []askwarren.WatchlistItem{}
	}
	WriteJSON(w, http.StatusOK, items)
}

// saveWatchlist stores the posted analysis, replacing a previous save of the
// same company.
func (s *Server) saveWatchlist(w http.ResponseWriter, r *http.Request) {
	var a askwarren.AnalysisResponse
	if err := decode(r, &a); err != nil {
		Fail(w, r, err)
		return
	}
	if strings.TrimSpace(a.Query) == "" || strings.TrimSpace(a.Text) == "" {
		WriteError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	item := askwarren.NewWatchlistItem(currentUser(r).UID, &a)
	if err := s.docs.SaveWatchlistItem(&item); err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, item)
}

// watchlistItem loads the {id} item of the current user.
func (s *Server) watchlistItem(r *http.Request) (*askwarren.WatchlistItem, error) {
	items, err := s.docs.ListWatchlist(currentUser(r).UID)
	if err != nil {
		return nil, err
	}
	id := mux.Vars(r)["id"]
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, askwarren.ErrNotFound
}

func (s *Server) getWatchlistItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.watchlistItem(r)
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

func (s *Server) deleteWatchlist(w http.ResponseWriter, r *http.Request) {
	if err := s.docs.DeleteWatchlistItem(currentUser(r).UID, mux.Vars(r)["id"]); err != nil {
		Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// savedAnalysis returns the full analysis of the {id} watchlist item.
func (s *Server) savedAnalysis(r *http.Request) (*askwarren.AnalysisResponse, error) {
	item, err := s.watchlistItem(r)
	if err != nil {
		return nil, err
	}
	if item.FullAnalysis == nil {
		return nil, askwarren.ErrNotFound
	}
	return item.FullAnalysis, nil
}

const (
	contentPDF  = "application/pdf"
	contentXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentSVG  = "image/svg+xml"
)

// render buffers the output of fn so that a failure can still be reported as JSON.
func render(w http.ResponseWriter, r *http.Request, contentType, filename string, fn func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		Fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	if _, err := buf.WriteTo(w); err != nil {
		log.Warn().Err(err).Msg("cannot write response")
	}
}

// exportName is the file name of an export for query.
func exportName(query, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, query)
	if name == "" {
		name = "analyse"
	}
	return "Warren_Analyse_" + name + ext
}

func (s *Server) analysisPDF(w http.ResponseWriter, r *http.Request) {
	var a askwarren.AnalysisResponse
	if err := decode(r, &a); err != nil {
		Fail(w, r, err)
		return
	}
	render(w, r, contentPDF, exportName(a.Query, ".pdf"), func(b *bytes.Buffer) error { return renderer.AnalysisPDF(b, &a) })
}

func (s *Server) watchlistPDF(w http.ResponseWriter, r *http.Request) {
	a, err := s.savedAnalysis(r)
	if err != nil {
		Fail(w, r, err)
		return
	}
	render(w, r, contentPDF, exportName(a.Query, ".pdf"), func(b *bytes.Buffer) error { return renderer.AnalysisPDF(b, a) })
}

func (s *Server) watchlistItemXLSX(w http.ResponseWriter, r *http.Request) {
	a, err := s.savedAnalysis(r)
	if err != nil {
		Fail(w, r, err)
		return
	}
	render(w, r, contentXLSX, exportName(a.Query, ".xlsx"), func(b *bytes.Buffer) error { return renderer.AnalysisXLSX(b, a) })
}

func (s *Server) watchlistXLSX(w http.ResponseWriter, r *http.Request) {
	items, err := s.docs.ListWatchlist(currentUser(r).UID)
	if err != nil {
		Fail(w, r, err)
		return
	}
	render(w, r, contentXLSX, "Warren_Watchlist.xlsx", func(b *bytes.Buffer) error { return renderer.WatchlistXLSX(b, items) })
}

// writeChart writes the {metric} panel of charts as SVG.
func writeChart(w http.ResponseWriter, r *http.Request, charts *askwarren.FinancialCharts) {
	spec, ok := askwarren.ChartSpecFor(charts, mux.Vars(r)["metric"])
	if !ok {
		WriteError(w, http.StatusNotFound, msgNotFound)
		return
	}
	render(w, r, contentSVG, "", func(b *bytes.Buffer) error { return renderer.ChartSVG(b, spec) })
}

func (s *Server) chartSVG(w http.ResponseWriter, r *http.Request) {
	var charts askwarren.FinancialCharts
	if err := decode(r, &charts); err != nil {
		Fail(w, r, err)
		return
	}
	writeChart(w, r, &charts)
}

func (s *Server) watchlistChartSVG(w http.ResponseWriter, r *http.Request) {
	a, err := s.savedAnalysis(r)
	if err != nil {
		Fail(w, r, err)
		return
	}
	writeChart(w, r, a.Charts)
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"quote": askwarren.RandomQuote()})
}

func (s *Server) academy(w http.ResponseWriter, r *http.Request) {
	topics, err := docs.Index()
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, topics)
}

func (s *Server) academyTopic(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["topic"]
	if name == "*" || name == "readme" {
		WriteError(w, http.StatusNotFound, msgNotFound)
		return
	}
	content, err := docs.GetTopic(name)
	if err != nil {
		WriteError(w, http.StatusNotFound, msgNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(content))
}
