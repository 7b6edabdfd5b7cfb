// Package server exposes the oracle, the watchlist, the vault and the
// accounts as a JSON API, and pushes the market ticker over a websocket.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/vault"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// Oracle produces analyses and market quotes.
type Oracle interface {
	AnalyzeCompany(ctx context.Context, query string) (*askwarren.AnalysisResponse, error)
	FetchMarketTicker(ctx context.Context) ([]askwarren.TickerInfo, []askwarren.GroundingChunk)
}

// Accounts is the account service: askwarren.AuthProvider plus the flows
// driven by links and redirects.
type Accounts interface {
	askwarren.AuthProvider
	Verify(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
	UpdateProfile(ctx context.Context, uid, name, photoURL string) (*askwarren.UserProfile, error)
	SetProfilePhoto(ctx context.Context, uid string, data []byte) (*askwarren.UserProfile, error)
	DeleteProfilePhoto(ctx context.Context, uid string) (*askwarren.UserProfile, error)
	GoogleAuthURL(state string) (string, error)
	GoogleSignIn(ctx context.Context, code string) (*askwarren.Session, error)
	PurgeExpired() error
}

// Options configure the server.
type Options struct {
	// BaseURL is where the web client lives, Google sign-in redirects there.
	BaseURL     string
	CORSOrigins []string
	// AnalysisRate and AnalysisBurst throttle each user's analyses.
	AnalysisRate   rate.Limit
	AnalysisBurst  int
	TickerSchedule string
	MaxUploadBytes int64
	// FilesURL is the path prefix of vault object URLs.
	FilesURL string
}

// Server is the HTTP API.
type Server struct {
	opts     Options
	accounts Accounts
	docs     askwarren.DocumentStore
	objects  askwarren.ObjectStore
	vault    *vault.Vault
	oracle   Oracle
	hub      *Hub
	ticker   *TickerCache
	cron     *cron.Cron

	mu       sync.Mutex
	limiters map[string]*userLimiter
}

type userLimiter struct {
	*rate.Limiter
	seen time.Time
}

// New creates the server. Call Handler to serve it and Start to run the
// scheduled jobs.
func New(opts Options, accounts Accounts, docs askwarren.DocumentStore, objects askwarren.ObjectStore, v *vault.Vault, oracle Oracle) *Server {
	if opts.FilesURL == "" {
		opts.FilesURL = "/files"
	}
	s := &Server{
		opts:     opts,
		accounts: accounts,
		docs:     docs,
		objects:  objects,
		vault:    v,
		oracle:   oracle,
		hub:      NewHub(),
		cron:     cron.New(),
		limiters: make(map[string]*userLimiter),
	}
	s.ticker = NewTickerCache(oracle, s.hub)
	s.hub.welcome = func() (Message, bool) {
		u, ok := s.ticker.Last()
		return Message{Type: "ticker", Payload: u}, ok
	}
	return s
}

// Router returns the API routes without the outer middlewares.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/signup", s.signUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", s.signIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/verify", s.verify).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/auth/reset", s.requestReset).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset/confirm", s.confirmReset).Methods(http.MethodPost)
	api.HandleFunc("/auth/google", s.googleRedirect).Methods(http.MethodGet)
	api.HandleFunc("/auth/google/callback", s.googleCallback).Methods(http.MethodGet)
	api.HandleFunc("/quote", s.quote).Methods(http.MethodGet)
	api.HandleFunc("/ticker", s.getTicker).Methods(http.MethodGet)
	api.HandleFunc("/academy", s.academy).Methods(http.MethodGet)
	api.HandleFunc("/academy/{topic}", s.academyTopic).Methods(http.MethodGet)
	api.HandleFunc("/charts/{metric}.svg", s.chartSVG).Methods(http.MethodPost)
	api.HandleFunc("/analysis/pdf", s.analysisPDF).Methods(http.MethodPost)

	user := api.NewRoute().Subrouter()
	user.Use(s.authenticate)
	user.HandleFunc("/auth/signout", s.signOut).Methods(http.MethodPost)
	user.HandleFunc("/profile", s.getProfile).Methods(http.MethodGet)
	user.HandleFunc("/profile", s.updateProfile).Methods(http.MethodPut)
	user.HandleFunc("/profile", s.deleteAccount).Methods(http.MethodDelete)
	user.HandleFunc("/profile/photo", s.uploadPhoto).Methods(http.MethodPut)
	user.HandleFunc("/profile/photo", s.deletePhoto).Methods(http.MethodDelete)
	user.HandleFunc("/analysis", s.analyze).Methods(http.MethodPost)
	user.HandleFunc("/watchlist", s.listWatchlist).Methods(http.MethodGet)
	user.HandleFunc("/watchlist", s.saveWatchlist).Methods(http.MethodPost)
	user.HandleFunc("/watchlist.xlsx", s.watchlistXLSX).Methods(http.MethodGet)
	user.HandleFunc("/watchlist/{id}", s.getWatchlistItem).Methods(http.MethodGet)
	user.HandleFunc("/watchlist/{id}", s.deleteWatchlist).Methods(http.MethodDelete)
	user.HandleFunc("/watchlist/{id}/pdf", s.watchlistPDF).Methods(http.MethodGet)
	user.HandleFunc("/watchlist/{id}/xlsx", s.watchlistItemXLSX).Methods(http.MethodGet)
	user.HandleFunc("/watchlist/{id}/charts/{metric}.svg", s.watchlistChartSVG).Methods(http.MethodGet)
	user.HandleFunc("/vault", s.listVault).Methods(http.MethodGet)
	user.HandleFunc("/vault", s.upload).Methods(http.MethodPost)
	user.HandleFunc("/vault/{id}", s.updateNote).Methods(http.MethodPatch)
	user.HandleFunc("/vault/{id}", s.deleteDocument).Methods(http.MethodDelete)
	user.HandleFunc("/vault/{id}/content", s.download).Methods(http.MethodGet)

	r.PathPrefix(s.opts.FilesURL + "/").Handler(s.authenticate(http.HandlerFunc(s.serveObject))).Methods(http.MethodGet)

	r.HandleFunc("/ws/ticker", s.hub.ServeWS)
	return r
}

// Handler returns the API wrapped with access logging and CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	if len(s.opts.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.opts.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}
	return handlers.CustomLoggingHandler(io.Discard, h, accessLog)
}

func accessLog(_ io.Writer, p handlers.LogFormatterParams) {
	log.Info().
		Str("method", p.Request.Method).
		Str("path", p.URL.Path).
		Int("status", p.StatusCode).
		Int("size", p.Size).
		Dur("took", time.Since(p.TimeStamp)).
		Msg("request")
}

// Start schedules the ticker refresh and the purge of expired sessions, and
// fetches the ticker once in the background.
func (s *Server) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.opts.TickerSchedule, func() { s.ticker.Refresh(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", func() {
		if err := s.accounts.PurgeExpired(); err != nil {
			log.Error().Err(err).Msg("cannot purge expired sessions")
		}
		if n := s.evictLimiters(time.Now()); n > 0 {
			log.Debug().Int("count", n).Msg("idle limiters evicted")
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	go s.ticker.Refresh(ctx)
	return nil
}

// Stop stops the scheduled jobs and closes the websocket clients.
func (s *Server) Stop() {
	<-s.cron.Stop().Done()
	s.hub.Close()
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// limiterIdle is how long a limiter stays unused before it can be evicted.
const limiterIdle = time.Hour

// limiter returns the analysis limiter of uid.
func (s *Server) limiter(uid string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[uid]
	if !ok {
		l = &userLimiter{Limiter: rate.NewLimiter(s.opts.AnalysisRate, s.opts.AnalysisBurst)}
		s.limiters[uid] = l
	}
	l.seen = time.Now()
	return l.Limiter
}

func (s *Server) dropLimiter(uid string) {
	s.mu.Lock()
	delete(s.limiters, uid)
	s.mu.Unlock()
}

// evictLimiters drops the limiters unused since limiterIdle and refilled, a
// fresh limiter behaves the same. It returns how many were dropped.
func (s *Server) evictLimiters(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for uid, l := range s.limiters {
		if now.Sub(l.seen) < limiterIdle || l.TokensAt(now) < float64(l.Burst()) {
			continue
		}
		delete(s.limiters, uid)
		n++
	}
	return n
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// download links cannot carry headers.
	return r.URL.Query().Get("access_token")
}
