package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"meetlens/internal/classify"
	"meetlens/internal/config"
	"meetlens/internal/hub"
	appLog "meetlens/internal/log"
	"meetlens/internal/refresh"
	"meetlens/internal/stats"
)

// embeddedStatic holds the dashboard pages.
//
//go:embed all:static
var embeddedStatic embed.FS

const (
	responseCacheSize = 256
	responseCacheTTL  = 30 * time.Second
)

// Deps are the collaborators the server needs. Hub and Job are optional.
type Deps struct {
	Config     *config.Config
	ConfigPath string
	Meetings   refresh.MeetingGetter
	Classifier *classify.Engine
	Stats      *stats.Engine
	Hub        *hub.Hub
	Job        *refresh.Job
}

// Server provides the HTTP API and the embedded dashboard.
type Server struct {
	meetings   refresh.MeetingGetter
	classifier *classify.Engine
	stats      *stats.Engine
	hub        *hub.Hub
	job        *refresh.Job
	configPath string
	now        func() time.Time

	// cfgMu guards cfg; preferences and rules are edited through the API.
	cfgMu sync.RWMutex
	cfg   *config.Config

	// Encoded /api/meetings and /api/statistics responses keyed by query.
	responses *expirable.LRU[string, []byte]

	router *mux.Router
}

func NewServer(d Deps) *Server {
	s := &Server{
		meetings:   d.Meetings,
		classifier: d.Classifier,
		stats:      d.Stats,
		hub:        d.Hub,
		job:        d.Job,
		configPath: d.ConfigPath,
		cfg:        d.Config,
		now:        time.Now,
		responses:  expirable.NewLRU[string, []byte](responseCacheSize, nil, responseCacheTTL),
	}
	if s.cfg == nil {
		s.cfg = config.DefaultConfig()
	}
	if s.stats == nil {
		s.stats = stats.New(s.cfg.Location())
	}
	s.router = s.routes()
	return s
}

// Handler returns the router wrapped with basic auth when configured.
func (s *Server) Handler() http.Handler {
	s.cfgMu.RLock()
	auth := newBasicAuth(s.cfg.BasicAuth)
	s.cfgMu.RUnlock()
	if auth != nil {
		appLog.Info("HTTP basic auth enabled")
		return auth.middleware(s.router)
	}
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/preview.png", s.handlePreview).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/meetings", s.handleMeetings).Methods(http.MethodGet)
	api.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/rules", s.handleGetRules).Methods(http.MethodGet)
	api.HandleFunc("/rules", s.handleUpdateRules).Methods(http.MethodPut)
	api.HandleFunc("/rules/reset", s.handleResetRules).Methods(http.MethodPost)
	api.HandleFunc("/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/preferences", s.handleUpdatePreferences).Methods(http.MethodPut)
	api.HandleFunc("/preferences/reset", s.handleResetPreferences).Methods(http.MethodPost)
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	if s.hub != nil {
		api.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	}
	api.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.PathPrefix("/").Handler(s.staticFileServer())
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last dashboard capture from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.cfgMu.RLock()
	path := s.cfg.Capture.OutputPath
	s.cfgMu.RUnlock()
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

// staticFileServer serves the embedded dashboard. /dashboard maps to
// dashboard.html so the capture URL stays extension-free.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dashboard" || r.URL.Path == "/dashboard/" {
			http.ServeFileFS(w, r, sub, "dashboard.html")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// invalidate drops cached responses after rules change.
func (s *Server) invalidate() {
	s.responses.Purge()
}

func (s *Server) publish(t hub.MessageType, payload any) {
	if s.hub != nil {
		s.hub.Publish(t, payload)
	}
}
