// Package web provides the kiosk HTTP server: the visitor screens, the
// browser location hook and the configuration admin endpoints.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/evcraddock/visitor-kiosk/internal/auth"
	"github.com/evcraddock/visitor-kiosk/internal/config"
	"github.com/evcraddock/visitor-kiosk/internal/logging"
	"github.com/evcraddock/visitor-kiosk/internal/revision"
	"github.com/evcraddock/visitor-kiosk/internal/session"
	"github.com/evcraddock/visitor-kiosk/internal/visitor"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

const (
	defaultSessionTTL = 30 * time.Minute
	shutdownTimeout   = 10 * time.Second
)

// Options configures optional server collaborators.
type Options struct {
	// Revisions enables the admin endpoints' document editing.
	Revisions *revision.Manager
	Logger    *slog.Logger
	// SessionTTL is how long an idle kiosk session is kept.
	SessionTTL time.Duration
}

// Server is the kiosk HTTP server.
type Server struct {
	backend   session.Backend
	revisions *revision.Manager
	logger    *slog.Logger
	templates *template.Template
	mux       *http.ServeMux
	sessions  *sessionStore

	cfgMu sync.RWMutex
	cfg   *config.Config
}

// NewServer creates a kiosk server for cfg. The admin token is read once;
// changing it requires a restart.
func NewServer(cfg *config.Config, backend session.Backend, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	funcMap := template.FuncMap{
		"fieldValue": tmplFieldValue,
		"inputType":  tmplInputType,
		"miles":      tmplMiles,
		"seq":        tmplSeq,
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		backend:   backend,
		revisions: opts.Revisions,
		logger:    logger,
		templates: tmpl,
		mux:       http.NewServeMux(),
		cfg:       cfg,
	}
	s.sessions = newSessionStore(s.newSession, ttl)

	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("creating static sub-fs: %w", err)
	}

	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /signin", s.handleSignIn)
	s.mux.HandleFunc("POST /signout/start", s.handleSignOutStart)
	s.mux.HandleFunc("POST /signout/cancel", s.handleSignOutCancel)
	s.mux.HandleFunc("POST /signout", s.handleSignOut)
	s.mux.HandleFunc("POST /rate", s.handleRate)
	s.mux.HandleFunc("POST /done", s.handleDone)
	s.mux.HandleFunc("POST /api/location", s.handleLocation)
	s.mux.HandleFunc("GET /api/session", s.handleSessionState)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /admin/config", s.handleGetConfig)
	admin.HandleFunc("POST /admin/config", s.handleSaveConfig)
	admin.HandleFunc("GET /admin/version-history", s.handleVersionHistory)
	admin.HandleFunc("POST /admin/version/increment", s.handleIncrementVersion)
	s.mux.Handle("/admin/", auth.RequireAdminToken(cfg.Kiosk.AdminToken, admin))

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully and ends every kiosk session.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           logging.RequestLogger(s.logger)(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting kiosk", "addr", "http://localhost"+srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.sessions.closeAll()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.sessions.closeAll()
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("kiosk stopped")
	return nil
}

// Close ends every kiosk session.
func (s *Server) Close() {
	s.sessions.closeAll()
}

// config returns the configuration new sessions are built with.
func (s *Server) config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *Server) setConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// render executes a full-page template.
func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("rendering template", "template", name, "error", err)
		http.Error(w, fmt.Sprintf("Error rendering template: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(buf.String())); err != nil {
		s.logger.Debug("writing response", "error", err)
	}
}

// Template helper functions

func tmplFieldValue(form visitor.Submission, id string) string {
	v, _ := form.Value(id)
	return v
}

func tmplInputType(f config.FormField) string {
	switch f.Type {
	case "phone", "tel":
		return "tel"
	case "email", "number", "date":
		return f.Type
	}
	return "text"
}

func tmplMiles(m float64) string {
	return fmt.Sprintf("%.1f", m)
}

func tmplSeq(start, end int) []int {
	var out []int
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}
