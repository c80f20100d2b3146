// Package server is the HTTP and websocket transport of the live pattern
// viewer.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/areumknits/patternview"
	"github.com/areumknits/patternview/internal/assets"
	"github.com/areumknits/patternview/internal/catalog"
	"github.com/areumknits/patternview/internal/config"
	"github.com/areumknits/patternview/internal/export"
	"github.com/areumknits/patternview/internal/render"
	"github.com/areumknits/patternview/internal/storage"
)

// Options wires a Server to its collaborators. Config, Catalog, Backend,
// Renderer and Exporter are required.
type Options struct {
	Config   *config.Config
	Catalog  *catalog.Catalog
	Backend  storage.Backend
	Renderer *render.Renderer
	Exporter *export.Exporter
	Logger   *zap.Logger
}

// Server is the live pattern viewer.
type Server struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	backend  storage.Backend
	renderer *render.Renderer
	exporter *export.Exporter
	log      *zap.Logger

	limiter    *RateLimiter
	stopLimit  context.CancelFunc
	limiterEnd <-chan struct{}
	handler    http.Handler

	connMu      sync.RWMutex
	connections map[*liveConn]bool

	watcher *catalog.Watcher
}

// New builds a server. Call Close when done.
func New(opts Options) (*Server, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("server: config is required")
	case opts.Catalog == nil:
		return nil, errors.New("server: catalog is required")
	case opts.Backend == nil:
		return nil, errors.New("server: storage backend is required")
	case opts.Renderer == nil:
		return nil, errors.New("server: renderer is required")
	case opts.Exporter == nil:
		return nil, errors.New("server: exporter is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:         opts.Config,
		catalog:     opts.Catalog,
		backend:     opts.Backend,
		renderer:    opts.Renderer,
		exporter:    opts.Exporter,
		log:         opts.Logger,
		connections: make(map[*liveConn]bool),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopLimit = cancel
	exp := &s.cfg.Export
	s.limiter, s.limiterEnd = NewRateLimiter(ctx, exp.GetRateLimitRPS(), exp.GetRateLimitBurst(), exp.GetMaxTrackedIPs(), s.log)

	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.serveIndex)
	mux.HandleFunc("GET /patterns/{slug}", s.servePattern)
	mux.Handle("GET /patterns/{slug}/download", s.limiter.Middleware(http.HandlerFunc(s.serveDownload)))
	mux.Handle("GET /api/patterns/{slug}/state", s.limiter.Middleware(http.HandlerFunc(s.serveState)))
	mux.Handle("POST /api/patterns/{slug}/actions", s.limiter.Middleware(http.HandlerFunc(s.serveAction)))
	mux.HandleFunc("GET /ws", s.serveWebSocket)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", s.assetHandler()))

	return SecurityHeadersMiddleware()(WithCompression(mux))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) assetHandler() http.Handler {
	files := http.FileServerFS(assets.ClientFS())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.Debug {
			w.Header().Set("Cache-Control", "no-cache")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		files.ServeHTTP(w, r)
	})
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Index(w, s.catalog.Patterns()); err != nil {
		http.Error(w, "failed to render index", http.StatusInternalServerError)
	}
}

// lookup resolves the {slug} path value, answering 404 itself when the
// pattern is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*patternview.Pattern, bool) {
	p, ok := s.catalog.Get(r.PathValue("slug"))
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	return p, true
}

func (s *Server) servePattern(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	if p.IsStub() {
		w.WriteHeader(http.StatusNotFound)
		_ = s.renderer.Missing(w, p)
		return
	}

	v, err := s.openViewer(r.Context(), p, s.browserID(w, r))
	if err != nil {
		s.log.Error("failed to open session", zap.String("pattern", p.Slug), zap.Error(err))
		http.Error(w, "failed to load pattern state", http.StatusInternalServerError)
		return
	}
	if err := s.renderer.Page(w, p, v.session.Snapshot(), ""); err != nil {
		http.Error(w, "failed to render pattern", http.StatusInternalServerError)
	}
}

func (s *Server) serveDownload(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if p.IsStub() {
		writeJSONError(w, http.StatusNotFound, patternview.ErrNoContent.Error())
		return
	}

	v, err := s.openViewer(r.Context(), p, s.browserID(w, r))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load pattern state")
		return
	}
	doc, err := s.exporter.Pattern(s.renderer, p, v.session.Snapshot(), v.session.Defaults())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	_, _ = w.Write(doc.HTML)
}

// EnableWatch reloads catalog entries as they change and re-renders every
// live viewer of a changed pattern.
func (s *Server) EnableWatch() error {
	w, err := catalog.NewWatcher(s.catalog, s.onCatalogChange)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	s.watcher = w
	s.watcher.Start()
	s.log.Info("catalog watcher started", zap.String("dir", s.catalog.Dir()))
	return nil
}

// StopWatch stops the catalog watcher if it is running.
func (s *Server) StopWatch() error {
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

// Close stops background work and closes live connections. The storage
// backend belongs to the caller.
func (s *Server) Close() error {
	err := s.StopWatch()
	s.stopLimit()
	<-s.limiterEnd

	s.connMu.Lock()
	for c := range s.connections {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline())
		_ = c.conn.Close()
	}
	s.connections = make(map[*liveConn]bool)
	s.connMu.Unlock()
	return err
}
