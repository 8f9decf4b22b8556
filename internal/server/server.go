// Package server serves the documentation of a project over HTTP and rebuilds
// it when sources change.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robert-at-pretension-io/svdoc/internal/facts"
	"github.com/robert-at-pretension-io/svdoc/internal/indexer"
	"github.com/robert-at-pretension-io/svdoc/internal/render"
)

const defaultDebounce = 300 * time.Millisecond

// Server holds the latest build of a project and serves it.
type Server struct {
	root     string
	idx      *indexer.Indexer
	renderer *render.HTMLRenderer
	log      *slog.Logger
	debounce time.Duration
	metrics  *metrics
	router   chi.Router

	// buildMu serializes rebuilds; an Indexer runs one build at a time.
	buildMu sync.Mutex

	mu      sync.RWMutex
	pages   map[string][]byte
	result  *indexer.Result
	builtAt time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Nil discards.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithRenderer sets the HTML renderer.
func WithRenderer(r *render.HTMLRenderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithDebounce sets how long Watch waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(s *Server) { s.debounce = d }
}

// New creates a server for the project at root. Nothing is served until the
// first Rebuild succeeds.
func New(root string, idx *indexer.Indexer, opts ...Option) *Server {
	s := &Server{
		root:     root,
		idx:      idx,
		debounce: defaultDebounce,
		metrics:  newMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.renderer == nil {
		s.renderer = render.NewHTMLRenderer(render.WithLogger(s.log))
	}
	if s.idx.Log == nil {
		s.idx.Log = s.log
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.log, s.metrics))

	r.Get("/", s.handleIndex)
	r.Get("/static/*", s.handleStatic)
	r.Get("/api/doc", s.handleDoc)
	r.Get("/api/facts", s.handleFacts)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	r.Get("/{page}", s.handlePage)

	s.router = r
}

// Rebuild indexes the project and swaps in the new pages. On failure the
// previous build keeps being served.
func (s *Server) Rebuild(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	res, err := s.idx.Run(ctx, s.root)
	if err != nil {
		s.metrics.rebuilds.WithLabelValues("error").Inc()
		return fmt.Errorf("rebuild: %w", err)
	}
	pages, err := s.renderer.Pages(res.Library)
	if err != nil {
		s.metrics.rebuilds.WithLabelValues("error").Inc()
		return fmt.Errorf("rebuild: %w", err)
	}

	s.mu.Lock()
	s.pages = pages
	s.result = res
	s.builtAt = time.Now()
	s.mu.Unlock()

	took := time.Since(start)
	s.metrics.rebuilds.WithLabelValues("ok").Inc()
	s.metrics.rebuildDuration.Observe(took.Seconds())
	s.metrics.parseErrors.Set(float64(len(res.ParseErrors)))
	items := res.Stats.Items
	for kind, n := range map[string]int{
		"package": items.Packages,
		"module":  items.Modules,
		"param":   items.Params,
		"port":    items.Ports,
		"type":    items.Types,
		"var":     items.Vars,
	} {
		s.metrics.items.WithLabelValues(kind).Set(float64(n))
	}

	s.log.Info("documentation rebuilt",
		slog.Int("files", res.Stats.Files),
		slog.Int("pages", len(pages)),
		slog.Int("parse_errors", len(res.ParseErrors)),
		slog.Duration("took", took))
	return nil
}

// snapshot returns the current build. Pages is nil before the first build.
func (s *Server) snapshot() (map[string][]byte, *indexer.Result, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages, s.result, s.builtAt
}

func (s *Server) servePage(w http.ResponseWriter, name, contentType string) {
	pages, _, _ := s.snapshot()
	if pages == nil {
		writeError(w, http.StatusServiceUnavailable, "documentation not built yet")
		return
	}
	body, ok := pages[name]
	if !ok {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(body)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.servePage(w, "index.html", "text/html; charset=utf-8")
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	if !strings.HasSuffix(page, ".html") {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	s.servePage(w, page, "text/html; charset=utf-8")
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := "static/" + chi.URLParam(r, "*")
	contentType := "application/octet-stream"
	if strings.HasSuffix(name, ".css") {
		contentType = "text/css; charset=utf-8"
	}
	s.servePage(w, name, contentType)
}

func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	_, res, _ := s.snapshot()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "documentation not built yet")
		return
	}
	var buf bytes.Buffer
	if err := render.WriteJSON(&buf, res.Library); err != nil {
		s.log.Error("encode documentation", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "encode documentation failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

// handleFacts serves the fact tables. Query parameters:
//
//	file=<path>  keep rows of the named files only (repeatable)
//	delta=1      rows added and removed since the previous build
func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	_, res, _ := s.snapshot()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "documentation not built yet")
		return
	}

	var files map[string]bool
	if names := r.URL.Query()["file"]; len(names) > 0 {
		files = make(map[string]bool, len(names))
		for _, n := range names {
			files[n] = true
		}
	}

	var buf bytes.Buffer
	var err error
	if r.URL.Query().Get("delta") != "" {
		prev := facts.BuildTables(nil, nil)
		if res.PreviousTables != nil {
			prev = *res.PreviousTables
		}
		delta := facts.ComputeDelta(prev, res.Tables)
		if files != nil {
			delta = facts.FilterDeltaByFiles(delta, files)
		}
		err = render.WriteDeltaJSON(&buf, delta)
	} else {
		tables := res.Tables
		if files != nil {
			tables = facts.FilterTablesByFiles(tables, files)
		}
		err = render.WriteFactsJSON(&buf, tables)
	}
	if err != nil {
		s.log.Error("encode facts", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "encode facts failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

type healthResponse struct {
	Status      string    `json:"status"`
	BuiltAt     time.Time `json:"built_at,omitempty"`
	Files       int       `json:"files"`
	ParseErrors int       `json:"parse_errors"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, res, builtAt := s.snapshot()
	resp := healthResponse{Status: "starting"}
	if res != nil {
		resp = healthResponse{
			Status:      "ok",
			BuiltAt:     builtAt,
			Files:       res.Stats.Files,
			ParseErrors: len(res.ParseErrors),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListenAndServe builds the documentation, then serves it on addr until ctx
// is canceled. With watch set, sources are watched and rebuilt on change.
func (s *Server) ListenAndServe(ctx context.Context, addr string, watch bool) error {
	if err := s.Rebuild(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	if watch {
		go func() {
			if err := s.Watch(ctx); err != nil {
				errCh <- err
			}
		}()
	}
	go func() {
		s.log.Info("serving documentation", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
