package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/vinyasa/internal/logging"
	"github.com/hpungsan/vinyasa/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the vinyasa web UI
// and JSON API.
func NewServer(deps *ops.Deps, version, bind string, port int) (*http.Server, error) {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("web: template sub-FS: %w", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("web: static sub-FS: %w", err)
	}

	logger := logging.OrDiscard(deps.Logger)
	h := &Handlers{
		deps:     deps,
		renderer: NewRenderer(templateSub, version, logger),
	}

	mux := http.NewServeMux()

	// HTML pages
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/sequences", http.StatusFound)
	})
	mux.HandleFunc("GET /sequences", h.HandleList)
	mux.HandleFunc("GET /sequences/{id}", h.HandleDetail)
	mux.HandleFunc("DELETE /sequences/{id}", h.HandleDelete)
	mux.HandleFunc("POST /sequences/purge", h.HandlePurge)
	mux.HandleFunc("GET /poses", h.HandlePoses)

	// JSON API
	mux.HandleFunc("GET /api/sequences", h.APIList)
	mux.HandleFunc("POST /api/sequences", h.APIGenerate)
	mux.HandleFunc("GET /api/sequences/{id}", h.APIFetch)
	mux.HandleFunc("DELETE /api/sequences/{id}", h.APIDelete)
	mux.HandleFunc("POST /api/sequences/{id}/revise", h.APIRevise)
	mux.HandleFunc("POST /api/sequences/{id}/duration", h.APIDuration)
	mux.HandleFunc("POST /api/sequences/{id}/blocks", h.APIInsertBlock)
	mux.HandleFunc("DELETE /api/sequences/{id}/blocks/{position}", h.APIRemoveBlock)
	mux.HandleFunc("POST /api/sequences/{id}/move", h.APIMove)
	mux.HandleFunc("PUT /api/sequences/{id}/steps/{index}", h.APIReplaceStep)
	mux.HandleFunc("DELETE /api/sequences/{id}/steps/{index}", h.APIRemoveStep)
	mux.HandleFunc("GET /api/sequences/{id}/insights", h.APIInsights)
	mux.HandleFunc("GET /api/poses", h.APIListPoses)
	mux.HandleFunc("POST /api/poses", h.APIStorePose)
	mux.HandleFunc("GET /api/flow-blocks", h.APIListFlowBlocks)
	mux.HandleFunc("POST /api/flow-blocks", h.APIStoreFlowBlock)
	mux.HandleFunc("DELETE /api/flow-blocks/{id}", h.APIDeleteFlowBlock)
	mux.HandleFunc("POST /api/purge", h.APIPurge)

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           requestLog(logger, securityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLog logs one debug line per request.
func requestLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *slog.Logger) error {
	logger = logging.OrDiscard(logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("vinyasa UI running", "url", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
