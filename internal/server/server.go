// Package server exposes the console controls and the log viewer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/config"
	"github.com/xkilldash9x/domsentry/internal/console"
	"github.com/xkilldash9x/domsentry/internal/logview"
	"github.com/xkilldash9x/domsentry/internal/reporting"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server serves the control API. Destructive snapshot routes require
// ?confirm=true since an HTTP client cannot answer a prompt.
type Server struct {
	console         *console.Console
	logger          *zap.Logger
	addr            string
	shutdownTimeout time.Duration
	router          chi.Router
}

func New(c *console.Console, cfg config.ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		console:         c,
		logger:          logger.Named("server"),
		addr:            cfg.Addr,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.router = s.routes()
	return s
}

// Handler is the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/scan", s.handleScan)
		r.Post("/fix", s.handleFix)
		r.Post("/export", s.handleExport)

		r.Route("/snapshot", func(r chi.Router) {
			r.Get("/", s.handleSnapshotInfo)
			r.Post("/", s.handleSnapshotCreate)
			r.Put("/", s.handleSnapshotRestore)
			r.Delete("/", s.handleSnapshotDelete)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/", s.handleLogs)
			r.Delete("/", s.handleLogsClear)
			r.Get("/export", s.handleLogsExport)
			r.Post("/test", s.handleLogsTest)
		})
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP control surface listening.", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("HTTP control surface stopped.")
	return nil
}

// -- Handlers --

type scanResponse struct {
	Issues     int                     `json:"issues"`
	Statistics *schemas.ScanStatistics `json:"statistics"`
}

type fixResponse struct {
	Fixed int `json:"fixed"`
	// FollowUp is true when a deferred re-scan was scheduled.
	FollowUp bool `json:"followUp"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type logsResponse struct {
	Entries []schemas.LogEntry `json:"entries"`
	Counts  logview.Counts     `json:"counts"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.console.Refresh(r.Context()))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	issues, stats, err := s.console.Scan(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scanResponse{Issues: issues, Statistics: stats})
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	fixed, saga, err := s.console.Fix(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fixResponse{Fixed: fixed, FollowUp: saga != nil})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	paths, err := s.console.Export(r.Context())
	switch {
	case errors.Is(err, reporting.ErrNoStatistics):
		s.writeError(w, http.StatusConflict, err)
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
	default:
		s.writeJSON(w, http.StatusOK, map[string][]string{"paths": paths})
	}
}

func (s *Server) handleSnapshotInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := s.console.SnapshotInfo(r.Context())
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("no snapshot"))
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSnapshotCreate(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		s.writeError(w, http.StatusPreconditionRequired, errors.New(console.PromptCreateSnapshot+" Repeat with ?confirm=true"))
		return
	}
	ok, err := s.console.CreateSnapshot(r.Context())
	s.writeOutcome(w, ok, err)
}

func (s *Server) handleSnapshotRestore(w http.ResponseWriter, r *http.Request) {
	s.writeOutcome(w, s.console.RestoreSnapshot(r.Context()), nil)
}

func (s *Server) handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	if !confirmed(r) {
		s.writeError(w, http.StatusPreconditionRequired, errors.New(console.PromptDeleteSnapshot+" Repeat with ?confirm=true"))
		return
	}
	ok, err := s.console.DeleteSnapshot(r.Context())
	s.writeOutcome(w, ok, err)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := logview.Query{Level: r.URL.Query().Get("level"), Search: r.URL.Query().Get("q")}
	if err := q.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, counts := s.console.Logs(q)
	s.writeJSON(w, http.StatusOK, logsResponse{Entries: entries, Counts: counts})
}

func (s *Server) handleLogsClear(w http.ResponseWriter, r *http.Request) {
	if err := s.console.ClearLogs(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogsExport(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.console.LogExport()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleLogsTest(w http.ResponseWriter, r *http.Request) {
	s.console.TestEvents()
	w.WriteHeader(http.StatusNoContent)
}

// -- Helpers --

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

// writeOutcome maps a boolean control result. A false result already produced
// a user notification, so it is reported as 422 with no further detail.
func (s *Server) writeOutcome(w http.ResponseWriter, ok bool, err error) {
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, okResponse{OK: ok})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response.", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served.",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
