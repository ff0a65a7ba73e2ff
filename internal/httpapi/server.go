// Package httpapi serves the comparison pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"stockperf/internal/compare"
	"stockperf/internal/domain"
	"stockperf/internal/store"
)

const defaultTickerLimit = 50

// Server serves ticker lookup and comparison endpoints.
type Server struct {
	comparer  *compare.Comparer
	warehouse store.Warehouse
	table     string
	router    *chi.Mux
	server    *http.Server
	log       *slog.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, c *compare.Comparer, wh store.Warehouse, table string) *Server {
	s := &Server{
		comparer:  c,
		warehouse: wh,
		table:     table,
		router:    chi.NewRouter(),
		log:       slog.Default().With("component", "httpapi"),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tickers", s.handleTickers)
		r.Get("/tickers/{code}", s.handleTicker)
		r.Get("/compare", s.handleCompare)
		r.Get("/watermark", s.handleWatermark)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	limit := defaultTickerLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	dir := s.comparer.Directory()
	tickers := dir.Search(r.URL.Query().Get("q"), limit)
	if tickers == nil {
		tickers = []domain.TickerRecord{}
	}
	writeJSON(w, TickersResponse{Total: dir.Len(), Tickers: tickers})
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec, ok := s.comparer.Directory().Lookup(code)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown code "+code)
		return
	}
	writeJSON(w, rec)
}

// handleCompare answers GET /api/compare?codes=7203,6758&names=...&start=&end=
// with JSON, or CSV when format=csv.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := compare.Request{
		Codes: splitList(q["codes"]),
		Names: splitList(q["names"]),
	}
	var err error
	if req.Start, err = parseOptionalDate(q.Get("start")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.End, err = parseOptionalDate(q.Get("end")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.comparer.Compare(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("comparison failed", "error", err)
		writeError(w, http.StatusInternalServerError, "comparison failed")
		return
	}

	if strings.EqualFold(q.Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="normalized_prices.csv"`)
		if err := compare.WriteCSV(w, res.Rows()); err != nil {
			s.log.Error("writing CSV", "error", err)
		}
		return
	}
	writeJSON(w, convertResult(res))
}

func (s *Server) handleWatermark(w http.ResponseWriter, r *http.Request) {
	latest, ok, err := s.warehouse.MaxDate(r.Context(), s.table)
	if err != nil {
		s.log.Error("watermark query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "watermark query failed")
		return
	}
	resp := WatermarkResponse{Table: s.table, Empty: !ok}
	if ok {
		resp.Latest = domain.FormatDate(latest)
	}
	writeJSON(w, resp)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// splitList accepts both repeated parameters and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(s)
}
