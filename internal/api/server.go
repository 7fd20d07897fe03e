// Package api exposes the exporter over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"rrdexport/internal/match"
	"rrdexport/internal/reporting"
)

const shutdownTimeout = 5 * time.Second

// ErrListenChanged rejects a reload that would move the listener; the address is bound once per process.
var ErrListenChanged = errors.New("http.listen cannot change without a restart")

// Options configures the HTTP adapter.
// Params: Listen host:port; ReadHeaderTimeout for the server; DefaultWindow used when start is omitted; Filter for listed identifiers.
type Options struct {
	Listen            string
	ReadHeaderTimeout time.Duration
	DefaultWindow     time.Duration
	Filter            *match.Filter
}

// generation is the reloadable part of the adapter. Requests read one generation for their whole lifetime.
type generation struct {
	exporter      *reporting.Exporter
	defaultWindow time.Duration
	filter        *match.Filter
	logger        *slog.Logger
}

// Server serves family listings and exports.
type Server struct {
	listen            string
	readHeaderTimeout time.Duration
	current           atomic.Pointer[generation]
	router            *mux.Router
	now               func() time.Time
}

// New creates the HTTP adapter and its routes.
// Params: exporter backing engine; opts listener and defaults; logger (nil discards).
// Returns: server ready for Run or Handler.
func New(exporter *reporting.Exporter, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		listen:            opts.Listen,
		readHeaderTimeout: opts.ReadHeaderTimeout,
		router:            mux.NewRouter(),
		now:               time.Now,
	}
	s.current.Store(newGeneration(exporter, opts, logger))

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/families", s.handleFamilies).Methods(http.MethodGet)
	v1.HandleFunc("/families/{name}", s.handleFamily).Methods(http.MethodGet)
	v1.HandleFunc("/families/{name}/export", s.handleExport).Methods(http.MethodGet)
	v1.HandleFunc("/families/{name}/query", s.handleQuery).Methods(http.MethodGet)
	s.router.Use(s.logRequests)
	return s
}

func newGeneration(exporter *reporting.Exporter, opts Options, logger *slog.Logger) *generation {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	window := opts.DefaultWindow
	if window <= 0 {
		window = reporting.DefaultWindow
	}
	return &generation{
		exporter:      exporter,
		defaultWindow: window,
		filter:        opts.Filter,
		logger:        logger,
	}
}

// Swap replaces catalog, defaults and logger under the running listener.
// In-flight requests finish against the generation they started with.
// Params: exporter rebuilt engine; opts new options (Listen must match the bound address); logger new logger.
// Returns: ErrListenChanged when opts.Listen differs; the previous generation stays active.
func (s *Server) Swap(exporter *reporting.Exporter, opts Options, logger *slog.Logger) error {
	if opts.Listen != s.listen {
		return fmt.Errorf("%w: bound %q, requested %q", ErrListenChanged, s.listen, opts.Listen)
	}
	s.current.Store(newGeneration(exporter, opts, logger))
	return nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
// Params: ctx lifecycle.
// Returns: listen/serve error, nil on graceful stop.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen %q: %w", s.listen, err)
	}
	return s.serve(ctx, listener)
}

func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.current.Load().logger.Warn("http shutdown error", slog.String("error", err.Error()))
			}
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()

	s.current.Load().logger.Info("http server started", slog.String("addr", listener.Addr().String()))
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// handleFamilies lists families that have data, with their identifiers.
func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	gen := s.current.Load()
	layout := gen.exporter.Layout()
	out := make([]reporting.Description, 0, gen.exporter.Catalog().Len())
	for _, family := range gen.exporter.Catalog().Families() {
		if !layout.HasData(family) {
			continue
		}
		desc, err := reporting.Describe(r.Context(), family, gen.filter.Allow)
		if err != nil {
			gen.writeError(w, r, err)
			return
		}
		out = append(out, desc)
	}
	gen.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFamily(w http.ResponseWriter, r *http.Request) {
	gen := s.current.Load()
	family, err := gen.exporter.Catalog().Lookup(mux.Vars(r)["name"])
	if err != nil {
		gen.writeError(w, r, err)
		return
	}
	desc, err := reporting.Describe(r.Context(), family, gen.filter.Allow)
	if err != nil {
		gen.writeError(w, r, err)
		return
	}
	gen.writeJSON(w, http.StatusOK, desc)
}

// handleExport runs one export.
// Query: identifier, start, end (see reporting.ParseTime), aggregate (bool, default true), aggregations (comma list).
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	gen := s.current.Load()
	req, err := exportRequest(mux.Vars(r)["name"], r, s.now(), gen.defaultWindow)
	if err != nil {
		gen.writeError(w, r, err)
		return
	}

	result, err := gen.exporter.Export(r.Context(), req)
	if err != nil {
		gen.writeError(w, r, err)
		return
	}
	gen.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	gen := s.current.Load()
	tokens, err := gen.exporter.Query(mux.Vars(r)["name"], r.URL.Query().Get("identifier"))
	if err != nil {
		gen.writeError(w, r, err)
		return
	}
	gen.writeJSON(w, http.StatusOK, map[string][]string{"tokens": tokens})
}

// exportRequest parses export query parameters.
// Params: family path variable; r incoming request; now reference time; window used when start is omitted.
// Returns: export request or badRequestError.
func exportRequest(family string, r *http.Request, now time.Time, window time.Duration) (reporting.Request, error) {
	query := r.URL.Query()

	end, err := reporting.ParseTime(query.Get("end"), now)
	if err != nil {
		return reporting.Request{}, &badRequestError{err: fmt.Errorf("end: %w", err)}
	}
	start := end.Add(-window)
	if raw := query.Get("start"); raw != "" {
		start, err = reporting.ParseTime(raw, now)
		if err != nil {
			return reporting.Request{}, &badRequestError{err: fmt.Errorf("start: %w", err)}
		}
	}
	if end.Before(start) {
		return reporting.Request{}, &badRequestError{err: fmt.Errorf("end is before start")}
	}

	aggregate := true
	if raw := query.Get("aggregate"); raw != "" {
		aggregate, err = strconv.ParseBool(raw)
		if err != nil {
			return reporting.Request{}, &badRequestError{err: fmt.Errorf("aggregate: %w", err)}
		}
	}

	var kinds []string
	if raw := query.Get("aggregations"); raw != "" {
		for _, kind := range strings.Split(raw, ",") {
			if kind = strings.TrimSpace(kind); kind != "" {
				kinds = append(kinds, strings.ToLower(kind))
			}
		}
		if kinds == nil {
			kinds = []string{}
		}
	}

	return reporting.Request{
		Family:       family,
		Identifier:   query.Get("identifier"),
		Start:        start,
		End:          end,
		Aggregate:    aggregate,
		Aggregations: kinds,
	}, nil
}

func (g *generation) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		g.logger.Warn("write response failed", slog.String("error", err.Error()))
	}
}

func (g *generation) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	g.logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("kind", body.Kind),
		slog.String("error", err.Error()),
	)
	g.writeJSON(w, status, body)
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.current.Load().logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.status),
			slog.Duration("elapsed", time.Since(started)),
		)
	})
}
