package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	pprofhttp "net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"rrdexport/internal/config"
)

const (
	pprofShutdownTimeout = 3 * time.Second
	pprofReadHeaderTO    = 2 * time.Second
)

// pprofRouter mounts the runtime profiling endpoints.
// Params: none.
// Returns: router serving /debug/pprof/*.
func pprofRouter() *mux.Router {
	router := mux.NewRouter()
	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/cmdline", pprofhttp.Cmdline)
	debug.HandleFunc("/profile", pprofhttp.Profile)
	debug.HandleFunc("/symbol", pprofhttp.Symbol)
	debug.HandleFunc("/trace", pprofhttp.Trace)
	debug.PathPrefix("/").HandlerFunc(pprofhttp.Index)
	return router
}

// startPprofServer starts the optional pprof listener next to the API and wires graceful shutdown.
// Params: ctx controls lifecycle; cfg provides enabled/listen options; logger reports runtime events.
// Returns: stop function (idempotent) and startup error.
func startPprofServer(ctx context.Context, cfg config.PprofConfig, logger *slog.Logger) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", cfg.Listen, err)
	}

	server := &http.Server{
		Handler:           pprofRouter(),
		ReadHeaderTimeout: pprofReadHeaderTO,
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), pprofShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("pprof shutdown error", slog.String("error", err.Error()))
			}
		})
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("pprof server failed", slog.String("addr", listener.Addr().String()), slog.String("error", err.Error()))
		}
	}()

	logger.Info("pprof server started", slog.String("addr", listener.Addr().String()))
	return stop, nil
}
