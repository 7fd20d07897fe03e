package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rrdexport/internal/api"
	"rrdexport/internal/config"
	"rrdexport/internal/logging"
	"rrdexport/internal/reporting"
)

var errServeDisabled = errors.New("http.enabled must be true to serve")

// Runtime defines inputs required to serve the HTTP adapter.
// Params: ConfigPath points to the TOML configuration file; Reload triggers a catalog reload.
// Returns: Runtime value used by Run.
type Runtime struct {
	ConfigPath string
	Reload     <-chan struct{}
}

// service is the long-lived HTTP side: it keeps one listener and accepts new catalogs in place.
type service interface {
	Run(context.Context) error
	Swap(*reporting.Exporter, api.Options, *slog.Logger) error
}

type runDeps struct {
	loadConfig func(string) (*config.Config, error)
	newLogger  func(config.LogConfig) (*slog.Logger, func(), error)
	build      func(*config.Config, *slog.Logger) (*exporterRuntime, error)
	newService func(*exporterRuntime, api.Options, *slog.Logger) service
	startPprof func(context.Context, config.PprofConfig, *slog.Logger) (func(), error)
}

// generation is one applied config: the catalog it built lives in the service,
// the logger sink and pprof listener are owned here.
type generation struct {
	cfg         *config.Config
	logger      *slog.Logger
	closeLogger func()
	stopPprof   func()
}

// release stops the pprof listener and closes the logger sink.
func (g *generation) release() {
	if g.stopPprof != nil {
		g.stopPprof()
		g.stopPprof = nil
	}
	if g.closeLogger != nil {
		g.closeLogger()
		g.closeLogger = nil
	}
}

// Run serves the exporter over HTTP until ctx ends; each Reload signal rebuilds the catalog
// and swaps it under the running listener.
// Params: ctx controls lifecycle; rt provides the config path and optional reload trigger.
// Returns: startup or serve error, nil on graceful stop.
func Run(ctx context.Context, rt Runtime) error {
	return runWithDeps(ctx, rt, defaultRunDeps())
}

func defaultRunDeps() runDeps {
	return runDeps{
		loadConfig: config.Load,
		newLogger:  logging.New,
		build:      buildExporter,
		newService: func(rt *exporterRuntime, opts api.Options, logger *slog.Logger) service {
			return api.New(rt.exporter, opts, logger)
		},
		startPprof: startPprofServer,
	}
}

// httpOptions derives adapter options from config and the built runtime.
func httpOptions(cfg *config.Config, rt *exporterRuntime) api.Options {
	return api.Options{
		Listen:            cfg.HTTP.Listen,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		DefaultWindow:     cfg.Export.DefaultWindow.Duration,
		Filter:            rt.filter,
	}
}

func runWithDeps(ctx context.Context, rt Runtime, deps runDeps) error {
	if strings.TrimSpace(rt.ConfigPath) == "" {
		return fmt.Errorf("config path is required")
	}

	cfg, err := deps.loadConfig(rt.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.HTTP.Enabled {
		return errServeDisabled
	}

	logger, closeLogger, err := deps.newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	current := &generation{cfg: cfg, logger: logger, closeLogger: closeLogger}
	defer func() { current.release() }()

	exp, err := deps.build(cfg, logger)
	if err != nil {
		return fmt.Errorf("build exporter: %w", err)
	}
	svc := deps.newService(exp, httpOptions(cfg, exp), logger)

	if current.stopPprof, err = deps.startPprof(ctx, cfg.Pprof, logger); err != nil {
		return fmt.Errorf("start pprof: %w", err)
	}
	logStartup(logger, cfg, exp)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(serveCtx)
	}()

	reload := rt.Reload
	for {
		select {
		case runErr := <-done:
			if ctx.Err() != nil {
				current.logger.Info("rrdexport stopped", slog.String("reason", ctx.Err().Error()))
				return nil
			}
			if runErr == nil {
				runErr = errors.New("server exited without context cancellation")
			}
			current.logger.Error("http server stopped unexpectedly", slog.String("error", runErr.Error()))
			return fmt.Errorf("serve: %w", runErr)
		case <-ctx.Done():
			cancel()
			<-done
			current.logger.Info("rrdexport stopped", slog.String("reason", ctx.Err().Error()))
			return nil
		case _, ok := <-reload:
			if !ok {
				reload = nil
				continue
			}
			next, reloadErr := reloadGeneration(ctx, rt.ConfigPath, current, svc, deps)
			if reloadErr != nil {
				current.logger.Error("config reload rejected, previous catalog kept", slog.String("error", reloadErr.Error()))
				continue
			}
			current = next
		}
	}
}

// reloadGeneration builds a catalog from the current config file and swaps it into svc.
// Nothing observable changes unless every step succeeds; the listener is never closed.
// Params: ctx root lifecycle; path config path; current applied generation; svc running service; deps builders.
// Returns: the new generation, or an error with current left untouched.
func reloadGeneration(
	ctx context.Context,
	path string,
	current *generation,
	svc service,
	deps runDeps,
) (*generation, error) {
	current.logger.Info("config reload requested")

	cfg, err := deps.loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("reload config: %w", err)
	}
	if !cfg.HTTP.Enabled {
		return nil, errServeDisabled
	}

	logger, closeLogger, err := deps.newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init reload logger: %w", err)
	}
	exp, err := deps.build(cfg, logger)
	if err != nil {
		closeLogger()
		return nil, fmt.Errorf("build exporter: %w", err)
	}
	if err := svc.Swap(exp.exporter, httpOptions(cfg, exp), logger); err != nil {
		closeLogger()
		return nil, fmt.Errorf("apply reload: %w", err)
	}

	next := &generation{cfg: cfg, logger: logger, closeLogger: closeLogger, stopPprof: current.stopPprof}
	current.stopPprof = nil
	if cfg.Pprof != current.cfg.Pprof {
		if next.stopPprof != nil {
			next.stopPprof()
		}
		next.stopPprof, err = deps.startPprof(ctx, cfg.Pprof, logger)
		if err != nil {
			logger.Error("pprof restart failed, profiling disabled until next reload", slog.String("error", err.Error()))
			next.stopPprof = nil
		}
	}
	current.release()

	logger.Info("config reload applied",
		slog.String("base_path", cfg.RRD.BasePath),
		slog.Int("families", exp.catalog.Len()),
	)
	return next, nil
}

// logStartup emits initial startup metadata.
// Params: logger is initialized slog logger; cfg is validated runtime config; rt built exporter runtime.
// Returns: none.
func logStartup(logger *slog.Logger, cfg *config.Config, rt *exporterRuntime) {
	daemon := cfg.RRD.DaemonAddress()
	if daemon == "" {
		daemon = "disabled"
	}
	logger.Info(
		"rrdexport started",
		slog.String("base_path", cfg.RRD.BasePath),
		slog.String("rrdtool", cfg.RRD.Binary),
		slog.String("daemon", daemon),
		slog.String("listen", cfg.HTTP.Listen),
		slog.Int("families", rt.catalog.Len()),
	)
}
