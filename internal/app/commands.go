package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"rrdexport/internal/config"
	"rrdexport/internal/reporting"
)

// ErrUsage marks command-line misuse; callers print usage and exit with a distinct code.
var ErrUsage = errors.New("usage")

// Command is one non-serving CLI invocation.
// Params: ConfigPath optional TOML path (empty uses defaults); Name command name; Args remaining arguments; Stdout result sink.
type Command struct {
	ConfigPath string
	Name       string
	Args       []string
	Stdout     io.Writer
}

type commandDeps struct {
	loadConfig func(string) (*config.Config, error)
	newLogger  func(config.LogConfig) (*slog.Logger, func(), error)
	build      func(*config.Config, *slog.Logger) (*exporterRuntime, error)
	now        func() time.Time
}

// Execute runs families, export or query once and writes JSON to cmd.Stdout.
// Params: ctx cancellation for child processes; cmd invocation.
// Returns: ErrUsage-wrapped error for bad arguments and rejected requests, exporter errors otherwise.
func Execute(ctx context.Context, cmd Command) error {
	return executeWithDeps(ctx, cmd, commandDeps{
		loadConfig: loadConfigOrDefault,
		newLogger:  defaultRunDeps().newLogger,
		build:      buildExporter,
		now:        time.Now,
	})
}

func executeWithDeps(ctx context.Context, cmd Command, deps commandDeps) error {
	cfg, err := deps.loadConfig(cmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closeLogger, err := deps.newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLogger()

	rt, err := deps.build(cfg, logger)
	if err != nil {
		return err
	}

	switch cmd.Name {
	case "families":
		err = runFamilies(ctx, rt, cmd.Stdout)
	case "export":
		err = runExport(ctx, rt, cfg, cmd, deps.now())
	case "query":
		err = runQuery(rt, cmd)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd.Name)
	}

	var reqErr *reporting.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return err
}

func loadConfigOrDefault(path string) (*config.Config, error) {
	if strings.TrimSpace(path) == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runFamilies(ctx context.Context, rt *exporterRuntime, stdout io.Writer) error {
	out := make([]reporting.Description, 0, rt.catalog.Len())
	for _, family := range rt.catalog.Families() {
		if !rt.layout.HasData(family) {
			continue
		}
		desc, err := reporting.Describe(ctx, family, rt.filter.Allow)
		if err != nil {
			return err
		}
		out = append(out, desc)
	}
	return writeJSON(stdout, out)
}

func runExport(ctx context.Context, rt *exporterRuntime, cfg *config.Config, cmd Command, now time.Time) error {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	family := flags.String("family", "", "metric family name")
	identifier := flags.String("identifier", "", "instance identifier for keyed families")
	startRaw := flags.String("start", "", "window start: unix seconds, RFC3339, now or relative offset")
	endRaw := flags.String("end", "now", "window end")
	noAggregate := flags.Bool("no-aggregate", false, "skip min/mean/max series")
	kindsRaw := flags.String("aggregations", "", "comma separated aggregation kinds")
	if err := flags.Parse(cmd.Args); err != nil {
		return fmt.Errorf("%w: export: %v", ErrUsage, err)
	}
	if *family == "" {
		return fmt.Errorf("%w: export requires -family", ErrUsage)
	}

	end, err := reporting.ParseTime(*endRaw, now)
	if err != nil {
		return fmt.Errorf("%w: -end: %v", ErrUsage, err)
	}
	start := end.Add(-cfg.Export.DefaultWindow.Duration)
	if *startRaw != "" {
		if start, err = reporting.ParseTime(*startRaw, now); err != nil {
			return fmt.Errorf("%w: -start: %v", ErrUsage, err)
		}
	}

	var kinds []string
	if *kindsRaw != "" {
		kinds = []string{}
		for _, kind := range strings.Split(*kindsRaw, ",") {
			if kind = strings.TrimSpace(kind); kind != "" {
				kinds = append(kinds, strings.ToLower(kind))
			}
		}
	}

	result, err := rt.exporter.Export(ctx, reporting.Request{
		Family:       *family,
		Identifier:   *identifier,
		Start:        start,
		End:          end,
		Aggregate:    !*noAggregate,
		Aggregations: kinds,
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd.Stdout, result)
}

func runQuery(rt *exporterRuntime, cmd Command) error {
	flags := flag.NewFlagSet("query", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	family := flags.String("family", "", "metric family name")
	identifier := flags.String("identifier", "", "instance identifier for keyed families")
	if err := flags.Parse(cmd.Args); err != nil {
		return fmt.Errorf("%w: query: %v", ErrUsage, err)
	}
	if *family == "" {
		return fmt.Errorf("%w: query requires -family", ErrUsage)
	}

	tokens, err := rt.exporter.Query(*family, *identifier)
	if err != nil {
		return err
	}
	return writeJSON(cmd.Stdout, tokens)
}

func writeJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
