package reporting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"rrdexport/internal/rrdtool"
)

// DefaultWindow is the export span used when a request leaves Start unset.
const DefaultWindow = time.Hour

// Tool is the rrdtool surface used by Exporter.
type Tool interface {
	Inspector
	Xport(ctx context.Context, start, end time.Time, tokens []string) (*rrdtool.Export, error)
}

// Request selects one export.
// Params: Family name; Identifier instance (empty for none); Start/End window (zero End means now, zero Start means End-DefaultWindow);
// Aggregate enables row statistics;
// Aggregations overrides the family kinds when non-nil.
type Request struct {
	Family       string
	Identifier   string
	Start        time.Time
	End          time.Time
	Aggregate    bool
	Aggregations []string
}

// Result is one export: metadata, row-major samples and optional aggregations.
type Result struct {
	Name         string                      `json:"name"`
	Identifier   *string                     `json:"identifier"`
	Title        string                      `json:"title"`
	Start        int64                       `json:"start"`
	End          int64                       `json:"end"`
	Step         int64                       `json:"step"`
	Legend       []string                    `json:"legend"`
	Data         [][]rrdtool.Sample          `json:"data"`
	Aggregations map[string][]rrdtool.Sample `json:"aggregations"`
}

// Exporter runs freshness check, query build, xport and aggregation for one family.
// It holds no per-call state; concurrent Export calls are independent.
type Exporter struct {
	catalog *Catalog
	layout  Layout
	tool    Tool
	guard   *FreshnessGuard
	logger  *slog.Logger
}

// NewExporter creates an exporter.
// Params: catalog read-only family registry; layout storage root; tool rrdtool client; logger (nil discards).
// Returns: exporter.
func NewExporter(catalog *Catalog, layout Layout, tool Tool, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exporter{
		catalog: catalog,
		layout:  layout,
		tool:    tool,
		guard:   NewFreshnessGuard(tool, layout, logger),
		logger:  logger,
	}
}

// Catalog returns the registry backing this exporter.
func (e *Exporter) Catalog() *Catalog {
	return e.catalog
}

// Layout returns the storage layout.
func (e *Exporter) Layout() Layout {
	return e.layout
}

// Query builds the token sequence without running rrdtool.
// Params: family name; identifier instance.
// Returns: xport tokens or lookup/configuration error.
func (e *Exporter) Query(family string, identifier string) ([]string, error) {
	f, err := e.catalog.Lookup(family)
	if err != nil {
		return nil, err
	}
	return BuildQuery(e.layout, f, identifier)
}

// Export runs one export. It either fully succeeds or returns an error; no partial result is returned.
// Params: ctx for cancellation and deadlines of child processes; req export selection.
// Returns: result or UnknownFamilyError, RequestError, ConfigurationError, TimestampInFutureError, QueryExecutionError, context error.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	f, err := e.catalog.Lookup(req.Family)
	if err != nil {
		return nil, err
	}
	start, end := req.Start, req.End
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.Add(-DefaultWindow)
	}
	if end.Before(start) {
		return nil, &RequestError{
			Family: f.Name,
			Reason: fmt.Sprintf("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)),
		}
	}

	identifier := req.Identifier
	if !f.Keyed {
		identifier = ""
	}

	kinds := []string(nil)
	if req.Aggregate {
		kinds = f.aggregations()
		if req.Aggregations != nil {
			kinds = req.Aggregations
		}
		for _, kind := range kinds {
			if _, err := lookupAggregation(kind); err != nil {
				return nil, &ConfigurationError{Family: f.Name, Reason: err.Error()}
			}
		}
	}

	tokens, err := BuildQuery(e.layout, f, identifier)
	if err != nil {
		return nil, err
	}

	if err := e.guard.Check(ctx, e.layout.Files(f, identifier)); err != nil {
		return nil, err
	}

	e.logger.Debug("rrd export",
		slog.String("family", f.Name),
		slog.String("identifier", identifier),
		slog.Int("tokens", len(tokens)),
		slog.Any("args", tokens),
	)

	export, err := e.tool.Xport(ctx, start, end, tokens)
	if err != nil {
		return nil, wrapToolError("export", err)
	}

	result := &Result{
		Name:         f.Name,
		Title:        f.TitleFor(identifier),
		Start:        export.Meta.Start,
		End:          export.Meta.End,
		Step:         export.Meta.Step,
		Legend:       export.Meta.Legend,
		Data:         export.Data,
		Aggregations: map[string][]rrdtool.Sample{},
	}
	if req.Identifier != "" {
		id := req.Identifier
		result.Identifier = &id
	}

	if len(kinds) > 0 {
		aggregated, err := Aggregate(export.Data, kinds)
		if err != nil {
			return nil, err
		}
		result.Aggregations = aggregated
	}
	return result, nil
}
