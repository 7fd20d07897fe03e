package reporting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"rrdexport/internal/rrdtool"
)

// FutureTolerance bounds accepted clock skew between archive timestamps and now.
const FutureTolerance = 1800 * time.Second

// Inspector reads archive metadata.
// Params: ctx for cancellation; path archive path.
// Returns: last update time, false when unknown, or inspection error.
type Inspector interface {
	LastUpdate(ctx context.Context, path string) (time.Time, bool, error)
}

// FreshnessGuard rejects archives whose last update lies too far in the future.
type FreshnessGuard struct {
	inspector Inspector
	layout    Layout
	now       func() time.Time
	logger    *slog.Logger
}

// NewFreshnessGuard creates a guard.
// Params: inspector metadata reader; layout storage root for relative paths; logger (nil discards).
// Returns: guard using wall-clock time.
func NewFreshnessGuard(inspector Inspector, layout Layout, logger *slog.Logger) *FreshnessGuard {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FreshnessGuard{
		inspector: inspector,
		layout:    layout,
		now:       time.Now,
		logger:    logger,
	}
}

// Check inspects every path once, in order, and stops at the first failure.
// Params: ctx for cancellation; paths archive paths.
// Returns: TimestampInFutureError, QueryExecutionError for inspection failures, or nil.
func (g *FreshnessGuard) Check(ctx context.Context, paths []string) error {
	for _, path := range paths {
		lastUpdate, found, err := g.inspector.LastUpdate(ctx, path)
		if err != nil {
			return wrapToolError("inspect", err)
		}
		if !found {
			continue
		}

		now := g.now()
		if !lastUpdate.After(now.Add(FutureTolerance)) {
			continue
		}

		rel := g.layout.Rel(path)
		pause := lastUpdate.Sub(now)
		g.logger.Warn("rrd update time in the future",
			slog.String("path", rel),
			slog.Time("last_update", lastUpdate),
			slog.Duration("pause", pause),
		)
		return &TimestampInFutureError{
			Path:       rel,
			LastUpdate: lastUpdate,
			Pause:      pause,
			PauseText:  strings.TrimSpace(humanize.RelTime(now, lastUpdate, "", "")),
		}
	}
	return nil
}

// wrapToolError converts rrdtool client errors into QueryExecutionError.
// Params: op operation name; err client error.
// Returns: typed execution error; context cancellation is passed through unchanged.
func wrapToolError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	execErr := &QueryExecutionError{Op: op, Err: err}
	var cmdErr *rrdtool.CommandError
	if errors.As(err, &cmdErr) {
		execErr.Diagnostic = cmdErr.Stderr
	}
	if errors.Is(err, rrdtool.ErrTimeout) {
		execErr.Timeout = true
	}
	return execErr
}
