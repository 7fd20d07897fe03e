package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rrdexport/internal/rrdtool"
)

// fakeTool records rrdtool invocations and serves canned answers.
type fakeTool struct {
	lastUpdate map[string]time.Time
	infoErr    error
	export     *rrdtool.Export
	xportErr   error

	inspected []string
	xports    [][]string
}

func (f *fakeTool) LastUpdate(_ context.Context, path string) (time.Time, bool, error) {
	f.inspected = append(f.inspected, path)
	if f.infoErr != nil {
		return time.Time{}, false, f.infoErr
	}
	ts, ok := f.lastUpdate[path]
	return ts, ok, nil
}

func (f *fakeTool) Xport(_ context.Context, _, _ time.Time, tokens []string) (*rrdtool.Export, error) {
	f.xports = append(f.xports, tokens)
	if f.xportErr != nil {
		return nil, f.xportErr
	}
	return f.export, nil
}

func newTestExporter(t *testing.T, tool *fakeTool) *Exporter {
	t.Helper()
	catalog := NewCatalog()
	for _, family := range Builtins(Layout{Base: "/data"}) {
		require.NoError(t, catalog.Register(family))
	}
	return NewExporter(catalog, Layout{Base: "/data"}, tool, nil)
}

func sampleExport() *rrdtool.Export {
	return &rrdtool.Export{
		Meta: rrdtool.Meta{Start: 100, End: 300, Step: 100, Legend: []string{"load_shortterm", "load_midterm", "load_longterm"}},
		Data: [][]rrdtool.Sample{
			{rrdtool.Value(1), rrdtool.Value(2), rrdtool.Value(3)},
			{rrdtool.Absent, rrdtool.Absent, rrdtool.Absent},
		},
	}
}

// TestExporter_Export verifies the happy path assembles metadata and aggregations.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_Export(t *testing.T) {
	tool := &fakeTool{export: sampleExport()}
	exporter := newTestExporter(t, tool)

	result, err := exporter.Export(context.Background(), Request{
		Family:    "load",
		Start:     time.Unix(100, 0),
		End:       time.Unix(300, 0),
		Aggregate: true,
	})
	require.NoError(t, err)
	require.Equal(t, "load", result.Name)
	require.Nil(t, result.Identifier)
	require.Equal(t, int64(100), result.Step)
	require.Len(t, result.Data, 2)
	require.Equal(t, []rrdtool.Sample{rrdtool.Value(3), rrdtool.Absent}, result.Aggregations["max"])
	require.Equal(t, []string{"/data/load/load.rrd"}, tool.inspected)
	require.Len(t, tool.xports, 1)
}

// TestExporter_ExportKeyed verifies identifiers flow into paths, titles and the result.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_ExportKeyed(t *testing.T) {
	tool := &fakeTool{export: sampleExport()}
	exporter := newTestExporter(t, tool)

	result, err := exporter.Export(context.Background(), Request{Family: "interface", Identifier: "eth0"})
	require.NoError(t, err)
	require.NotNil(t, result.Identifier)
	require.Equal(t, "eth0", *result.Identifier)
	require.Equal(t, "Interface Traffic (eth0)", result.Title)
	require.Empty(t, result.Aggregations)
	require.Equal(t, "DEF:if_octets_rx=/data/interface-eth0/if_octets.rrd:rx:AVERAGE", tool.xports[0][0])
}

// TestExporter_UnknownAggregationBeforeProcess verifies no child process runs for a bad kind.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_UnknownAggregationBeforeProcess(t *testing.T) {
	tool := &fakeTool{export: sampleExport()}
	exporter := newTestExporter(t, tool)

	result, err := exporter.Export(context.Background(), Request{
		Family:       "load",
		Aggregate:    true,
		Aggregations: []string{"min", "median"},
	})
	require.Nil(t, result)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Empty(t, tool.inspected)
	require.Empty(t, tool.xports)
}

// TestExporter_UnknownFamily verifies lookups fail before any process runs.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_UnknownFamily(t *testing.T) {
	tool := &fakeTool{}
	_, err := newTestExporter(t, tool).Export(context.Background(), Request{Family: "gpu"})

	var unknown *UnknownFamilyError
	require.True(t, errors.As(err, &unknown))
	require.Empty(t, tool.inspected)
}

// TestExporter_FutureTimestamp verifies the freshness guard blocks xport.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_FutureTimestamp(t *testing.T) {
	tool := &fakeTool{
		export:     sampleExport(),
		lastUpdate: map[string]time.Time{"/data/load/load.rrd": time.Now().Add(3 * time.Hour)},
	}
	result, err := newTestExporter(t, tool).Export(context.Background(), Request{Family: "load"})
	require.Nil(t, result)

	var future *TimestampInFutureError
	require.True(t, errors.As(err, &future))
	require.Equal(t, "load/load.rrd", future.Path)
	require.Empty(t, tool.xports)
}

// TestExporter_ExecutionErrors verifies client failures surface as QueryExecutionError.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_ExecutionErrors(t *testing.T) {
	cmdErr := &rrdtool.CommandError{Command: "rrdtool xport", ExitCode: 1, Stderr: "ERROR: opening 'x': No such file"}

	cases := []struct {
		name    string
		tool    *fakeTool
		op      string
		timeout bool
	}{
		{name: "xport exit", tool: &fakeTool{xportErr: cmdErr}, op: "export"},
		{name: "info exit", tool: &fakeTool{infoErr: cmdErr}, op: "inspect"},
		{name: "timeout", tool: &fakeTool{xportErr: rrdtool.ErrTimeout}, op: "export", timeout: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := newTestExporter(t, tc.tool).Export(context.Background(), Request{Family: "load"})
			require.Nil(t, result)

			var execErr *QueryExecutionError
			require.True(t, errors.As(err, &execErr))
			require.Equal(t, tc.op, execErr.Op)
			require.Equal(t, tc.timeout, execErr.Timeout)
			if !tc.timeout {
				require.Equal(t, cmdErr.Stderr, execErr.Diagnostic)
				require.Contains(t, err.Error(), "No such file")
			}
		})
	}
}

// TestExporter_CanceledPassesThrough verifies cancellation is not reported as an execution error.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_CanceledPassesThrough(t *testing.T) {
	tool := &fakeTool{xportErr: context.Canceled}
	_, err := newTestExporter(t, tool).Export(context.Background(), Request{Family: "load"})

	require.ErrorIs(t, err, context.Canceled)
	var execErr *QueryExecutionError
	require.False(t, errors.As(err, &execErr))
}

// TestExporter_InvertedWindow verifies end before start is rejected.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_InvertedWindow(t *testing.T) {
	tool := &fakeTool{}
	_, err := newTestExporter(t, tool).Export(context.Background(), Request{
		Family: "load",
		Start:  time.Unix(200, 0),
		End:    time.Unix(100, 0),
	})

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr), "got %v", err)
	require.Equal(t, "load", reqErr.Family)
	require.Empty(t, tool.xports)
}

// TestExporter_IdentifierOutsideRoot verifies identifiers with path separators never reach rrdtool.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_IdentifierOutsideRoot(t *testing.T) {
	tool := &fakeTool{export: sampleExport()}
	exporter := newTestExporter(t, tool)

	for _, identifier := range []string{"../../../etc/x", "eth0/../../x", ".."} {
		_, err := exporter.Export(context.Background(), Request{Family: "interface", Identifier: identifier})
		var reqErr *RequestError
		require.True(t, errors.As(err, &reqErr), "%q: got %v", identifier, err)

		_, err = exporter.Query("interface", identifier)
		require.True(t, errors.As(err, &reqErr), "%q: got %v", identifier, err)
	}
	require.Empty(t, tool.inspected)
	require.Empty(t, tool.xports)
}

// TestExporter_Query verifies the dry-run token listing.
// Params: testing.T for assertions.
// Returns: none.
func TestExporter_Query(t *testing.T) {
	exporter := newTestExporter(t, &fakeTool{})

	tokens, err := exporter.Query("uptime", "")
	require.NoError(t, err)
	require.Equal(t, []string{
		"DEF:uptime_value=/data/uptime/uptime.rrd:value:AVERAGE",
		"CDEF:cuptime_value=uptime_value,86400,/",
		"XPORT:cuptime_value:uptime_value",
	}, tokens)
}
