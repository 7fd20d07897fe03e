package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rrdexport/internal/config"
)

// TestColorLineWriter_HighlightsLevelAndTokens verifies level and token coloring.
// Params: testing.T for assertions.
// Returns: none.
func TestColorLineWriter_HighlightsLevelAndTokens(t *testing.T) {
	var dst bytes.Buffer
	writer := &colorLineWriter{dst: &dst}

	line := `level=WARN msg="rrd update time in the future" path=/data/cpu/load.rrd daemon=10.20.30.40:42217 tokens=3`
	if _, err := writer.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	rendered := dst.String()
	if !strings.HasPrefix(rendered, ansiMagenta) {
		t.Fatalf("expected WARN line base color")
	}
	if !strings.Contains(rendered, ansiGreen+`"rrd update time in the future"`+ansiReset+ansiMagenta) {
		t.Fatalf("expected quoted string token color")
	}
	if !strings.Contains(rendered, ansiCyan+`/data/cpu/load.rrd`+ansiReset+ansiMagenta) {
		t.Fatalf("expected path token color")
	}
	if !strings.Contains(rendered, ansiCyan+`10.20.30.40:42217`+ansiReset+ansiMagenta) {
		t.Fatalf("expected address token color")
	}
	if !strings.Contains(rendered, ansiYellow+`3`+ansiReset+ansiMagenta) {
		t.Fatalf("expected number token color")
	}
	if !strings.HasSuffix(rendered, ansiReset+"\n") {
		t.Fatalf("expected reset before trailing newline, got %q", rendered)
	}
}

// TestColorLineWriter_NoLevelColor verifies passthrough for unknown levels.
// Params: testing.T for assertions.
// Returns: none.
func TestColorLineWriter_NoLevelColor(t *testing.T) {
	var dst bytes.Buffer
	writer := &colorLineWriter{dst: &dst}

	line := `msg="plain" value=42`
	if _, err := writer.Write([]byte(line)); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := dst.String(); got != line {
		t.Fatalf("expected passthrough line, got %q", got)
	}
}

// TestSplitFields_KeepsQuotedSpaces verifies quoted values stay one field.
// Params: testing.T for assertions.
// Returns: none.
func TestSplitFields_KeepsQuotedSpaces(t *testing.T) {
	got := splitFields(`level=INFO msg="a \"b\" c"  n=1`)
	want := []string{`level=INFO`, `msg="a \"b\" c"`, `n=1`}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected fields: %q", got)
	}
}

// TestNew_FileSinkWritesJSON verifies the file sink honours level and format.
// Params: testing.T for assertions.
// Returns: none.
func TestNew_FileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rrdexport.log")
	logger, closeFn, err := New(config.LogConfig{
		File: config.LogSinkConfig{Enabled: true, Level: "warn", Format: "json", Path: path},
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", slog.String("family", "cpu"))
	closeFn()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	body := string(raw)
	if strings.Contains(body, "hidden") {
		t.Fatalf("info record should be filtered: %s", body)
	}
	if !strings.Contains(body, `"msg":"shown"`) || !strings.Contains(body, `"family":"cpu"`) {
		t.Fatalf("expected json warn record: %s", body)
	}
}

// TestNew_RejectsBadFile verifies sink setup errors are returned.
// Params: testing.T for assertions.
// Returns: none.
func TestNew_RejectsBadFile(t *testing.T) {
	_, _, err := New(config.LogConfig{
		File: config.LogSinkConfig{Enabled: true, Level: "info", Format: "json", Path: filepath.Join(t.TempDir(), "missing", "x.log")},
	})
	if err == nil {
		t.Fatalf("expected open error")
	}
}

// TestFanoutHandler_RoutesByLevel verifies each sink applies its own level.
// Params: testing.T for assertions.
// Returns: none.
func TestFanoutHandler_RoutesByLevel(t *testing.T) {
	var debugSink, errorSink bytes.Buffer
	logger := slog.New(fanoutHandler{
		slog.NewTextHandler(&debugSink, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorSink, &slog.HandlerOptions{Level: slog.LevelError}),
	}).With(slog.String("component", "export"))

	logger.Debug("tokens")
	logger.Error("failed")

	if !strings.Contains(debugSink.String(), "msg=tokens") || !strings.Contains(debugSink.String(), "msg=failed") {
		t.Fatalf("debug sink missing records: %s", debugSink.String())
	}
	if strings.Contains(errorSink.String(), "msg=tokens") || !strings.Contains(errorSink.String(), "component=export") {
		t.Fatalf("unexpected error sink content: %s", errorSink.String())
	}
}

// TestIsTerminal_RegularFile verifies colour output is not enabled for redirected sinks.
// Params: t test context.
// Returns: none.
func TestIsTerminal_RegularFile(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "stderr.log"))
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer file.Close()

	if isTerminal(file) {
		t.Fatal("regular file must not be treated as a terminal")
	}
}
