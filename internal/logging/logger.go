// Package logging builds the process slog logger from configuration.
package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"rrdexport/internal/config"
)

const (
	ansiReset   = "\x1b[0m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
	ansiGray    = "\x1b[90m"
)

var levelColors = map[string]string{
	"DEBUG": ansiGray,
	"INFO":  ansiBlue,
	"WARN":  ansiMagenta,
	"ERROR": ansiRed,
}

// New builds a logger writing to the enabled console and file sinks.
// Params: cfg validated log configuration.
// Returns: logger, close function releasing file handles, or sink setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	handlers := make([]slog.Handler, 0, 2)
	closers := make([]io.Closer, 0, 1)
	closeAll := func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}

	if cfg.Console.Enabled {
		var dst io.Writer = os.Stderr
		if cfg.Console.Format == "line" && isTerminal(os.Stderr) {
			dst = &colorLineWriter{dst: os.Stderr}
		}
		handler, err := newHandler(dst, cfg.Console)
		if err != nil {
			return nil, nil, fmt.Errorf("log.console: %w", err)
		}
		handlers = append(handlers, handler)
	}

	if cfg.File.Enabled {
		file, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", cfg.File.Path, err)
		}
		closers = append(closers, file)
		handler, err := newHandler(file, cfg.File)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("log.file: %w", err)
		}
		handlers = append(handlers, handler)
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closeAll, nil
	case 1:
		return slog.New(handlers[0]), closeAll, nil
	default:
		return slog.New(fanoutHandler(handlers)), closeAll, nil
	}
}

// newHandler builds one sink handler.
// Params: dst output writer; sink level and format.
// Returns: handler or error for unsupported values.
func newHandler(dst io.Writer, sink config.LogSinkConfig) (slog.Handler, error) {
	level, err := parseLevel(sink.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch sink.Format {
	case "", "line":
		return slog.NewTextHandler(dst, opts), nil
	case "json":
		return slog.NewJSONHandler(dst, opts), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", sink.Format)
	}
}

func parseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", value)
	}
}

func isTerminal(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}

// fanoutHandler forwards every record to all sinks that accept its level.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(h))
	for idx, handler := range h {
		out[idx] = handler.WithAttrs(attrs)
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(h))
	for idx, handler := range h {
		out[idx] = handler.WithGroup(name)
	}
	return out
}

// colorLineWriter colours text-handler lines by level and highlights values.
// Quoted strings are green, addresses and paths cyan, numbers yellow.
type colorLineWriter struct {
	mu  sync.Mutex
	dst io.Writer
}

// Write renders one log line.
// Params: payload one slog text line, optionally newline terminated.
// Returns: len(payload) on success or destination write error.
func (w *colorLineWriter) Write(payload []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := string(payload)
	newline := strings.HasSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\n")

	fields := splitFields(line)
	base := ""
	for _, field := range fields {
		if value, ok := strings.CutPrefix(field, "level="); ok {
			base = levelColors[value]
			break
		}
	}
	if base == "" {
		if _, err := w.dst.Write(payload); err != nil {
			return 0, err
		}
		return len(payload), nil
	}

	var out bytes.Buffer
	out.Grow(len(payload) + 64)
	out.WriteString(base)
	for idx, field := range fields {
		if idx > 0 {
			out.WriteByte(' ')
		}
		key, value, found := strings.Cut(field, "=")
		if !found || strings.HasPrefix(key, `"`) {
			out.WriteString(field)
			continue
		}
		out.WriteString(key)
		out.WriteByte('=')
		if color := valueColor(value); color != "" {
			out.WriteString(color + value + ansiReset + base)
		} else {
			out.WriteString(value)
		}
	}
	out.WriteString(ansiReset)
	if newline {
		out.WriteByte('\n')
	}

	if _, err := w.dst.Write(out.Bytes()); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// splitFields splits on spaces outside double quotes.
func splitFields(line string) []string {
	fields := make([]string, 0, 8)
	start, inQuote := 0, false
	for idx := 0; idx < len(line); idx++ {
		switch line[idx] {
		case '\\':
			if inQuote {
				idx++
			}
		case '"':
			inQuote = !inQuote
		case ' ':
			if !inQuote {
				if idx > start {
					fields = append(fields, line[start:idx])
				}
				start = idx + 1
			}
		}
	}
	if start < len(line) {
		fields = append(fields, line[start:])
	}
	return fields
}

func valueColor(value string) string {
	switch {
	case value == "":
		return ""
	case strings.HasPrefix(value, `"`):
		return ansiGreen
	case isAddress(value), strings.HasPrefix(value, "/"):
		return ansiCyan
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return ansiYellow
	}
	return ""
}

func isAddress(value string) bool {
	if net.ParseIP(value) != nil {
		return true
	}
	host, _, err := net.SplitHostPort(value)
	return err == nil && net.ParseIP(host) != nil
}
