package rrdtool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBinary is the rrdtool executable looked up in PATH.
	DefaultBinary = "rrdtool"
	// DefaultDaemon is the rrdcached socket address.
	DefaultDaemon = "unix:/var/run/rrdcached.sock"

	maxStdoutBytes = 64 << 20
	maxStderrBytes = 8 << 10
)

var reLastUpdate = regexp.MustCompile(`last_update = (\d+)`)

// ErrTimeout marks an rrdtool invocation stopped by its deadline.
var ErrTimeout = errors.New("rrdtool timed out")

// CommandError reports a non-zero rrdtool exit.
// Params: Command subcommand name; ExitCode process status (-1 when not started); Stderr capped diagnostic text.
// Returns: execution error.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

// Error renders exit status and stderr.
func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("rrdtool %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("rrdtool %s: %v (stderr: %s)", e.Command, e.Err, e.Stderr)
}

// Unwrap exposes the exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Config holds rrdtool invocation settings.
// Params: Binary executable; Daemon rrdcached address (empty disables --daemon); Timeout per invocation (0 disables); Env extra variables.
// Returns: client settings.
type Config struct {
	Binary  string
	Daemon  string
	Timeout time.Duration
	Env     map[string]string
}

// Client runs rrdtool as a blocking child process per call.
type Client struct {
	binary  string
	daemon  string
	timeout time.Duration
	env     []string
	logger  *slog.Logger
}

// New creates a client.
// Params: cfg invocation settings; logger for debug traces (nil discards).
// Returns: configured client.
func New(cfg Config, logger *slog.Logger) *Client {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var env []string
	if len(cfg.Env) > 0 {
		env = mergeEnvironment(cfg.Env)
	}

	return &Client{
		binary:  binary,
		daemon:  strings.TrimSpace(cfg.Daemon),
		timeout: cfg.Timeout,
		env:     env,
		logger:  logger,
	}
}

// Meta is the range metadata returned by xport.
type Meta struct {
	Start  int64    `json:"start"`
	End    int64    `json:"end"`
	Step   int64    `json:"step"`
	Legend []string `json:"legend"`
}

// Export is a decoded xport result: one row per timestamp, one column per XPORT directive.
type Export struct {
	Meta Meta       `json:"meta"`
	Data [][]Sample `json:"data"`
}

// LastUpdate reads last_update from `rrdtool info`.
// Params: ctx for cancellation; path archive path.
// Returns: last update time, false when the output has no last_update line, or run error.
func (c *Client) LastUpdate(ctx context.Context, path string) (time.Time, bool, error) {
	args := append([]string{"info"}, c.daemonArgs()...)
	args = append(args, path)

	stdout, err := c.run(ctx, args)
	if err != nil {
		return time.Time{}, false, err
	}

	m := reLastUpdate.FindSubmatch(stdout)
	if m == nil {
		return time.Time{}, false, nil
	}
	seconds, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last_update %q: %w", m[1], err)
	}
	return time.Unix(seconds, 0), true, nil
}

// Xport runs `rrdtool xport --json` over [start, end] with the given DEF/CDEF/XPORT tokens.
// Params: ctx for cancellation; start/end window; tokens query arguments.
// Returns: decoded export or run/parse error.
func (c *Client) Xport(ctx context.Context, start, end time.Time, tokens []string) (*Export, error) {
	args := append([]string{"xport"}, c.daemonArgs()...)
	args = append(args,
		"--json",
		"--end", strconv.FormatInt(end.Unix(), 10),
		"--start", strconv.FormatInt(start.Unix(), 10),
	)
	args = append(args, tokens...)

	stdout, err := c.run(ctx, args)
	if err != nil {
		return nil, err
	}
	return ParseExport(stdout)
}

// ParseExport decodes xport JSON output.
// Params: payload raw stdout.
// Returns: export or parse error when meta/data are missing.
func ParseExport(payload []byte) (*Export, error) {
	var raw struct {
		Meta *Meta      `json:"meta"`
		Data [][]Sample `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode xport output: %w", err)
	}
	if raw.Meta == nil {
		return nil, fmt.Errorf("decode xport output: missing meta field")
	}
	if raw.Data == nil {
		raw.Data = [][]Sample{}
	}
	return &Export{Meta: *raw.Meta, Data: raw.Data}, nil
}

// daemonArgs returns the --daemon flag pair when configured.
func (c *Client) daemonArgs() []string {
	if c.daemon == "" {
		return nil
	}
	return []string{"--daemon", c.daemon}
}

// run executes rrdtool and returns stdout.
// Params: ctx for cancellation; args command line after the binary.
// Returns: stdout bytes, ErrTimeout on deadline, ctx error on cancel, CommandError on non-zero exit.
func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	command := exec.CommandContext(runCtx, c.binary, args...)
	command.Env = c.env

	stdout := &cappedBuffer{max: maxStdoutBytes}
	stderr := &cappedBuffer{max: maxStderrBytes}
	command.Stdout = stdout
	command.Stderr = stderr

	started := time.Now()
	err := command.Run()
	c.logger.Debug("rrdtool finished",
		slog.String("command", args[0]),
		slog.Int("args", len(args)),
		slog.Duration("elapsed", time.Since(started)),
	)

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("rrdtool %s after %s: %w", args[0], time.Since(started).Round(time.Millisecond), ErrTimeout)
		}
		if errors.Is(runCtx.Err(), context.Canceled) {
			return nil, fmt.Errorf("rrdtool %s: %w", args[0], runCtx.Err())
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &CommandError{
			Command:  args[0],
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	if stdout.truncated {
		return nil, fmt.Errorf("rrdtool %s output exceeds %d bytes", args[0], maxStdoutBytes)
	}
	return stdout.Bytes(), nil
}

// mergeEnvironment builds the child environment with overrides applied in key order.
// Params: overrides key-value map.
// Returns: process environment slice.
func mergeEnvironment(overrides map[string]string) []string {
	out := make([]string, 0, len(os.Environ())+len(overrides))
	out = append(out, os.Environ()...)

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		out = append(out, key+"="+overrides[key])
	}
	return out
}
