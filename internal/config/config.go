package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"rrdexport/internal/reporting"
	"rrdexport/internal/rrdtool"
)

const (
	defaultLogLevel          = "info"
	defaultLogFormat         = "line"
	defaultRRDTimeout        = 30 * time.Second
	defaultHTTPListen        = "127.0.0.1:8080"
	defaultReadHeaderTimeout = 5 * time.Second
	defaultPprofListen       = "127.0.0.1:6060"
)

// Duration wraps time.Duration for TOML parsing.
// Params: text duration string (e.g. "5s", "1m").
// Returns: parse error on invalid duration.
type Duration struct {
	time.Duration
}

// UnmarshalText parses TOML duration values.
// Params: text is raw duration bytes from TOML.
// Returns: error when value is not a valid Go duration.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the root exporter configuration.
// Params: TOML document sections.
// Returns: validated runtime configuration.
type Config struct {
	Log       LogConfig       `toml:"log"`
	RRD       RRDConfig       `toml:"rrd"`
	Export    ExportConfig    `toml:"export"`
	Instances InstancesConfig `toml:"instances"`
	Family    []FamilyConfig  `toml:"family"`
	HTTP      HTTPConfig      `toml:"http"`
	Pprof     PprofConfig     `toml:"pprof"`
}

// LogConfig contains console/file logging configuration.
// Params: console and file sink options.
// Returns: logger sink settings.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink options from TOML.
// Returns: sink setup.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// RRDConfig locates archives and the rrdtool binary.
// Params: base path, binary, optional rrdcached address, per-process timeout and extra environment.
// Returns: rrd access settings.
type RRDConfig struct {
	BasePath string            `toml:"base_path"`
	Binary   string            `toml:"binary"`
	Daemon   *string           `toml:"daemon"`
	Timeout  Duration          `toml:"timeout"`
	Env      map[string]string `toml:"env"`
}

// DaemonAddress returns the rrdcached address; an explicit empty string disables it.
func (c RRDConfig) DaemonAddress() string {
	if c.Daemon == nil {
		return rrdtool.DefaultDaemon
	}
	return strings.TrimSpace(*c.Daemon)
}

// ExportConfig holds export defaults.
// Params: aggregation kinds applied to families without their own list; default window length.
// Returns: export defaults.
type ExportConfig struct {
	Aggregations  []string `toml:"aggregations"`
	DefaultWindow Duration `toml:"default_window"`
}

// InstancesConfig filters listed identifiers.
type InstancesConfig struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// FamilyConfig defines one user family; a family with a built-in name replaces it.
// Params: display fields, directory options and sources.
// Returns: family definition.
type FamilyConfig struct {
	Name             string         `toml:"name"`
	Title            string         `toml:"title"`
	VerticalLabel    string         `toml:"vertical_label"`
	Plugin           string         `toml:"plugin"`
	IdentifierPlugin *bool          `toml:"identifier_plugin"`
	Stacked          bool           `toml:"stacked"`
	StackedShowTotal bool           `toml:"stacked_show_total"`
	Extra            string         `toml:"extra"`
	Aggregations     []string       `toml:"aggregations"`
	Source           []SourceConfig `toml:"source"`
}

// Keyed reports whether the family directory carries an identifier suffix (default true).
func (f FamilyConfig) Keyed() bool {
	return f.IdentifierPlugin == nil || *f.IdentifierPlugin
}

// SourceConfig defines one family source.
type SourceConfig struct {
	Type      string `toml:"type"`
	DS        string `toml:"ds"`
	Transform string `toml:"transform"`
	Name      string `toml:"name"`
}

// HTTPConfig defines the HTTP adapter listener used by serve.
type HTTPConfig struct {
	Enabled           bool     `toml:"enabled"`
	Listen            string   `toml:"listen"`
	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
}

// PprofConfig defines optional runtime pprof HTTP endpoint.
// Params: enabled flag and listen address in host:port format.
// Returns: pprof runtime settings.
type PprofConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Load reads, expands, validates, and returns config from path.
// Params: path to TOML config file or directory with *.toml files.
// Returns: validated config pointer or error.
func Load(path string) (*Config, error) {
	raw, err := readConfigSource(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode TOML %q: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, as if loaded from an empty file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// readConfigSource reads one TOML file or concatenates *.toml files from directory.
// Params: path to config file or directory.
// Returns: raw TOML bytes or error.
func readConfigSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %q: %w", path, err)
	}

	if !info.IsDir() {
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", path, readErr)
		}
		return raw, nil
	}

	return readConfigDir(path)
}

// readConfigDir concatenates config snippets from one directory.
// Params: path to directory that contains *.toml files.
// Returns: concatenated TOML content or error.
func readConfigDir(path string) ([]byte, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %q: %w", path, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".toml") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("read config dir %q: no *.toml files", path)
	}

	var builder strings.Builder
	for _, name := range files {
		filePath := filepath.Join(path, name)
		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", filePath, readErr)
		}
		builder.Write(raw)
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}

	return []byte(builder.String()), nil
}

// applyDefaults fills defaults for optional configuration fields.
// Params: receiver config pointer.
// Returns: none.
func (c *Config) applyDefaults() {
	c.Log.Console.Level = lowerOrDefault(c.Log.Console.Level, defaultLogLevel)
	c.Log.Console.Format = lowerOrDefault(c.Log.Console.Format, defaultLogFormat)
	c.Log.File.Level = lowerOrDefault(c.Log.File.Level, defaultLogLevel)
	c.Log.File.Format = lowerOrDefault(c.Log.File.Format, "json")

	if !c.Log.Console.Enabled && !c.Log.File.Enabled {
		c.Log.Console.Enabled = true
	}

	if strings.TrimSpace(c.RRD.BasePath) == "" {
		c.RRD.BasePath = reporting.DefaultBasePath
	}
	if strings.TrimSpace(c.RRD.Binary) == "" {
		c.RRD.Binary = rrdtool.DefaultBinary
	}
	if c.RRD.Timeout.Duration <= 0 {
		c.RRD.Timeout.Duration = defaultRRDTimeout
	}

	if c.Export.Aggregations == nil {
		c.Export.Aggregations = append([]string(nil), reporting.DefaultAggregations...)
	}
	for idx, kind := range c.Export.Aggregations {
		c.Export.Aggregations[idx] = strings.ToLower(strings.TrimSpace(kind))
	}
	if c.Export.DefaultWindow.Duration <= 0 {
		c.Export.DefaultWindow.Duration = reporting.DefaultWindow
	}

	if strings.TrimSpace(c.HTTP.Listen) == "" {
		c.HTTP.Listen = defaultHTTPListen
	}
	if c.HTTP.ReadHeaderTimeout.Duration <= 0 {
		c.HTTP.ReadHeaderTimeout.Duration = defaultReadHeaderTimeout
	}
	if c.Pprof.Enabled && strings.TrimSpace(c.Pprof.Listen) == "" {
		c.Pprof.Listen = defaultPprofListen
	}
}

// validate checks config consistency and required fields.
// Params: receiver config pointer.
// Returns: validation error for invalid or incomplete config.
func (c *Config) validate() error {
	if err := validateSink("log.console", c.Log.Console, false); err != nil {
		return err
	}
	if err := validateSink("log.file", c.Log.File, true); err != nil {
		return err
	}

	if !filepath.IsAbs(c.RRD.BasePath) {
		return fmt.Errorf("rrd.base_path must be absolute, got %q", c.RRD.BasePath)
	}
	if daemon := c.RRD.DaemonAddress(); daemon != "" && strings.ContainsAny(daemon, " \t\n") {
		return fmt.Errorf("rrd.daemon must not contain whitespace")
	}

	if err := validateAggregations("export.aggregations", c.Export.Aggregations); err != nil {
		return err
	}

	seen := make(map[string]int, len(c.Family))
	for idx, family := range c.Family {
		path := fmt.Sprintf("family[%d]", idx)
		name := strings.ToLower(strings.TrimSpace(family.Name))
		if name == "" {
			return fmt.Errorf("%s.name is required", path)
		}
		if prev, exists := seen[name]; exists {
			return fmt.Errorf("%s.name %q duplicates family[%d]", path, name, prev)
		}
		seen[name] = idx

		if len(family.Source) == 0 {
			return fmt.Errorf("%s.source requires at least one entry", path)
		}
		for sourceIdx, source := range family.Source {
			if strings.TrimSpace(source.Type) == "" {
				return fmt.Errorf("%s.source[%d].type is required", path, sourceIdx)
			}
			if strings.TrimSpace(source.DS) == "" {
				return fmt.Errorf("%s.source[%d].ds is required", path, sourceIdx)
			}
		}
		if err := validateAggregations(path+".aggregations", family.Aggregations); err != nil {
			return err
		}
	}

	if err := validateListenConfig("http", c.HTTP.Enabled, c.HTTP.Listen); err != nil {
		return err
	}
	if err := validateListenConfig("pprof", c.Pprof.Enabled, c.Pprof.Listen); err != nil {
		return err
	}

	return nil
}

// validateSink validates one logging sink configuration.
// Params: name is sink path for errors; sink is sink config; requirePath means path required when enabled.
// Returns: validation error or nil.
func validateSink(name string, sink LogSinkConfig, requirePath bool) error {
	if sink.Enabled && requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required when sink is enabled", name)
	}

	if err := validateLogLevel(sink.Level); err != nil {
		return fmt.Errorf("%s.level: %w", name, err)
	}
	if err := validateLogFormat(sink.Format); err != nil {
		return fmt.Errorf("%s.format: %w", name, err)
	}

	return nil
}

// validateLogLevel validates known log levels.
// Params: level is lower-case level name.
// Returns: error when level is unsupported.
func validateLogLevel(level string) error {
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", level)
	}
}

// validateLogFormat validates supported sink formats.
// Params: format is lower-case format name.
// Returns: error when format is unsupported.
func validateLogFormat(format string) error {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "line", "json":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", format)
	}
}

// validateAggregations checks kinds against the aggregator registry.
// Params: path field path for errors; kinds configured names.
// Returns: error naming the first unknown kind.
func validateAggregations(path string, kinds []string) error {
	known := reporting.AggregationNames()
	for idx, kind := range kinds {
		if !slices.Contains(known, strings.ToLower(strings.TrimSpace(kind))) {
			return fmt.Errorf("%s[%d]: unsupported value %q (expected one of %s)", path, idx, kind, strings.Join(known, ", "))
		}
	}
	return nil
}

// validateListenConfig validates an optional listener.
// Params: path section name; enabled flag; listen address.
// Returns: error when enabled with a malformed address.
func validateListenConfig(path string, enabled bool, listen string) error {
	if !enabled {
		return nil
	}
	if strings.TrimSpace(listen) == "" {
		return fmt.Errorf("%s.listen cannot be empty when enabled", path)
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return fmt.Errorf("%s.listen must be host:port: %w", path, err)
	}
	return nil
}

// lowerOrDefault normalizes string and returns fallback for empty input.
// Params: value raw text; fallback default value.
// Returns: lower-case value or fallback.
func lowerOrDefault(value, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return fallback
	}
	return normalized
}
