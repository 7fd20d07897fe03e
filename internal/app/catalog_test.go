package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"rrdexport/internal/config"
)

// writeArchive creates an empty archive file under base.
// Params: t test context; base storage root; parts relative path elements.
// Returns: none; fails test on filesystem error.
func writeArchive(t *testing.T, base string, parts ...string) {
	t.Helper()
	path := filepath.Join(append([]string{base}, parts...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}

// TestBuildCatalog_ConfigFamilies verifies config families extend and override built-ins.
// Params: t test context.
// Returns: none.
func TestBuildCatalog_ConfigFamilies(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.RRD.BasePath = base
	cfg.Export.Aggregations = []string{"max"}
	cfg.Family = []config.FamilyConfig{
		{
			Name:          " Sensors ",
			Title:         "Sensor {identifier}",
			VerticalLabel: "Celsius",
			Source:        []config.SourceConfig{{Type: "temperature", DS: "value"}},
		},
		{
			Name:          "load",
			Title:         "Load override",
			VerticalLabel: "Jobs",
			Aggregations:  []string{"MIN"},
			Source:        []config.SourceConfig{{Type: "load", DS: "shortterm"}},
		},
	}

	rt, err := buildExporter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("buildExporter: %v", err)
	}

	load, err := rt.catalog.Lookup("load")
	if err != nil {
		t.Fatalf("lookup load: %v", err)
	}
	if load.Title != "Load override" || len(load.Sources) != 1 {
		t.Fatalf("expected load override, got %+v", load)
	}
	if !load.Keyed {
		t.Fatalf("config families default to keyed")
	}
	if !reflect.DeepEqual(load.Aggregations, []string{"min"}) {
		t.Fatalf("expected family aggregations [min], got %v", load.Aggregations)
	}

	cpu, err := rt.catalog.Lookup("cpu")
	if err != nil {
		t.Fatalf("lookup cpu: %v", err)
	}
	if !reflect.DeepEqual(cpu.Aggregations, []string{"max"}) {
		t.Fatalf("expected export default aggregations on built-ins, got %v", cpu.Aggregations)
	}

	writeArchive(t, base, "sensors-cpu1", "temperature.rrd")
	writeArchive(t, base, "sensors-empty", "other.rrd")

	sensors, err := rt.catalog.Lookup("SENSORS")
	if err != nil {
		t.Fatalf("lookup sensors: %v", err)
	}
	ids, err := sensors.Identifiers.Identifiers(context.Background())
	if err != nil {
		t.Fatalf("identifiers: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"cpu1"}) {
		t.Fatalf("expected [cpu1], got %v", ids)
	}
}

// TestBuildCatalog_InvalidFamily verifies registration errors name the config entry.
// Params: t test context.
// Returns: none.
func TestBuildCatalog_InvalidFamily(t *testing.T) {
	cfg := config.Default()
	cfg.Family = []config.FamilyConfig{{
		Name:   "broken",
		Title:  "Broken",
		Source: []config.SourceConfig{{Type: "gauge", DS: "value"}},
	}}

	_, err := buildExporter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected registration error for missing vertical label")
	}
}

// TestFamilyFromConfig_Unkeyed verifies identifier_plugin=false keeps a single directory.
// Params: t test context.
// Returns: none.
func TestFamilyFromConfig_Unkeyed(t *testing.T) {
	keyed := false
	family := familyFromConfig(config.FamilyConfig{
		Name:             "UPS",
		Plugin:           " nut-ups ",
		IdentifierPlugin: &keyed,
		Source:           []config.SourceConfig{{Type: " voltage-input ", DS: "value", Transform: " %name%,10,* "}},
	})

	if family.Name != "ups" || family.Plugin != "nut-ups" || family.Keyed {
		t.Fatalf("unexpected family: %+v", family)
	}
	if family.Sources[0].Type != "voltage-input" || family.Sources[0].Transform != "%name%,10,*" {
		t.Fatalf("expected trimmed source, got %+v", family.Sources[0])
	}
	if family.Aggregations != nil {
		t.Fatalf("expected nil aggregations, got %v", family.Aggregations)
	}
}
