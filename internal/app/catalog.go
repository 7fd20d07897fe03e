package app

import (
	"fmt"
	"log/slog"
	"strings"

	"rrdexport/internal/config"
	"rrdexport/internal/instances"
	"rrdexport/internal/match"
	"rrdexport/internal/reporting"
	"rrdexport/internal/rrdtool"
)

// exporterRuntime bundles the pieces built from one config snapshot.
type exporterRuntime struct {
	layout   reporting.Layout
	catalog  *reporting.Catalog
	exporter *reporting.Exporter
	filter   *match.Filter
}

// buildExporter wires catalog, rrdtool client and exporter from config.
// Params: cfg validated config; logger shared logger.
// Returns: runtime pieces or catalog registration error.
func buildExporter(cfg *config.Config, logger *slog.Logger) (*exporterRuntime, error) {
	layout := reporting.Layout{Base: cfg.RRD.BasePath}
	catalog, err := buildCatalog(cfg, layout)
	if err != nil {
		return nil, err
	}

	client := rrdtool.New(rrdtool.Config{
		Binary:  cfg.RRD.Binary,
		Daemon:  cfg.RRD.DaemonAddress(),
		Timeout: cfg.RRD.Timeout.Duration,
		Env:     cfg.RRD.Env,
	}, logger)

	return &exporterRuntime{
		layout:   layout,
		catalog:  catalog,
		exporter: reporting.NewExporter(catalog, layout, client, logger),
		filter:   match.NewFilter(cfg.Instances.Include, cfg.Instances.Exclude),
	}, nil
}

// buildCatalog registers built-in families followed by configured ones.
// Params: cfg validated config; layout storage root.
// Returns: populated catalog or the first registration error.
func buildCatalog(cfg *config.Config, layout reporting.Layout) (*reporting.Catalog, error) {
	catalog := reporting.NewCatalog()

	for _, family := range reporting.Builtins(layout) {
		family.Identifiers = builtinIdentifiers(layout, family)
		if err := catalog.Register(withAggregations(family, cfg.Export.Aggregations)); err != nil {
			return nil, fmt.Errorf("register built-in family %s: %w", family.Name, err)
		}
	}

	for idx, fc := range cfg.Family {
		family := familyFromConfig(fc)
		if family.Keyed {
			family.Identifiers = instances.DirectorySource{Layout: layout, Family: family}
		}
		if err := catalog.Register(withAggregations(family, cfg.Export.Aggregations)); err != nil {
			return nil, fmt.Errorf("register family[%d]: %w", idx, err)
		}
	}
	return catalog, nil
}

// builtinIdentifiers binds discovery for keyed built-ins.
// Disks and interfaces must both exist on the host and have archives.
func builtinIdentifiers(layout reporting.Layout, family reporting.Family) reporting.IdentifierSource {
	if !family.Keyed {
		return nil
	}
	archives := instances.DirectorySource{Layout: layout, Family: family}
	switch family.Name {
	case "disk":
		return instances.Intersection(archives, instances.NewDiskSource())
	case "interface":
		return instances.Intersection(archives, instances.NewInterfaceSource())
	default:
		return archives
	}
}

func withAggregations(family reporting.Family, defaults []string) reporting.Family {
	if family.Aggregations == nil && defaults != nil {
		family.Aggregations = append([]string(nil), defaults...)
	}
	return family
}

func familyFromConfig(fc config.FamilyConfig) reporting.Family {
	sources := make([]reporting.Source, 0, len(fc.Source))
	for _, sc := range fc.Source {
		sources = append(sources, reporting.Source{
			Type:      strings.TrimSpace(sc.Type),
			DS:        strings.TrimSpace(sc.DS),
			Transform: strings.TrimSpace(sc.Transform),
			Name:      strings.TrimSpace(sc.Name),
		})
	}

	var aggregations []string
	if fc.Aggregations != nil {
		aggregations = make([]string, 0, len(fc.Aggregations))
		for _, kind := range fc.Aggregations {
			aggregations = append(aggregations, strings.ToLower(strings.TrimSpace(kind)))
		}
	}

	return reporting.Family{
		Name:             strings.ToLower(strings.TrimSpace(fc.Name)),
		Title:            fc.Title,
		VerticalLabel:    fc.VerticalLabel,
		Plugin:           strings.TrimSpace(fc.Plugin),
		Keyed:            fc.Keyed(),
		Sources:          sources,
		Extra:            fc.Extra,
		Stacked:          fc.Stacked,
		StackedShowTotal: fc.StackedShowTotal,
		Aggregations:     aggregations,
	}
}
