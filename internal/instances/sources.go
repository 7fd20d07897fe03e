// Package instances discovers identifiers for keyed metric families.
package instances

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
	netio "github.com/shirou/gopsutil/v4/net"

	"rrdexport/internal/reporting"
)

// DirectorySource lists identifiers from "<plugin>-<suffix>" directories under the storage root.
// Params: Layout storage root; Family supplies plugin and codec.
// Returns: source yielding decoded identifiers whose directory holds at least one source archive.
type DirectorySource struct {
	Layout reporting.Layout
	Family reporting.Family
}

// Identifiers scans the storage root once.
// Params: ctx for cancellation.
// Returns: decoded identifiers; a missing root yields an empty list.
func (s DirectorySource) Identifiers(ctx context.Context) ([]string, error) {
	root := s.Layout.Root()
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rrd root %s: %w", root, err)
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		identifier, ok := s.Layout.Suffix(&s.Family, entry.Name())
		if !ok || !s.hasArchive(filepath.Join(root, entry.Name())) {
			continue
		}
		out = append(out, identifier)
	}
	return out, nil
}

func (s DirectorySource) hasArchive(dir string) bool {
	if len(s.Family.Sources) == 0 {
		return true
	}
	for _, source := range s.Family.Sources {
		if _, err := os.Stat(filepath.Join(dir, source.Type+".rrd")); err == nil {
			return true
		}
	}
	return false
}

// DiskSource lists whole block devices known to the kernel.
type DiskSource struct {
	readIO func(context.Context, ...string) (map[string]disk.IOCountersStat, error)
}

// NewDiskSource creates a disk source backed by gopsutil counters.
func NewDiskSource() *DiskSource {
	return &DiskSource{readIO: disk.IOCountersWithContext}
}

// Identifiers returns base disk names with partitions dropped and nvme controller paths collapsed.
// Params: ctx for cancellation.
// Returns: disk names or read error.
func (s *DiskSource) Identifiers(ctx context.Context) ([]string, error) {
	readIO := s.readIO
	if readIO == nil {
		readIO = disk.IOCountersWithContext
	}
	stats, err := readIO(ctx)
	if err != nil {
		return nil, fmt.Errorf("read disk counters: %w", err)
	}

	codec := reporting.DiskCodec{}
	out := make([]string, 0, len(stats))
	for name := range stats {
		if !isBaseDisk(name) {
			continue
		}
		out = append(out, codec.Decode(normalizeDevice(name)))
	}
	return out, nil
}

// InterfaceSource lists network interfaces except loopback.
type InterfaceSource struct {
	readInterfaces func(context.Context) (netio.InterfaceStatList, error)
}

// NewInterfaceSource creates an interface source backed by gopsutil.
func NewInterfaceSource() *InterfaceSource {
	return &InterfaceSource{readInterfaces: netio.InterfacesWithContext}
}

// Identifiers returns interface names.
// Params: ctx for cancellation.
// Returns: names or read error.
func (s *InterfaceSource) Identifiers(ctx context.Context) ([]string, error) {
	readInterfaces := s.readInterfaces
	if readInterfaces == nil {
		readInterfaces = netio.InterfacesWithContext
	}
	stats, err := readInterfaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("read interfaces: %w", err)
	}

	out := make([]string, 0, len(stats))
	for _, stat := range stats {
		if isLoopback(stat) {
			continue
		}
		out = append(out, stat.Name)
	}
	return out, nil
}

func isLoopback(stat netio.InterfaceStat) bool {
	if slices.Contains(stat.Flags, "loopback") {
		return true
	}
	return stat.Name == "lo" || (strings.HasPrefix(stat.Name, "lo") && isDigits(stat.Name[2:]))
}

// Intersection keeps identifiers of primary that secondary also reports.
// Params: primary ordered source; secondary membership source.
// Returns: combined source; either failing fails the listing.
func Intersection(primary, secondary reporting.IdentifierSource) reporting.IdentifierSource {
	return reporting.IdentifierSourceFunc(func(ctx context.Context) ([]string, error) {
		ids, err := primary.Identifiers(ctx)
		if err != nil || len(ids) == 0 {
			return ids, err
		}
		others, err := secondary.Identifiers(ctx)
		if err != nil {
			return nil, err
		}

		present := make(map[string]struct{}, len(others))
		for _, id := range others {
			present[id] = struct{}{}
		}
		out := ids[:0]
		for _, id := range ids {
			if _, ok := present[id]; ok {
				out = append(out, id)
			}
		}
		return out, nil
	})
}
