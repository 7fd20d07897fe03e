package reporting

// unknownAsZero maps UNKNOWN samples to 0 so stacked memory graphs do not break.
const unknownAsZero = "%name%,UN,0,%name%,IF"

// Builtins returns the default family set in registration order.
// Params: layout storage root, used by the disk codec to detect nvme multipath archives.
// Returns: family definitions; identifier sources are bound by the caller.
func Builtins(layout Layout) []Family {
	return []Family{
		{
			Name:          "cpu",
			Title:         "CPU Usage",
			VerticalLabel: "%CPU",
			Plugin:        "aggregation-cpu-sum",
			Sources: []Source{
				{Type: "percent-user", DS: "value"},
				{Type: "percent-nice", DS: "value"},
				{Type: "percent-system", DS: "value"},
				{Type: "percent-interrupt", DS: "value"},
				{Type: "percent-idle", DS: "value"},
			},
			Stacked:          true,
			StackedShowTotal: true,
		},
		{
			Name:          "disk",
			Title:         "Disk I/O ({identifier})",
			VerticalLabel: "Kibibytes/s",
			Keyed:         true,
			Sources: []Source{
				{Type: "disk_octets", DS: "read", Transform: "%name%,1024,/"},
				{Type: "disk_octets", DS: "write", Transform: "%name%,1024,/"},
			},
			Codec: DiskCodec{Base: layout.Root()},
		},
		{
			Name:          "interface",
			Title:         "Interface Traffic ({identifier})",
			VerticalLabel: "Kilobits/s",
			Keyed:         true,
			Sources: []Source{
				{Type: "if_octets", DS: "rx", Transform: "%name%,8,*,1000,/"},
				{Type: "if_octets", DS: "tx", Transform: "%name%,8,*,1000,/"},
			},
		},
		{
			Name:          "load",
			Title:         "System Load",
			VerticalLabel: "Processes",
			Sources: []Source{
				{Type: "load", DS: "shortterm"},
				{Type: "load", DS: "midterm"},
				{Type: "load", DS: "longterm"},
			},
		},
		{
			Name:          "memory",
			Title:         "Physical memory utilization",
			VerticalLabel: "Bytes",
			Sources: []Source{
				{Type: "memory-used", DS: "value", Transform: unknownAsZero},
				{Type: "memory-free", DS: "value", Transform: unknownAsZero},
				{Type: "memory-cached", DS: "value", Transform: unknownAsZero},
				{Type: "memory-buffered", DS: "value", Transform: unknownAsZero},
			},
			Stacked: true,
		},
		{
			Name:          "processes",
			Title:         "Processes",
			VerticalLabel: "Processes",
			Sources: []Source{
				{Type: "ps_state-sleeping", DS: "value"},
				{Type: "ps_state-running", DS: "value"},
				{Type: "ps_state-stopped", DS: "value"},
				{Type: "ps_state-blocked", DS: "value"},
				{Type: "ps_state-zombies", DS: "value"},
			},
			Stacked: true,
		},
		{
			Name:          "uptime",
			Title:         "Uptime",
			VerticalLabel: "Days",
			Sources: []Source{
				{Type: "uptime", DS: "value", Transform: "%name%,86400,/"},
			},
		},
		{
			Name:          "swap",
			Title:         "Swap Utilization",
			VerticalLabel: "Bytes",
			Sources: []Source{
				{Type: "swap-used", DS: "value", Transform: unknownAsZero},
				{Type: "swap-free", DS: "value", Transform: unknownAsZero},
			},
			Stacked: true,
		},
		{
			Name:          "arcsize",
			Title:         "ARC Size",
			VerticalLabel: "Mebibytes",
			Plugin:        "zfs_arc",
			Sources: []Source{
				{Type: "cache_size-arc", DS: "value", Transform: "%name%,1024,/,1024,/"},
				{Type: "cache_size-L2", DS: "value", Transform: "%name%,1024,/,1024,/"},
			},
		},
		{
			Name:          "arcratio",
			Title:         "ARC Hit Ratio",
			VerticalLabel: "Hit (%)",
			Plugin:        "zfs_arc",
			Sources: []Source{
				{Type: "cache_ratio-arc", DS: "value", Transform: "%name%,100,*"},
				{Type: "cache_ratio-L2", DS: "value", Transform: "%name%,100,*"},
			},
		},
		{
			Name:          "arcresult",
			Title:         "ARC Requests (demand_data)",
			VerticalLabel: "Requests",
			Plugin:        "zfs_arc",
			Sources: []Source{
				{Type: "cache_result-demand_data-hit", DS: "value", Name: "demand_data_hit"},
				{Type: "cache_result-demand_data-miss", DS: "value", Name: "demand_data_miss"},
			},
			Extra: `
				CDEF:total=%name_0%,%name_1%,+
				CDEF:hit=%name_0%,total,/,100,*
				CDEF:miss=%name_1%,total,/,100,*
				XPORT:hit:hit
				XPORT:miss:miss
			`,
			Aggregations: []string{},
		},
		{
			Name:          "ctl",
			Title:         "SCSI Target Port ({identifier})",
			VerticalLabel: "Bytes/s",
			Keyed:         true,
			Codec:         PathCodec{},
			Sources: []Source{
				{Type: "disk_octets", DS: "read"},
				{Type: "disk_octets", DS: "write"},
			},
		},
		{
			Name:          "nfsstat",
			Title:         "NFS Stats (Operations)",
			VerticalLabel: "Operations/s",
			Plugin:        "nfsstat-server",
			Sources: []Source{
				{Type: "nfsstat-read", DS: "value"},
				{Type: "nfsstat-write", DS: "value"},
			},
			Extra: `
				CDEF:total=%name_0%,%name_1%,+
				XPORT:total:total
			`,
		},
	}
}
