package reporting

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func sortWith(ids []string, key func(string) SortKey) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]).Less(key(out[j])) })
	return out
}

// TestPortSortKey_NumericSuffix verifies integer ordering of trailing numbers.
// Params: testing.T for assertions.
// Returns: none.
func TestPortSortKey_NumericSuffix(t *testing.T) {
	got := sortWith([]string{"eth10", "eth2", "eth1", "em0"}, PortSortKey)
	require.Equal(t, []string{"em0", "eth1", "eth2", "eth10"}, got)

	require.True(t, PortSortKey("name2").Less(PortSortKey("name10")))
	require.False(t, PortSortKey("name10").Less(PortSortKey("name2")))
}

// TestPortSortKey_HAFirstAndNoSuffix verifies "ha" placement and -1 for names without digits.
// Params: testing.T for assertions.
// Returns: none.
func TestPortSortKey_HAFirstAndNoSuffix(t *testing.T) {
	got := sortWith([]string{"thing0", "thing", "ha", "aaa1", "lagg:vlan10", "lagg:vlan2"}, PortSortKey)
	require.Equal(t, []string{"ha", "aaa1", "thing", "thing0", "lagg:vlan2", "lagg:vlan10"}, got)

	key := PortSortKey("thing")
	require.Equal(t, KeyPart{Num: -1, IsNum: true}, key[len(key)-1])
}

// TestPortSortKey_ColonPrefix verifies prefix:body splitting at the last colon that leaves both parts non-empty.
// Params: testing.T for assertions.
// Returns: none.
func TestPortSortKey_ColonPrefix(t *testing.T) {
	require.Equal(t, SortKey{num(1), text("a:b"), text("eth"), num(3)}, PortSortKey("a:b:eth3"))
	require.Equal(t, SortKey{num(1), text(""), text("eth:"), num(-1)}, PortSortKey("eth:"))
	require.Equal(t, SortKey{num(1), text("a"), text("b:"), num(-1)}, PortSortKey("a:b:"))
	require.Equal(t, SortKey{num(1), text("lagg0"), text("vlan"), num(10)}, PortSortKey("lagg0:vlan10"))
	require.Equal(t, SortKey{num(1), text(""), text(":x"), num(-1)}, PortSortKey(":x"))
}

// TestDiskSortKey verifies disk ordering and the single-element key without a numeric suffix.
// Params: testing.T for assertions.
// Returns: none.
func TestDiskSortKey(t *testing.T) {
	require.Equal(t, SortKey{text("sda")}, DiskSortKey("sda"))
	require.Equal(t, SortKey{text("nvme0n"), num(1)}, DiskSortKey("nvme0n1"))
	require.Equal(t, SortKey{text("1"), num(0)}, DiskSortKey("10"))

	got := sortWith([]string{"sdb", "ada10", "ada2", "sda"}, DiskSortKey)
	require.Equal(t, []string{"ada2", "ada10", "sda", "sdb"}, got)
}

// TestSortKey_Compare verifies tuple semantics for prefixes and mixed parts.
// Params: testing.T for assertions.
// Returns: none.
func TestSortKey_Compare(t *testing.T) {
	require.Equal(t, 0, DiskSortKey("sda").Compare(DiskSortKey("sda")))
	require.Equal(t, -1, SortKey{text("a")}.Compare(SortKey{text("a"), num(0)}))
	require.Equal(t, -1, SortKey{text("z")}.Compare(SortKey{num(0)}))
}

// TestDiskCodec_Encode mirrors nvme multipath directory detection.
// Params: testing.T for assertions.
// Returns: none.
func TestDiskCodec_Encode(t *testing.T) {
	base := "/var/db/collectd/rrd/localhost"
	archive := filepath.Join(base, "disk-nvme0c0n1", "disk_octets.rrd")

	cases := []struct {
		identifier string
		existing   []string
		want       string
	}{
		{identifier: "sda", want: "sda"},
		{identifier: "nvme0n1", existing: []string{"/dev/nvme0c0n1"}, want: "nvme0n1"},
		{identifier: "nvme0n1", existing: []string{archive}, want: "nvme0n1"},
		{identifier: "nvme0n1", existing: []string{"/dev/nvme0c0n1", archive}, want: "nvme0c0n1"},
	}

	for _, tc := range cases {
		existing := make(map[string]bool, len(tc.existing))
		for _, path := range tc.existing {
			existing[path] = true
		}
		codec := DiskCodec{Base: base, exists: func(path string) bool { return existing[path] }}
		require.Equal(t, tc.want, codec.Encode(tc.identifier), "existing=%v", tc.existing)
	}
}

// TestDiskCodec_Decode verifies controller paths collapse to namespaces.
// Params: testing.T for assertions.
// Returns: none.
func TestDiskCodec_Decode(t *testing.T) {
	codec := DiskCodec{}
	require.Equal(t, "nvme0n1", codec.Decode("nvme0c0n1"))
	require.Equal(t, "nvme0n1", codec.Decode("nvme0c11n1"))
	require.Equal(t, "sda", codec.Decode("sda"))
}

// TestCodec_RoundTrip verifies encode -> directory -> suffix recovers the identifier.
// Params: testing.T for assertions.
// Returns: none.
func TestCodec_RoundTrip(t *testing.T) {
	layout := Layout{Base: "/data"}
	plain := &Family{Name: "interface", Keyed: true}
	pathSafe := &Family{Name: "ctl", Keyed: true, Codec: PathCodec{}}

	for _, tc := range []struct {
		family     *Family
		identifier string
	}{
		{family: plain, identifier: "eth0:1"},
		{family: plain, identifier: "ha"},
		{family: pathSafe, identifier: "iqn.2005-10.org:target/lun0"},
		{family: pathSafe, identifier: "100%"},
	} {
		dir := filepath.Base(layout.Dir(tc.family, tc.identifier))
		got, ok := layout.Suffix(tc.family, dir)
		require.True(t, ok, dir)
		require.Equal(t, tc.identifier, got)
	}

	require.Equal(t, "/data/ctl-a%2Fb", layout.Dir(pathSafe, "a/b"))
}
