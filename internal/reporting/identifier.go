package reporting

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// haIdentifier is the synthetic interface name that always lists first.
const haIdentifier = "ha"

var (
	reNVMeNamespace  = regexp.MustCompile(`^nvme([0-9]+)n([0-9]+)$`)
	reNVMeController = regexp.MustCompile(`^(nvme[0-9]+)c[0-9]+(n[0-9]+)$`)
)

// KeyPart is one element of a SortKey: either text or an integer.
// Params: Text for string parts; Num with IsNum for numeric parts.
// Returns: comparable tuple element.
type KeyPart struct {
	Text  string
	Num   int
	IsNum bool
}

// SortKey is an ordered tuple used to list instance identifiers.
// Params: ordered parts compared element by element.
// Returns: tuple with a total order via Less.
type SortKey []KeyPart

func text(value string) KeyPart {
	return KeyPart{Text: value}
}

func num(value int) KeyPart {
	return KeyPart{Num: value, IsNum: true}
}

// Less compares keys element by element; a shorter key that is a prefix sorts first.
// Params: other key.
// Returns: true when k orders before other.
func (k SortKey) Less(other SortKey) bool {
	return k.Compare(other) < 0
}

// Compare orders keys as tuples; text parts order before numeric parts at the same position.
// Params: other key.
// Returns: -1, 0 or 1.
func (k SortKey) Compare(other SortKey) int {
	for idx := 0; idx < len(k) && idx < len(other); idx++ {
		if c := k[idx].compare(other[idx]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(other):
		return -1
	case len(k) > len(other):
		return 1
	default:
		return 0
	}
}

func (p KeyPart) compare(other KeyPart) int {
	if p.IsNum != other.IsNum {
		if other.IsNum {
			return -1
		}
		return 1
	}
	if p.IsNum {
		switch {
		case p.Num < other.Num:
			return -1
		case p.Num > other.Num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(p.Text, other.Text)
}

// splitNumericSuffix splits "eth10" into ("eth", 10).
// Params: value to split; the name part keeps at least one character.
// Returns: name, number and false when there is no numeric suffix.
func splitNumericSuffix(value string) (string, int, bool) {
	start := len(value)
	for start > 0 && value[start-1] >= '0' && value[start-1] <= '9' {
		start--
	}
	if start == len(value) {
		return "", 0, false
	}
	if start == 0 {
		if len(value) < 2 {
			return "", 0, false
		}
		start = 1
	}
	n, err := strconv.Atoi(value[start:])
	if err != nil {
		return "", 0, false
	}
	return value[:start], n, true
}

// PortSortKey orders network-port style identifiers.
// Params: identifier such as "eth2", "lagg:vlan10" or "ha".
// Returns: key where "ha" is first and numeric suffixes compare as integers (-1 when absent).
func PortSortKey(identifier string) SortKey {
	if identifier == haIdentifier {
		return SortKey{num(0), text(""), text(identifier), num(-1)}
	}

	prefix, body := "", identifier
	if idx := splitColon(identifier); idx > 0 {
		prefix, body = identifier[:idx], identifier[idx+1:]
	}

	name, n, ok := splitNumericSuffix(body)
	if !ok {
		return SortKey{num(1), text(prefix), text(body), num(-1)}
	}
	return SortKey{num(1), text(prefix), text(name), num(n)}
}

// splitColon returns the last ':' that leaves a non-empty prefix and body, or -1.
func splitColon(identifier string) int {
	for idx := len(identifier) - 2; idx > 0; idx-- {
		if identifier[idx] == ':' {
			return idx
		}
	}
	return -1
}

// DiskSortKey orders disk style identifiers without prefix handling.
// Params: identifier such as "sda" or "nvme0n1".
// Returns: (name, n) key or a single-element key when there is no numeric suffix.
func DiskSortKey(identifier string) SortKey {
	name, n, ok := splitNumericSuffix(identifier)
	if !ok {
		return SortKey{text(identifier)}
	}
	return SortKey{text(name), num(n)}
}

// Codec maps instance identifiers to directory suffixes and sort keys.
// Params: identifier strings.
// Returns: encoded suffix, decoded identifier and list order.
type Codec interface {
	Encode(identifier string) string
	Decode(suffix string) string
	SortKey(identifier string) SortKey
}

// PlainCodec is the identity codec with port ordering.
type PlainCodec struct{}

// Encode returns identifier unchanged.
func (PlainCodec) Encode(identifier string) string { return identifier }

// Decode returns suffix unchanged.
func (PlainCodec) Decode(suffix string) string { return suffix }

// SortKey returns PortSortKey.
func (PlainCodec) SortKey(identifier string) SortKey { return PortSortKey(identifier) }

// DiskCodec maps nvme namespaces onto multipath controller directories when collectd wrote them that way.
// Params: Base storage root; DevDir device directory (default /dev); Plugin directory name (default disk).
// Returns: disk identifier codec.
type DiskCodec struct {
	Base   string
	DevDir string
	Plugin string
	exists func(string) bool
}

// Encode returns "nvmeXcXnY" when both the controller device and its archive exist.
// Params: identifier disk name.
// Returns: directory suffix.
func (c DiskCodec) Encode(identifier string) string {
	m := reNVMeNamespace.FindStringSubmatch(identifier)
	if m == nil {
		return identifier
	}

	controller := "nvme" + m[1] + "c" + m[1] + "n" + m[2]
	devDir := c.DevDir
	if devDir == "" {
		devDir = "/dev"
	}
	plugin := c.Plugin
	if plugin == "" {
		plugin = "disk"
	}

	exists := c.exists
	if exists == nil {
		exists = pathExists
	}
	if !exists(filepath.Join(devDir, controller)) {
		return identifier
	}
	if !exists(filepath.Join(c.Base, plugin+"-"+controller, "disk_octets.rrd")) {
		return identifier
	}
	return controller
}

// Decode collapses a controller path back to its namespace name.
// Params: suffix directory suffix.
// Returns: canonical disk identifier.
func (DiskCodec) Decode(suffix string) string {
	return reNVMeController.ReplaceAllString(suffix, "${1}${2}")
}

// SortKey returns DiskSortKey.
func (DiskCodec) SortKey(identifier string) SortKey { return DiskSortKey(identifier) }

// PathCodec percent-encodes characters unsafe in a path segment.
// Params: none.
// Returns: codec with port ordering.
type PathCodec struct{}

// Encode escapes "/" and "%" so an identifier stays one directory segment.
func (PathCodec) Encode(identifier string) string {
	replacer := strings.NewReplacer("%", "%25", "/", "%2F")
	return replacer.Replace(identifier)
}

// Decode reverses Encode.
func (PathCodec) Decode(suffix string) string {
	replacer := strings.NewReplacer("%2F", "/", "%2f", "/", "%25", "%")
	return replacer.Replace(suffix)
}

// SortKey returns PortSortKey.
func (PathCodec) SortKey(identifier string) SortKey { return PortSortKey(identifier) }

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
