package instances

import "strings"

// isBaseDisk returns true for whole block devices and false for partitions and pseudo devices.
// Params: device name, with or without `/dev/` prefix.
// Returns: true when the device should be listed as a disk identifier.
func isBaseDisk(name string) bool {
	device := normalizeDevice(name)
	if device == "" {
		return false
	}

	for _, prefix := range []string{"sd", "vd", "xvd", "hd"} {
		if matched, base := matchLetterDisk(device, prefix); matched {
			return base
		}
	}
	for _, prefix := range []string{"ada", "da", "nvd", "vtbd"} {
		if matched, base := matchNumberedDisk(device, prefix); matched {
			return base
		}
	}
	if matched, base := matchNVMe(device); matched {
		return base
	}
	if matched, base := matchNumberedDisk(device, "mmcblk"); matched {
		return base
	}

	for _, pseudo := range []string{"loop", "ram", "md", "dm-", "zd", "zram"} {
		if strings.HasPrefix(device, pseudo) && isDigits(device[len(pseudo):]) {
			return false
		}
	}
	return true
}

// normalizeDevice trims spaces and an optional /dev/ prefix.
func normalizeDevice(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "/dev/")
}

// matchLetterDisk matches sd/vd/xvd/hd style devices with an optional numeric partition suffix.
// Params: normalized device name, family prefix.
// Returns: matched family flag and base-disk decision.
func matchLetterDisk(device, prefix string) (bool, bool) {
	if !strings.HasPrefix(device, prefix) {
		return false, false
	}

	rest := device[len(prefix):]
	letters := 0
	for letters < len(rest) && rest[letters] >= 'a' && rest[letters] <= 'z' {
		letters++
	}
	if letters == 0 {
		return false, false
	}
	if letters == len(rest) {
		return true, true
	}
	return true, !isDigits(rest[letters:])
}

// matchNumberedDisk matches ada0, da1, mmcblk0 style devices; "p<N>" or "s<N>" suffixes are partitions.
// Params: normalized device name, family prefix.
// Returns: matched family flag and base-disk decision.
func matchNumberedDisk(device, prefix string) (bool, bool) {
	if !strings.HasPrefix(device, prefix) {
		return false, false
	}

	rest := device[len(prefix):]
	n := consumeDigits(rest)
	if n == 0 {
		return false, false
	}
	return true, !isPartitionSuffix(rest[n:])
}

// matchNVMe matches nvmeXnY, nvmeXcZnY and their pN partitions.
// Params: normalized device name.
// Returns: matched family flag and base-disk decision.
func matchNVMe(device string) (bool, bool) {
	if !strings.HasPrefix(device, "nvme") {
		return false, false
	}

	rest := device[len("nvme"):]
	n := consumeDigits(rest)
	if n == 0 {
		return false, false
	}
	rest = rest[n:]
	if strings.HasPrefix(rest, "c") {
		n = consumeDigits(rest[1:])
		if n == 0 {
			return false, false
		}
		rest = rest[1+n:]
	}
	if !strings.HasPrefix(rest, "n") {
		return false, false
	}
	rest = rest[1:]
	n = consumeDigits(rest)
	if n == 0 {
		return false, false
	}
	return true, !isPartitionSuffix(rest[n:])
}

func isPartitionSuffix(rest string) bool {
	if len(rest) < 2 {
		return false
	}
	return (rest[0] == 'p' || rest[0] == 's') && isDigits(rest[1:])
}

// consumeDigits returns the leading decimal digit run length.
func consumeDigits(value string) int {
	index := 0
	for index < len(value) && value[index] >= '0' && value[index] <= '9' {
		index++
	}
	return index
}

// isDigits checks that value is a non-empty decimal number.
func isDigits(value string) bool {
	return value != "" && consumeDigits(value) == len(value)
}
