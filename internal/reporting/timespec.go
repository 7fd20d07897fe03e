package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTime parses export window bounds.
// Params: value as "now", unix seconds, RFC3339, or a relative offset like "-1h" / "now-30m"; now reference time.
// Returns: absolute time or parse error.
func ParseTime(value string, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(value)
	switch {
	case v == "" || v == "now":
		return now, nil
	case strings.HasPrefix(v, "now-") || strings.HasPrefix(v, "now+"):
		v = v[len("now"):]
	}

	if strings.HasPrefix(v, "-") || strings.HasPrefix(v, "+") {
		offset, err := time.ParseDuration(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse relative time %q: %w", value, err)
		}
		return now.Add(offset), nil
	}

	if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(seconds, 0), nil
	}

	parsed, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: expected now, unix seconds, RFC3339 or relative offset", value)
	}
	return parsed, nil
}
