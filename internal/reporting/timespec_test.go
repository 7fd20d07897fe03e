package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseTime verifies accepted window bound formats.
// Params: testing.T for assertions.
// Returns: none.
func TestParseTime(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()

	cases := []struct {
		in   string
		want time.Time
	}{
		{in: "", want: now},
		{in: "now", want: now},
		{in: "now-1h", want: now.Add(-time.Hour)},
		{in: "-30m", want: now.Add(-30 * time.Minute)},
		{in: "+5m", want: now.Add(5 * time.Minute)},
		{in: "1699990000", want: time.Unix(1_699_990_000, 0)},
		{in: "2023-11-14T22:13:20Z", want: now},
	}

	for _, tc := range cases {
		got, err := ParseTime(tc.in, now)
		require.NoError(t, err, tc.in)
		require.True(t, tc.want.Equal(got), "%q: want %s got %s", tc.in, tc.want, got)
	}
}

// TestParseTime_Invalid verifies malformed values are rejected.
// Params: testing.T for assertions.
// Returns: none.
func TestParseTime_Invalid(t *testing.T) {
	for _, in := range []string{"yesterday", "now-1x", "-"} {
		_, err := ParseTime(in, time.Now())
		require.Error(t, err, in)
	}
}
