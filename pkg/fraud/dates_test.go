package fraud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"pdf with offset", "D:20240110103000-03'00'", time.Date(2024, 1, 10, 13, 30, 0, 0, time.UTC)},
		{"pdf one digit offset", "D:20240110103000-3'00'", time.Date(2024, 1, 10, 13, 30, 0, 0, time.UTC)},
		{"pdf zulu", "D:20240110103000Z", time.Date(2024, 1, 10, 10, 30, 0, 0, time.UTC)},
		{"pdf zulu with zero offset", "D:20240110103000Z00'00'", time.Date(2024, 1, 10, 10, 30, 0, 0, time.UTC)},
		{"pdf without prefix", "20240110103000+0100", time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)},
		{"pdf date only", "D:20240110", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"pdf year only", "D:2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"pdf year and month", "D:202403", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"brazilian", "10/01/2024", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"brazilian single digits", "5/1/2024", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"iso", "2024-01-10", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"iso with time", "2024-01-10 08:15:00", time.Date(2024, 1, 10, 8, 15, 0, 0, time.UTC)},
		{"dashed day first", "10-01-2024", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{"month first fallback", "12/25/2024", time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", "2024-01-10T10:00:00-03:00", time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Parse(tc.raw)
			require.True(t, ok)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParse_Unparsable(t *testing.T) {
	for _, raw := range []string{"", "  ", "0", "D:", "None", "null", "not a date", "D:20241399"} {
		t.Run(raw, func(t *testing.T) {
			_, ok := Parse(raw)
			assert.False(t, ok)
		})
	}
}
