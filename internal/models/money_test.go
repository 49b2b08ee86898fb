package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1000.00", 100000},
		{"1000", 100000},
		{"0.01", 1},
		{"0.5", 50},
		{"12.34", 1234},
		{"1.005", 101}, // half-up
		{"1.004", 100},
		{"1.0049", 100},
		{" 250.00 ", 25000},
		{"9223372036854775.00", 922337203685477500}, // largest accepted integer part
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{
		"", "abc", "-10", "0", "0.00", "0.004", "1,000.00",
		// values whose cent count exceeds int64 must be rejected, not wrapped
		"200000000000000000",
		"9223372036854775807",
		"92233720368547758.07",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAmount(in)
			require.Error(t, err)
			var verrs ValidationErrors
			assert.ErrorAs(t, err, &verrs)
		})
	}
}

// Any decimal with at most two fraction digits survives the trip into
// minor units and back unchanged.
func TestParseAmount_RoundTrip(t *testing.T) {
	for cents := int64(1); cents < 30000; cents += 37 {
		dec := fmt.Sprintf("%d.%02d", cents/100, cents%100)
		got, err := ParseAmount(dec)
		require.NoError(t, err)
		require.Equal(t, cents, got, dec)
		require.Equal(t, "ZAR "+dec, FormatCents(got, "ZAR"))
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "ZAR 1000.00", FormatCents(100000, "ZAR"))
	assert.Equal(t, "ZAR 0.05", FormatCents(5, "ZAR"))
	assert.Equal(t, "USD 12.34", FormatCents(1234, "USD"))
}
