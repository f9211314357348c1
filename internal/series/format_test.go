package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDecimal(t *testing.T) {
	cases := []struct {
		value  string
		places int32
		mode   Rounding
		want   string
	}{
		{"0.00012345678", 8, RoundUp, "0.00012346"},
		{"0.00012345678", 4, RoundDown, "0.0001"},
		{"0.00012345678", 4, RoundUp, "0.0002"},
		{"-0.00012345678", 8, RoundUp, "-0.00012346"},
		{"-0.00012345678", 8, RoundDown, "-0.00012345"},
		{"1.50000000", 4, RoundUp, "1.5"},
		{"2.0000", 4, RoundUp, "2"},
		{"0", 8, RoundUp, "0"},
		{"12345.678901234", 8, RoundUp, "12345.67890124"},
		{" 0.6123 ", 4, RoundUp, "0.6123"},
	}
	for _, c := range cases {
		got, err := FormatDecimal(c.value, c.places, c.mode)
		require.NoError(t, err, c.value)
		assert.Equal(t, c.want, got, "%s @%d %s", c.value, c.places, c.mode)
	}
}

func TestFormatDecimalRejectsGarbage(t *testing.T) {
	for _, v := range []string{"", "abc", "1.2.3", "NaN"} {
		_, err := FormatDecimal(v, 4, RoundUp)
		assert.Error(t, err, v)
	}
}

func TestFormatDecimalUnknownMode(t *testing.T) {
	_, err := FormatDecimal("1", 4, Rounding(9))
	assert.Error(t, err)
}

func TestFormatDecimalIsStable(t *testing.T) {
	once, err := FormatDecimal("0.00012345678", 8, RoundUp)
	require.NoError(t, err)
	twice, err := FormatDecimal(once, 8, RoundUp)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}
