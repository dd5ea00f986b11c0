package batching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseDelims = []Delimiter{
	{0, 10000},
	{10000000, 5000},
	{15000000, 2000},
	{20900000, 1000},
}

func TestFindActiveDelimiter(t *testing.T) {
	tests := []struct {
		block uint64
		want  Delimiter
	}{
		{0, Delimiter{0, 10000}},
		{9999999, Delimiter{0, 10000}},
		{10000000, Delimiter{10000000, 5000}},
		{14999999, Delimiter{10000000, 5000}},
		{15000000, Delimiter{15000000, 2000}},
		{20900000, Delimiter{20900000, 1000}},
		{900000000, Delimiter{20900000, 1000}},
	}
	for _, tt := range tests {
		got, err := FindActiveDelimiter(baseDelims, tt.block)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "block %d", tt.block)
	}
}

func TestFindActiveDelimiterCorrupt(t *testing.T) {
	_, err := FindActiveDelimiter([]Delimiter{{0, 10000}, {10000, 3000}}, 20000)
	assert.ErrorIs(t, err, ErrCorruptDelimiter)

	_, err = FindActiveDelimiter(nil, 5)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAlignedStart(t *testing.T) {
	d := Delimiter{0, 10000}
	assert.Equal(t, uint64(9990000), AlignedStart(9995000, d))
	assert.Equal(t, uint64(10000), AlignedStart(10000, d))
	assert.Equal(t, uint64(0), AlignedStart(9999, d))
}

func TestResolveBatchStart(t *testing.T) {
	got, err := ResolveBatchStart(baseDelims, 10007777)
	require.NoError(t, err)
	assert.Equal(t, Delimiter{10005000, 5000}, got)
	assert.Equal(t, uint64(10010000), got.NextBlock())
}
