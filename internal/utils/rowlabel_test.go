package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeRowLabel(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
		{MaxRowOrdinal, "ZZZ"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EncodeRowLabel(tc.n), "ordinal %d", tc.n)
	}
}

func TestEncodeRowLabelOutOfRange(t *testing.T) {
	assert.Equal(t, "", EncodeRowLabel(0))
	assert.Equal(t, "", EncodeRowLabel(-5))
	assert.Equal(t, "", EncodeRowLabel(MaxRowOrdinal+1))
}

func TestDecodeRowLabel(t *testing.T) {
	n, ok := DecodeRowLabel("A")
	require.True(t, ok)
	assert.Equal(t, 1, n)

	n, ok = DecodeRowLabel("aa")
	require.True(t, ok)
	assert.Equal(t, 27, n)

	n, ok = DecodeRowLabel("ZZZ")
	require.True(t, ok)
	assert.Equal(t, MaxRowOrdinal, n)
}

func TestDecodeRowLabelRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "AAAA", "A1", "1", "Ä", " A"} {
		_, ok := DecodeRowLabel(bad)
		assert.False(t, ok, "label %q", bad)
	}
}

func TestRowLabelRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, MaxRowOrdinal).Draw(t, "ordinal")
		label := EncodeRowLabel(n)
		require.NotEmpty(t, label)
		back, ok := DecodeRowLabel(label)
		require.True(t, ok)
		require.Equal(t, n, back)
	})
}

func TestNormalizeRowLabel(t *testing.T) {
	got, ok := NormalizeRowLabel("ab")
	require.True(t, ok)
	assert.Equal(t, "AB", got)

	_, ok = NormalizeRowLabel("a1")
	assert.False(t, ok)
}
