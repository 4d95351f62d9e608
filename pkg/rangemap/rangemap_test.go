package rangemap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndLookup(t *testing.T) {
	input := []Range[string]{
		{Start: 0x1000, Size: 0x100, Value: "a"},
		{Start: 0x2000, Size: 0x100, Value: "b"},
		{Start: 0x3000, Size: 0x100, Value: "c"},
	}
	m, overlaps := Build(input)
	require.Empty(t, overlaps)
	require.Equal(t, 3, m.Len())

	r, ok := m.At(0x1050)
	require.True(t, ok)
	require.Equal(t, "a", r.Value)

	r, ok = m.At(0x20ff)
	require.True(t, ok)
	require.Equal(t, "b", r.Value)

	_, ok = m.At(0x1100)
	require.False(t, ok, "address just past the end of a range must miss")

	_, ok = m.At(0x1fff)
	require.False(t, ok, "address in the gap between ranges must miss")
}

func TestBuildDetectsOverlapKeepsFirst(t *testing.T) {
	input := []Range[string]{
		{Start: 0x1000, Size: 0x100, Value: "first"},
		{Start: 0x1050, Size: 0x100, Value: "second"},
	}
	m, overlaps := Build(input)
	require.Len(t, overlaps, 1)
	require.Equal(t, "first", overlaps[0].Kept.Value)
	require.Equal(t, "second", overlaps[0].Rejected.Value)

	r, ok := m.At(0x1080)
	require.True(t, ok)
	require.Equal(t, "first", r.Value, "the first-inserted range must win for contested addresses")

	_, ok = m.At(0x1140)
	require.False(t, ok, "the rejected range contributes nothing to the index")
}

func TestBuildEmpty(t *testing.T) {
	m, overlaps := Build[string](nil)
	require.Empty(t, overlaps)
	require.Equal(t, 0, m.Len())
	_, ok := m.At(0)
	require.False(t, ok)
}

func TestZeroSizeRangeNeverMatches(t *testing.T) {
	m, overlaps := Build([]Range[string]{{Start: 0x1000, Size: 0, Value: "empty"}})
	require.Empty(t, overlaps)
	_, ok := m.At(0x1000)
	require.False(t, ok)
}

func TestAtSequenceAndAll(t *testing.T) {
	input := []Range[int]{
		{Start: 0x200, Size: 0x10, Value: 2},
		{Start: 0x100, Size: 0x10, Value: 1},
	}
	m, _ := Build(input)
	r0, ok := m.AtSequence(0)
	require.True(t, ok)
	require.Equal(t, uint64(0x100), r0.Start, "AtSequence is ordered by Start, not insertion order")

	_, ok = m.AtSequence(5)
	require.False(t, ok)

	require.Len(t, m.All(), 2)
}
