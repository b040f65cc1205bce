package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingEviction(t *testing.T) {
	r := newRing[int](3)

	_, full := r.push(1)
	require.False(t, full)
	r.push(2)
	r.push(3)
	require.Equal(t, 3, r.len())

	evicted, full := r.push(4)
	require.True(t, full)
	require.Equal(t, 1, evicted)
	require.Equal(t, 3, r.len())

	require.Equal(t, 2, r.at(0))
	require.Equal(t, 4, r.at(2))
}

func TestRingLast(t *testing.T) {
	r := newRing[int](5)
	for i := 1; i <= 7; i++ {
		r.push(i)
	}

	require.Nil(t, r.last(6), "asking for more than buffered returns nil")
	require.Equal(t, []int{5, 6, 7}, r.last(3))
	require.Equal(t, []int{3, 4, 5, 6, 7}, r.last(5))
}

func TestRingBoundedMemory(t *testing.T) {
	r := newRing[int](10)
	for i := 0; i < 1000; i++ {
		r.push(i)
	}
	require.Equal(t, 10, r.len())
	require.Equal(t, 990, r.at(0))
	require.Equal(t, 999, r.at(9))
}
