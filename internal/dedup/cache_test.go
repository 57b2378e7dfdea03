package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New[uint32]()

	require.NotNil(t, c)
	require.Equal(t, 0, c.Len())
	require.False(t, c.HasCollision())
}

func TestCache_StoreLookup(t *testing.T) {
	c := New[uint32]()

	require.True(t, c.Store([]byte{4, 0, 8, 0}, 100))
	require.True(t, c.StoreString("name", 200))

	v, ok := c.Lookup([]byte{4, 0, 8, 0})
	require.True(t, ok)
	require.Equal(t, uint32(100), v)

	v, ok = c.LookupString("name")
	require.True(t, ok)
	require.Equal(t, uint32(200), v)

	_, ok = c.Lookup([]byte{4, 0, 8})
	require.False(t, ok)
	require.Equal(t, 2, c.Len())
}

func TestCache_StoreDuplicateKeepsFirst(t *testing.T) {
	c := New[int]()

	require.True(t, c.StoreString("k", 1))
	require.False(t, c.StoreString("k", 2))

	v, ok := c.LookupString("k")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 1, c.Len())
}

func TestCache_CollisionKeepsContentsApart(t *testing.T) {
	c := New[int]()

	// Force two contents into the same bucket.
	require.True(t, c.store(7, "first", 1))
	require.True(t, c.store(7, "second", 2))
	require.True(t, c.HasCollision())

	v, ok := c.lookup(7, "first")
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = c.lookup(7, "second")
	require.True(t, ok)
	require.Equal(t, 2, v)

	_, ok = c.lookup(7, "third")
	require.False(t, ok)
}

func TestCache_Reset(t *testing.T) {
	c := New[int]()
	c.StoreString("a", 1)
	c.store(1, "x", 1)
	c.store(1, "y", 2)

	c.Reset()

	require.Equal(t, 0, c.Len())
	require.False(t, c.HasCollision())
	_, ok := c.LookupString("a")
	require.False(t, ok)
}
