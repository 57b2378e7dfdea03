// Package dedup implements the builder-scoped content caches used to share
// vtables, keys, strings and key vectors inside a single buffer.
package dedup

import "github.com/arloliu/flatcodec/internal/hash"

type entry[V any] struct {
	content string
	value   V
}

// Cache maps byte content to a previously written value.
//
// Entries are bucketed by xxHash64 and matched by exact content equality, so a
// hash collision never aliases two different contents; it only lengthens a
// bucket and raises the collision flag.
//
// Note: Cache is NOT thread-safe. It is owned by one builder.
type Cache[V any] struct {
	buckets      map[uint64][]entry[V]
	count        int
	hasCollision bool
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{
		buckets: make(map[uint64][]entry[V]),
	}
}

// Lookup returns the value stored for content.
func (c *Cache[V]) Lookup(content []byte) (V, bool) {
	return c.lookup(hash.Bytes(content), string(content))
}

// LookupString returns the value stored for content.
func (c *Cache[V]) LookupString(content string) (V, bool) {
	return c.lookup(hash.String(content), content)
}

func (c *Cache[V]) lookup(h uint64, content string) (V, bool) {
	for _, e := range c.buckets[h] {
		if e.content == content {
			return e.value, true
		}
	}

	var zero V

	return zero, false
}

// Store records value for content. It returns false without replacing anything
// when content is already present.
func (c *Cache[V]) Store(content []byte, value V) bool {
	return c.store(hash.Bytes(content), string(content), value)
}

// StoreString records value for content.
func (c *Cache[V]) StoreString(content string, value V) bool {
	return c.store(hash.String(content), content, value)
}

func (c *Cache[V]) store(h uint64, content string, value V) bool {
	bucket := c.buckets[h]
	for _, e := range bucket {
		if e.content == content {
			return false
		}
	}

	if len(bucket) > 0 {
		c.hasCollision = true
	}

	c.buckets[h] = append(bucket, entry[V]{content: content, value: value})
	c.count++

	return true
}

// Len returns the number of distinct contents stored.
func (c *Cache[V]) Len() int {
	return c.count
}

// HasCollision reports whether two distinct contents ever shared a hash bucket.
func (c *Cache[V]) HasCollision() bool {
	return c.hasCollision
}

// Reset clears all entries while keeping the map allocation.
func (c *Cache[V]) Reset() {
	for k := range c.buckets {
		delete(c.buckets, k)
	}
	c.count = 0
	c.hasCollision = false
}
