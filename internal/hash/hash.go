// Package hash provides the content hashes used to bucket deduplication caches.
package hash

import "github.com/cespare/xxhash/v2"

// Bytes computes the xxHash64 of b.
func Bytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// String computes the xxHash64 of s without copying it.
func String(s string) uint64 {
	return xxhash.Sum64String(s)
}
