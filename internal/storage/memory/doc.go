// Package memory provides the in-memory key-value store.
//
// Entries are opaque byte strings with an optional absolute expiry in Unix
// milliseconds. Expiry is lazy: an expired entry reads as absent but stays
// in the map until it is overwritten.
//
// Thread Safety:
//
// All operations are safe for concurrent use. The map is an xsync.MapOf,
// which locks per bucket; every operation touches a single key except Keys
// and Len, which iterate without a global lock.
package memory
