// Package snapshot loads RDB snapshot files into a key-value sink.
//
// File layout:
//
//	[magic:5 "REDIS"][version:4 ASCII digits]
//	repeated: [opcode:1][payload]
//	[0xFF][checksum:8]
//
// Opcodes:
//
//	0xFA  aux field: two strings
//	0xFE  select db: one length
//	0xFB  resize db: two lengths
//	0xFD  expiry in seconds (uint32 LE), then one key-value pair
//	0xFC  expiry in milliseconds (uint64 LE), then one key-value pair
//	0xFF  end of file; remaining bytes are discarded
//
// Any other byte starts a key-value pair without expiry. Only plain string
// values are restored; other value types are skipped. Entries that have
// already expired at load time are dropped.
package snapshot
