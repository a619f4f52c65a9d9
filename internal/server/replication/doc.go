// Package replication holds the server's replication identity and the
// replica side of the primary handshake.
//
// The handshake stops where a full resynchronization would begin: no PSYNC
// is sent and no data is streamed from the primary.
package replication
