// Command respkv-server serves a subset of the Redis protocol from an
// in-memory store seeded from an RDB snapshot.
//
// Configuration comes from flags, RESPKV_* environment variables, a .env
// file and an optional YAML file, in that order of precedence. With
// --replicaof the server announces itself to the primary at startup.
package main
