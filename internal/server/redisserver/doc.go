// Package redisserver serves the RESP2 command subset over TCP.
//
// Supported commands:
//   - PING, ECHO
//   - GET, SET [PX ms], KEYS *
//   - CONFIG GET, CONFIG SET
//   - INFO (replication section)
//   - REPLCONF (acknowledged so replicas can complete their handshake)
//
// COMMAND closes the connection without a reply. Any other command is
// answered with an error and the connection stays open.
package redisserver
