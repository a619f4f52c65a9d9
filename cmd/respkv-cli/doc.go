// Command respkv-cli sends commands to a respkv server.
//
// Run with arguments to send one command, or without to start an
// interactive session.
package main
