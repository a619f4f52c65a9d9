// Package command defines the respkv-cli application using urfave/cli/v2.
//
//   - root.go: application, global flags, one-shot and interactive modes
//   - server.go: ping and info subcommands
//
// Arguments that do not name a subcommand are sent to the server as one
// command. With no arguments the interactive REPL starts.
package command
