// Package repl provides the interactive mode of respkv-cli.
//
// Each input line is split into arguments (double or single quotes group
// words, backslash escapes work inside double quotes) and sent as one
// command. "help [prefix]" lists known commands; "exit" and "quit" leave.
package repl
