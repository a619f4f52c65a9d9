package repl

import (
	"sort"
	"strings"
)

// Completer suggests command names for a prefix.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer for the commands respkv-server answers.
func NewCompleter() *Completer {
	return &Completer{
		commands: []string{
			"PING", "ECHO", "SET", "GET", "KEYS", "INFO",
			"CONFIG GET", "CONFIG SET", "REPLCONF",
			"help", "exit", "quit",
		},
	}
}

// Complete returns the commands starting with prefix, case-insensitively.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.ToUpper(prefix)
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(strings.ToUpper(cmd), prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	sort.Strings(suggestions)
	return suggestions
}
