// ABOUTME: Input line parsing for the chat REPL
// ABOUTME: Slash commands map to session operations; anything else is a message

package main

import (
	"fmt"
	"strconv"
	"strings"
)

// command is one parsed input line.
type command struct {
	name string   // "" for a blank line, "send" for a message
	args []string // whitespace-split arguments of a slash command
	text string   // the raw line for "send"
}

var aliases = map[string]string{
	"q":     "quit",
	"exit":  "quit",
	"ls":    "list",
	"sw":    "switch",
	"login": "signin",
}

// parseCommand classifies a line. Lines starting with "//" send a literal "/".
func parseCommand(line string) command {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return command{}
	}

	if strings.HasPrefix(trimmed, "//") {
		return command{name: "send", text: line[strings.Index(line, "/")+1:]}
	}
	if !strings.HasPrefix(trimmed, "/") {
		return command{name: "send", text: line}
	}

	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return command{name: "help"}
	}
	name := strings.ToLower(fields[0])
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	return command{name: name, args: fields[1:]}
}

// pickSession resolves a /switch argument against the last printed list.
func pickSession(arg string, listed []string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(listed) {
			return "", fmt.Errorf("no conversation #%d (run /list first)", n)
		}
		return listed[n-1], nil
	}
	return arg, nil
}
