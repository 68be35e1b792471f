package core

import (
	"strconv"
	"strings"
)

// Command is a fully rendered server command. Args excludes the command
// name itself.
type Command struct {
	Name string
	Args []string
}

// Any returns the arguments in the form transports accept.
func (c Command) Any() []any {
	out := make([]any, len(c.Args))
	for i, a := range c.Args {
		out[i] = a
	}
	return out
}

// String renders the command on one line, quoting arguments that would not
// survive being split on whitespace.
func (c Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	for _, a := range c.Args {
		sb.WriteByte(' ')
		if a == "" || strings.ContainsAny(a, " \t\n\"") {
			sb.WriteString(strconv.Quote(a))
			continue
		}
		sb.WriteString(a)
	}
	return sb.String()
}
