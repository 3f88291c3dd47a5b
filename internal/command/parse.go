// Package command turns assistant output into automation: a deterministic
// parser for the line-oriented KIND:payload grammar, and a sequential
// executor that runs parsed commands against the OS automation surface.
package command

import (
	"fmt"
	log "log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Kind is one of the five recognized command kinds.
type Kind string

const (
	KindType   Kind = "TYPE"
	KindOpen   Kind = "OPEN"
	KindSearch Kind = "SEARCH"
	KindPress  Kind = "PRESS"
	KindClick  Kind = "CLICK"
)

// Command is a single parsed directive, immutable once parsed.
type Command struct {
	Kind    Kind
	Payload string
}

func (c Command) String() string {
	return fmt.Sprintf("%s:%s", c.Kind, c.Payload)
}

// ClickCoords parses a CLICK payload as two comma-separated integers.
func (c Command) ClickCoords() (x, y int, err error) {
	parts := strings.SplitN(c.Payload, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want x,y, got %q", c.Payload)
	}
	x, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad x coordinate %q", parts[0])
	}
	y, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad y coordinate %q", parts[1])
	}
	return x, y, nil
}

var commandLineRe = regexp.MustCompile(`^(TYPE|OPEN|SEARCH|PRESS|CLICK):(.*)$`)

// Parse scans assistant text line by line for command directives, in the
// order they appear. The returned display text is the input with every
// recognized command line removed, so the user never hears the raw grammar.
// A CLICK with malformed coordinates is dropped with a diagnostic and does
// not abort the rest.
func Parse(text string) (displayText string, cmds []Command) {
	var kept []string

	for _, line := range strings.Split(text, "\n") {
		m := commandLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			kept = append(kept, line)
			continue
		}

		cmd := Command{Kind: Kind(m[1]), Payload: strings.TrimSpace(m[2])}
		if cmd.Kind == KindClick {
			if _, _, err := cmd.ClickCoords(); err != nil {
				log.Warn("Dropping CLICK with bad coordinates", "payload", cmd.Payload, "err", err)
				continue
			}
		}
		cmds = append(cmds, cmd)
	}

	return strings.TrimSpace(strings.Join(kept, "\n")), cmds
}
