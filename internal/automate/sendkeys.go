package automate

import (
	"fmt"
	"strings"
)

// The PRESS grammar is SendKeys virtual-key syntax: ^ + % prefix a key with
// ctrl, shift, alt; {NAME} is a named key; anything else is a literal
// character. A modifier binds to the single key that follows it.

// Keystroke is one key tap with its modifiers.
type Keystroke struct {
	Key  string
	Mods []string
}

var namedKeys = map[string]string{
	"ENTER":     "enter",
	"ESC":       "esc",
	"ESCAPE":    "esc",
	"TAB":       "tab",
	"SPACE":     "space",
	"BACKSPACE": "backspace",
	"BS":        "backspace",
	"DELETE":    "delete",
	"DEL":       "delete",
	"INSERT":    "insert",
	"HOME":      "home",
	"END":       "end",
	"PGUP":      "pageup",
	"PGDN":      "pagedown",
	"UP":        "up",
	"DOWN":      "down",
	"LEFT":      "left",
	"RIGHT":     "right",
	"WIN":       "cmd",
	"LWIN":      "cmd",
	"F1":        "f1", "F2": "f2", "F3": "f3", "F4": "f4",
	"F5": "f5", "F6": "f6", "F7": "f7", "F8": "f8",
	"F9": "f9", "F10": "f10", "F11": "f11", "F12": "f12",
}

// ParseSendKeys translates a SendKeys combo string into keystrokes.
func ParseSendKeys(combo string) ([]Keystroke, error) {
	var (
		out  []Keystroke
		mods []string
	)

	runes := []rune(combo)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '^':
			mods = append(mods, "ctrl")
		case '+':
			mods = append(mods, "shift")
		case '%':
			mods = append(mods, "alt")
		case '{':
			end := strings.IndexRune(string(runes[i:]), '}')
			if end <= 1 {
				return nil, fmt.Errorf("unterminated brace at %d in %q", i, combo)
			}
			name := strings.ToUpper(string(runes[i+1 : i+end]))
			key, ok := namedKeys[name]
			if !ok {
				if len(name) == 1 {
					// brace-escaped literal, e.g. {+}
					key = strings.ToLower(name)
				} else {
					return nil, fmt.Errorf("unknown key name %q in %q", name, combo)
				}
			}
			out = append(out, Keystroke{Key: key, Mods: mods})
			mods = nil
			i += end
		case ' ':
			// spaces separate chords for readability
			mods = nil
		default:
			out = append(out, Keystroke{Key: strings.ToLower(string(runes[i])), Mods: mods})
			mods = nil
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no keys in %q", combo)
	}
	return out, nil
}

var sendKeysSpecial = "+^%~(){}[]"

// EscapeSendKeys brace-escapes every character SendKeys treats as an
// operator, so literal text survives keystroke injection unchanged.
func EscapeSendKeys(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(sendKeysSpecial, r) {
			b.WriteRune('{')
			b.WriteRune(r)
			b.WriteRune('}')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
