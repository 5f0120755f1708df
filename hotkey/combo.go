package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCombo = errors.New("invalid hotkey combo")

// Combo is a parsed key combination such as "alt+shift+s".
type Combo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
	Key   string
}

var modifierNames = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"opt":     "alt",
	"super":   "super",
	"cmd":     "super",
	"command": "super",
	"win":     "super",
	"meta":    "super",
}

// ParseCombo reads a '+' separated combo. Modifiers may come in any order,
// the final element is the key: a-z, 0-9, space or f1-f12.
func ParseCombo(s string) (Combo, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(parts) < 2 {
		return Combo{}, fmt.Errorf("%w %q: need at least one modifier and a key", ErrInvalidCombo, s)
	}

	var c Combo
	for _, p := range parts[:len(parts)-1] {
		p = strings.TrimSpace(p)
		mod, ok := modifierNames[p]
		if !ok {
			return Combo{}, fmt.Errorf("%w %q: unknown modifier %q", ErrInvalidCombo, s, p)
		}
		switch mod {
		case "ctrl":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt":
			c.Alt = true
		case "super":
			c.Super = true
		}
	}

	key := strings.TrimSpace(parts[len(parts)-1])
	if !validKey(key) {
		return Combo{}, fmt.Errorf("%w %q: unsupported key %q", ErrInvalidCombo, s, key)
	}
	c.Key = key
	return c, nil
}

func validKey(k string) bool {
	if len(k) == 1 {
		return (k[0] >= 'a' && k[0] <= 'z') || (k[0] >= '0' && k[0] <= '9')
	}
	if k == "space" {
		return true
	}
	for i := 1; i <= 12; i++ {
		if k == fmt.Sprintf("f%d", i) {
			return true
		}
	}
	return false
}

// String renders the combo in canonical modifier order.
func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Super {
		parts = append(parts, "super")
	}
	return strings.Join(append(parts, c.Key), "+")
}
