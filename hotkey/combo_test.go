package hotkey

import (
	"errors"
	"testing"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in   string
		want Combo
	}{
		{"alt+shift+s", Combo{Alt: true, Shift: true, Key: "s"}},
		{"Ctrl+Shift+Space", Combo{Ctrl: true, Shift: true, Key: "space"}},
		{"cmd+option+9", Combo{Super: true, Alt: true, Key: "9"}},
		{" control + f12 ", Combo{Ctrl: true, Key: "f12"}},
		{"win+meta+a", Combo{Super: true, Key: "a"}},
	}
	for _, tt := range tests {
		got, err := ParseCombo(tt.in)
		if err != nil {
			t.Errorf("ParseCombo(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCombo(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseComboRejects(t *testing.T) {
	for _, in := range []string{"", "s", "alt+", "hyper+s", "alt+shift+f13", "alt+enter", "alt+ab"} {
		if _, err := ParseCombo(in); !errors.Is(err, ErrInvalidCombo) {
			t.Errorf("ParseCombo(%q) err = %v, want ErrInvalidCombo", in, err)
		}
	}
}

func TestComboString(t *testing.T) {
	c, err := ParseCombo("shift+super+ctrl+alt+f1")
	if err != nil {
		t.Fatal(err)
	}
	if got := c.String(); got != "ctrl+alt+shift+super+f1" {
		t.Errorf("String() = %q", got)
	}
	again, err := ParseCombo(c.String())
	if err != nil || again != c {
		t.Errorf("reparse = %+v, %v", again, err)
	}
}
