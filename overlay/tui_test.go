package overlay

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"voxy/feedback"
)

func TestModelDrainsChannelOnPoll(t *testing.T) {
	ch := feedback.NewChannel(8)
	m := newModel(ch, 10*time.Millisecond, Info{Hotkey: "alt+shift+s", Provider: "openai", Model: "whisper-1"})

	ch.Push(feedback.StartRecording{})
	ch.Push(feedback.UpdateVolume{Level: 0.5})

	next, cmd := m.Update(pollMsg(t0))
	if cmd == nil {
		t.Fatal("poll did not reschedule")
	}
	got := next.(model)
	if got.state.Phase() != PhaseRecording {
		t.Fatalf("phase = %v", got.state.Phase())
	}
	if ch.Len() != 0 {
		t.Errorf("%d messages left in channel", ch.Len())
	}

	view := got.View()
	for _, want := range []string{"REC 00:00", "alt+shift+s", "[openai | whisper-1]"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelShowsMessageAndStandby(t *testing.T) {
	ch := feedback.NewChannel(8)
	m := newModel(ch, 10*time.Millisecond, Info{Hotkey: "ctrl+space"})

	if !strings.Contains(m.View(), "STANDBY") {
		t.Error("initial view is not standby")
	}

	ch.Push(feedback.ShowMessage{Text: feedback.TextInjectionError})
	next, _ := m.Update(pollMsg(t0))
	if v := next.View(); !strings.Contains(v, feedback.TextInjectionError) {
		t.Errorf("view missing message:\n%s", v)
	}

	next, _ = next.Update(pollMsg(t0.Add(MessageHideDelay)))
	if v := next.View(); !strings.Contains(v, "STANDBY") {
		t.Errorf("message did not expire:\n%s", v)
	}
}

func TestModelQuits(t *testing.T) {
	m := newModel(feedback.NewChannel(1), time.Millisecond, Info{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("no command for ctrl+c")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}
