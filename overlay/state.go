// Package overlay turns feedback messages into what the status overlay
// shows, and renders it in the terminal.
package overlay

import (
	"fmt"
	"time"

	"voxy/feedback"
)

const (
	StopHideDelay       = time.Second
	ProcessingHideDelay = 1500 * time.Millisecond
	MessageHideDelay    = 3 * time.Second
)

type Phase int

const (
	PhaseHidden Phase = iota
	PhaseRecording
	PhaseProcessing
	PhaseMessage
	PhaseIdle
)

func (p Phase) String() string {
	switch p {
	case PhaseHidden:
		return "hidden"
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	case PhaseMessage:
		return "message"
	case PhaseIdle:
		return "idle"
	}
	return "unknown"
}

// State is the overlay model. It is not safe for concurrent use; each UI
// loop owns one.
type State struct {
	Visible    bool
	Recording  bool
	Processing bool
	// Level is the smoothed volume, 0 when not recording.
	Level float64
	// Peak is the loudest level seen in the current recording.
	Peak float64
	Text string

	startedAt time.Time
	frozen    time.Duration
	hideAt    time.Time
	sessions  int
}

// Apply updates the state for one message received at now.
func (s *State) Apply(m feedback.Message, now time.Time) {
	switch m := m.(type) {
	case feedback.StartRecording:
		s.Visible = true
		s.Recording = true
		s.Processing = false
		s.Level, s.Peak = 0, 0
		s.Text = ""
		s.startedAt = now
		s.frozen = 0
		s.hideAt = time.Time{}
		s.sessions++
	case feedback.StopRecording:
		if s.Recording {
			s.frozen = now.Sub(s.startedAt)
		}
		s.Recording = false
		s.Level = 0
		if !s.Processing {
			s.hideAfter(now, StopHideDelay)
		}
	case feedback.UpdateVolume:
		if !s.Recording {
			return
		}
		s.Level = s.Level*0.6 + m.Level*0.4
		if m.Level > s.Peak {
			s.Peak = m.Level
		}
	case feedback.StartProcessing:
		if s.Recording {
			s.frozen = now.Sub(s.startedAt)
		}
		// Capture is over once processing starts, even though the
		// workflow reports StopRecording only when it finishes.
		s.Recording = false
		s.Level = 0
		s.Visible = true
		s.Processing = true
		s.hideAt = time.Time{}
	case feedback.ProcessingComplete:
		s.Processing = false
		if !s.Recording {
			s.hideAfter(now, ProcessingHideDelay)
		}
	case feedback.ShowMessage:
		s.Visible = true
		s.Text = m.Text
		s.hideAfter(now, MessageHideDelay)
	}
}

// hideAfter schedules a hide, never moving an existing one earlier.
func (s *State) hideAfter(now time.Time, d time.Duration) {
	if at := now.Add(d); at.After(s.hideAt) {
		s.hideAt = at
	}
}

// Advance applies a pending hide timer. A message expires even while
// recording or processing; the window itself stays up until both end.
func (s *State) Advance(now time.Time) {
	if s.hideAt.IsZero() || now.Before(s.hideAt) {
		return
	}
	s.hideAt = time.Time{}
	s.Text = ""
	if !s.Recording && !s.Processing {
		s.Visible = false
	}
}

// Elapsed is the recording time, frozen once recording or processing ends.
func (s *State) Elapsed(now time.Time) time.Duration {
	if s.Recording && !s.Processing {
		return now.Sub(s.startedAt)
	}
	return s.frozen
}

func (s *State) Phase() Phase {
	switch {
	case !s.Visible:
		return PhaseHidden
	case s.Text != "":
		return PhaseMessage
	case s.Processing:
		return PhaseProcessing
	case s.Recording:
		return PhaseRecording
	}
	return PhaseIdle
}

// Sessions counts recordings started since the overlay came up.
func (s *State) Sessions() int { return s.sessions }

// FormatElapsed renders d as mm:ss.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Caption is the one-line status text for the current phase.
func (s *State) Caption(now time.Time) string {
	elapsed := FormatElapsed(s.Elapsed(now))
	switch s.Phase() {
	case PhaseRecording:
		return "REC " + elapsed
	case PhaseProcessing:
		return "transcribing " + elapsed
	case PhaseMessage:
		return s.Text
	}
	return ""
}
