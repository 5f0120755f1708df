// Package beep plays short audible cues when recording starts, ends or
// fails.
package beep

import (
	"math"
	"sync/atomic"

	"voxy/feedback"
)

const sampleRate = 44100

type Cue int

const (
	CueStart Cue = iota
	CueEnd
	CueError
)

type tone struct {
	freq   float64
	dur    float64
	volume float64
	decay  float64
	// repeat plays the tone twice with gap seconds in between.
	repeat bool
	gap    float64
}

var tones = map[Cue]tone{
	// high and short
	CueStart: {freq: 1200, dur: 0.2, volume: 0.5, decay: 60},
	// a little lower, slower decay
	CueEnd: {freq: 900, dur: 0.2, volume: 0.5, decay: 40},
	// low double beep
	CueError: {freq: 350, dur: 0.08, volume: 0.6, decay: 30, repeat: true, gap: 0.05},
}

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

// output is swapped out in tests.
var output = playCue

// Play sounds c without blocking.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	go output(c)
}

func generateTick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

// samples renders c as mono 16-bit PCM.
func samples(c Cue) []int16 {
	t, ok := tones[c]
	if !ok {
		return nil
	}
	tick := generateTick(t.freq, t.dur, t.volume, t.decay)
	if !t.repeat {
		return tick
	}
	gap := make([]int16, int(sampleRate*t.gap))
	out := make([]int16, 0, len(tick)*2+len(gap))
	out = append(out, tick...)
	out = append(out, gap...)
	return append(out, tick...)
}

// Sink plays a cue for recording and message events, then forwards them.
type Sink struct {
	Next feedback.Sink
}

func (s Sink) Push(m feedback.Message) bool {
	switch m := m.(type) {
	case feedback.StartRecording:
		Play(CueStart)
	case feedback.StopRecording:
		Play(CueEnd)
	case feedback.ShowMessage:
		if m.Text != feedback.TextInjecting {
			Play(CueError)
		}
	}
	return s.Next.Push(m)
}
