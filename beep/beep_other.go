//go:build !linux && !darwin

package beep

import (
	"github.com/gen2brain/beeep"

	"voxy/log"
)

func playCue(c Cue) {
	t, ok := tones[c]
	if !ok {
		return
	}
	n := 1
	if t.repeat {
		n = 2
	}
	for i := 0; i < n; i++ {
		if err := beeep.Beep(t.freq, int(t.dur*1000)); err != nil {
			log.Debugf("beep: %v", err)
			return
		}
	}
}
