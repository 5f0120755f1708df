package recorder

import "time"

type verdict int

const (
	verdictDiscard verdict = iota
	verdictSpeechStart
	verdictKeep
	verdictStop
)

// detector classifies blocks by loudness. Quiet blocks before the first
// loud one are discarded; once speech has started every block is kept
// until silentNeeded consecutive quiet blocks have been seen.
type detector struct {
	threshold    float64
	silentNeeded int

	started   bool
	silentRun int
	stopped   bool
}

func newDetector(threshold float64, silentNeeded int) *detector {
	return &detector{threshold: threshold, silentNeeded: silentNeeded}
}

// silentBlocksNeeded converts the stop duration into whole blocks, rounding
// down, and never below one.
func silentBlocksNeeded(stop time.Duration, sampleRate, blockSize int) int {
	n := int(stop.Seconds() * float64(sampleRate) / float64(blockSize))
	return max(n, 1)
}

func (d *detector) classify(rms float64) verdict {
	if d.stopped {
		return verdictDiscard
	}
	if rms > d.threshold {
		d.silentRun = 0
		if !d.started {
			d.started = true
			return verdictSpeechStart
		}
		return verdictKeep
	}
	if !d.started {
		return verdictDiscard
	}
	d.silentRun++
	if d.silentRun >= d.silentNeeded {
		d.stopped = true
		return verdictStop
	}
	return verdictKeep
}
