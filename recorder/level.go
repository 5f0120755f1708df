package recorder

import "math"

// ReferenceRMS is the loudness mapped to a full volume meter. Normal speech
// into a laptop microphone lands well below the int16 ceiling.
const ReferenceRMS = 700.0

// RMS returns the root-mean-square amplitude of samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Normalize maps rms linearly onto [0, 1], clamped at ReferenceRMS.
func Normalize(rms float64) float64 {
	v := rms / ReferenceRMS
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 1:
		return 1
	}
	return v
}
