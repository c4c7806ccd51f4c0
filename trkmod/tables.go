package trkmod

import "math"

// PitchTable maps a MIDI-like key (0..127, key 60 = C-5) to the frequency
// multiplier applied to a sample's BaseFrequency. Grounded on the reference
// player's pitch formula 2^((key-60)/12).
var PitchTable [128]float64

func init() {
	for i := range PitchTable {
		PitchTable[i] = math.Pow(2, (float64(i)-60)/12)
	}
}

// FreqForKey returns the playback frequency in Hz for a sample triggered at
// the given key.
func FreqForKey(baseFrequency int, key uint8) float64 {
	idx := int(key)
	if idx < 0 {
		idx = 0
	}
	if idx > 127 {
		idx = 127
	}
	return PitchTable[idx] * float64(baseFrequency)
}

// sinc evaluates the normalized sinc function used by the Sinc interpolators.
func sinc(x float64) float64 {
	if x > -0.0001 && x < 0.0001 {
		return 1
	}
	return math.Sin(x*math.Pi) / (x * math.Pi)
}
