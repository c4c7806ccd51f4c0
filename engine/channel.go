package engine

import (
	"math"

	"github.com/trkplay/trkplay/trkmod"
)

// channel is one voice of the sequencer: a sample slot, a playback cursor
// into its audio, and the handful of effect-memory registers that the
// Exx/Fxx/Gxx/Dxy/Qxy family of effects read back when invoked with a zero
// argument. Grounded on the reference player's per-voice Channel struct.
type channel struct {
	module *trkmod.Module

	sampleIndex int // 0-based into module.Samples; -1 if never triggered
	playing     bool
	freq        float64
	position    float64
	backwards   bool

	portaMemory     uint8
	lastNote        uint8
	offsetMemory    uint8
	volumeMemory    uint8
	retriggerTicks  uint8

	volume float64 // 0..64
}

func newChannel(mod *trkmod.Module) channel {
	return channel{
		module:      mod,
		sampleIndex: -1,
		freq:        8363,
		volume:      64,
	}
}

func (c *channel) sample() *trkmod.Sample {
	if c.sampleIndex < 0 || c.sampleIndex >= len(c.module.Samples) {
		return nil
	}
	return &c.module.Samples[c.sampleIndex]
}

// portaUp raises pitch by an Fxx/Exx-style magnitude. value==0 replays the
// last nonzero magnitude, per the Exx/Fxx effect-memory convention.
func (c *channel) portaUp(value uint8) {
	if value != 0 {
		c.portaMemory = value
	} else {
		value = c.portaMemory
	}
	switch value & 0xF0 {
	case 0xE0:
		c.freq *= math.Pow(2, float64(value&0x0F)/768)
	case 0xF0:
		c.freq *= math.Pow(2, 2*float64(value&0x0F)/768)
	default:
		c.freq *= math.Pow(2, 4*float64(value)/768)
	}
}

func (c *channel) portaDown(value uint8) {
	if value != 0 {
		c.portaMemory = value
	} else {
		value = c.portaMemory
	}
	switch value & 0xF0 {
	case 0xE0:
		c.freq *= math.Pow(2, -float64(value&0x0F)/768)
	case 0xF0:
		c.freq *= math.Pow(2, -2*float64(value&0x0F)/768)
	default:
		c.freq *= math.Pow(2, -4*float64(value)/768)
	}
}

// tonePortamento slides freq toward the frequency implied by the channel's
// last-seen note, at a rate controlled by value (0 replays the Gxx memory).
// linear is not consulted: linear-slide and Amiga-period modules both use
// the same logarithmic step, so Amiga-period slides are not reproduced.
func (c *channel) tonePortamento(note trkmod.Note, linear bool, value uint8) {
	if value != 0 {
		c.portaMemory = value
	} else {
		value = c.portaMemory
	}
	if note.Kind == trkmod.NoteOn {
		c.lastNote = note.Key
	}

	sample := c.sample()
	if sample == nil {
		return
	}
	desired := trkmod.FreqForKey(sample.BaseFrequency, c.lastNote)

	if c.freq < desired {
		c.freq *= math.Pow(2, 4*float64(value)/768)
		if c.freq > desired {
			c.freq = desired
		}
	} else if c.freq > desired {
		c.freq *= math.Pow(2, -4*float64(value)/768)
		if c.freq < desired {
			c.freq = desired
		}
	}
	_ = linear // both branches share the same step for now; see DESIGN.md
}

func (c *channel) volSlide(value uint8) {
	if value != 0 {
		c.volumeMemory = value
	} else {
		value = c.volumeMemory
	}

	upper := (value & 0xF0) >> 4
	lower := value & 0x0F

	switch {
	case upper == 0 && lower != 0:
		c.volume -= float64(lower)
	case upper != 0 && lower == 0:
		c.volume += float64(upper)
	case upper == 0xF && lower != 0:
		c.volume -= float64(lower) / 8
	case upper != 0 && lower == 0xF:
		c.volume += float64(upper) / 8
	}
	c.clampVolume()
}

func (c *channel) retrigger(value uint8) {
	switch (value & 0xF0) >> 4 {
	case 1:
		c.volume -= 1
	case 2:
		c.volume -= 2
	case 3:
		c.volume -= 4
	case 4:
		c.volume -= 8
	case 5:
		c.volume -= 16
	case 6:
		c.volume *= 2.0 / 3.0
	case 7:
		c.volume *= 0.5
	case 9:
		c.volume += 1
	case 0xA:
		c.volume += 2
	case 0xB:
		c.volume += 4
	case 0xC:
		c.volume += 8
	case 0xD:
		c.volume += 16
	case 0xE:
		c.volume *= 1.5
	case 0xF:
		c.volume *= 2
	}

	period := value & 0x0F
	if c.retriggerTicks >= period {
		c.position = 0
		c.retriggerTicks = 0
	}
	c.retriggerTicks++
	c.clampVolume()
}

func (c *channel) clampVolume() {
	if c.volume > 64 {
		c.volume = 64
	}
	if c.volume < 0 {
		c.volume = 0
	}
}

// trigger starts playback of the channel's current sample at key, honoring
// a pending Oxx sample-offset effect.
func (c *channel) trigger(key uint8, offsetEffect *trkmod.Effect) {
	sample := c.sample()
	if sample == nil {
		return
	}
	c.playing = true
	c.backwards = false
	c.position = 0
	if offsetEffect != nil && offsetEffect.Kind == trkmod.EffSampleOffset {
		if offsetEffect.Value != 0 {
			c.offsetMemory = offsetEffect.Value
		}
		c.position = float64(c.offsetMemory) * 256
	}
	c.freq = trkmod.FreqForKey(sample.BaseFrequency, key)
}

// addToSlab mixes this channel's contribution into slab (int32 accumulator,
// headroom above int16 range) for the next sampleRate-relative tick
// duration, subdividing at each loop-wrap or direction change the way the
// reference mixer's add_to_slab does.
func (c *channel) addToSlab(slab []int32, sampleRate int, interp Interpolation) {
	sample := c.sample()
	if sample == nil || len(sample.Audio) == 0 {
		return
	}

	remaining := len(slab)
	pos := 0
	for remaining > 0 && c.playing {
		var segAhead float64
		switch {
		case c.backwards:
			segAhead = c.position - float64(sample.LoopStart)
		case sample.LoopType != trkmod.LoopNone && sample.LoopEnd > 0:
			segAhead = float64(sample.LoopEnd) - c.position
		default:
			segAhead = float64(len(sample.Audio)) - c.position
		}

		segSamples := int(segAhead * float64(sampleRate) / c.freq)
		if segSamples <= 0 {
			segSamples = 1
		}
		if segSamples > remaining {
			segSamples = remaining
			segAhead = float64(segSamples) * c.freq / float64(sampleRate)
		}
		remaining -= segSamples

		c.processSegment(sample, segSamples, segAhead, slab[pos:pos+segSamples], sampleRate, interp)
		pos += segSamples
	}
}

func (c *channel) processSegment(sample *trkmod.Sample, segSamples int, segAhead float64, dst []int32, sampleRate int, interp Interpolation) {
	start := c.position
	freqStep := c.freq / float64(sampleRate)

	for i := range dst {
		var at float64
		if c.backwards {
			at = start - float64(i)*freqStep
		} else {
			at = start + float64(i)*freqStep
		}
		dst[i] += c.interpolate(sample, interp, at)
	}

	c.advancePosition(segAhead)
}

func (c *channel) interpolate(sample *trkmod.Sample, interp Interpolation, at float64) int32 {
	gain := (c.volume / 64) * (float64(sample.GlobalVolume) / 64)

	var v float64
	switch interp {
	case InterpolationLinear:
		v = sampleLinear(sample.Audio, at-1)
	case InterpolationSinc8, InterpolationSinc16, InterpolationSinc32:
		v = sampleSinc(sample.Audio, at, sincQuality(interp))
	default:
		v = sampleNearest(sample.Audio, at)
	}
	return int32(v * 32768 * gain)
}

func sampleNearest(audio []int16, at float64) float64 {
	idx := int(at)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(audio) {
		idx = len(audio) - 1
	}
	return float64(audio[idx])
}

func sampleLinear(audio []int16, at float64) float64 {
	if len(audio) == 0 {
		return 0
	}
	lo := int(math.Floor(at))
	frac := at - float64(lo)
	loc := clampIndex(lo, len(audio))
	hic := clampIndex(lo+1, len(audio))
	a, b := float64(audio[loc]), float64(audio[hic])
	return a + frac*(b-a)
}

func sampleSinc(audio []int16, at float64, quality int) float64 {
	if len(audio) == 0 || quality == 0 {
		return sampleLinear(audio, at)
	}
	ix := math.Floor(at)
	fx := at - ix
	var sum float64
	n := len(audio)
	for i := 1 - quality; i <= quality; i++ {
		idx := (int(ix)+i%n + n) % n
		sum += float64(audio[idx]) * sinc(float64(i)-fx)
	}
	return sum
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func sinc(x float64) float64 {
	if x > -0.0001 && x < 0.0001 {
		return 1
	}
	return math.Sin(x*math.Pi) / (x * math.Pi)
}

// advancePosition walks the playback cursor forward (or backward) by amount
// sample-frames, crossing loop boundaries and flipping direction for
// ping-pong loops exactly at the boundary, the way the reference mixer's
// advance_position does.
func (c *channel) advancePosition(amount float64) {
	sample := c.sample()
	if sample == nil || len(sample.Audio) == 0 {
		c.playing = false
		return
	}

	for amount > 0 {
		if c.backwards {
			newPos := c.position - amount
			if newPos <= float64(sample.LoopStart) {
				offs := float64(sample.LoopStart) - newPos
				amount = offs
				c.position = float64(sample.LoopStart)
				c.backwards = false
			} else {
				c.position = newPos
				amount = 0
			}
			continue
		}

		realEnd := float64(len(sample.Audio))
		if sample.LoopType != trkmod.LoopNone && sample.LoopEnd != 0 {
			realEnd = float64(sample.LoopEnd)
		}

		newPos := c.position + amount
		if newPos >= realEnd {
			offs := newPos - realEnd
			amount = offs
			switch sample.LoopType {
			case trkmod.LoopPingPong:
				c.position = realEnd
				c.backwards = true
			case trkmod.LoopForward:
				c.position = float64(sample.LoopStart)
			default:
				if int(newPos) >= len(sample.Audio) {
					amount = 0
					c.playing = false
				}
			}
		} else {
			c.position = newPos
			amount = 0
		}
	}
}
