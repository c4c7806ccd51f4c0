package engine

import (
	"testing"

	clone "github.com/huandu/go-clone/generic"

	"github.com/trkplay/trkplay/trkmod"
)

var testModule = trkmod.Module{
	Name: "testsong",
	Mode: trkmod.PlaybackMode{Kind: trkmod.ModeS3M},
	Samples: []trkmod.Sample{
		{
			Name:          "testins1",
			BaseFrequency: 8363,
			DefaultVolume: 60,
			GlobalVolume:  64,
			LoopType:      trkmod.LoopNone,
			Audio:         make([]int16, 1000),
		},
	},
}

func newTestChannel() channel {
	mod := clone.Clone(testModule)
	c := newChannel(&mod)
	c.sampleIndex = 0
	return c
}

func TestChannel_PortaUpRaisesFrequency(t *testing.T) {
	c := newTestChannel()
	c.freq = 8363
	c.portaUp(16)
	if c.freq <= 8363 {
		t.Errorf("freq = %v, want > 8363 after portaUp", c.freq)
	}
}

func TestChannel_PortaUpZeroValueReplaysMemory(t *testing.T) {
	c := newTestChannel()
	c.freq = 8363
	c.portaUp(16)
	after1 := c.freq
	c.portaUp(0)
	if c.freq <= after1 {
		t.Errorf("second portaUp(0) did not replay memory: freq %v -> %v", after1, c.freq)
	}
}

func TestChannel_VolSlideUpAndDown(t *testing.T) {
	c := newTestChannel()
	c.volume = 32
	c.volSlide(0x30) // upper nibble 3, slide up
	if c.volume != 35 {
		t.Errorf("volume = %v, want 35", c.volume)
	}
	c.volSlide(0x02) // lower nibble 2, slide down
	if c.volume != 33 {
		t.Errorf("volume = %v, want 33", c.volume)
	}
}

func TestChannel_VolSlideClampsToRange(t *testing.T) {
	c := newTestChannel()
	c.volume = 1
	c.volSlide(0x0F)
	if c.volume != 0 {
		t.Errorf("volume = %v, want 0 (clamped)", c.volume)
	}

	c.volume = 63
	c.volSlide(0xF0)
	if c.volume != 64 {
		t.Errorf("volume = %v, want 64 (clamped)", c.volume)
	}
}

func TestChannel_RetriggerResetsPositionAtPeriod(t *testing.T) {
	c := newTestChannel()
	c.position = 500
	c.retriggerTicks = 0

	c.retrigger(0x03) // no volume change, period 3
	if c.position != 500 {
		t.Errorf("position = %v, want unchanged before period elapses", c.position)
	}
	c.retrigger(0x03)
	c.retrigger(0x03)
	c.retrigger(0x03)
	if c.position != 0 {
		t.Errorf("position = %v, want 0 after period elapses", c.position)
	}
}

func TestChannel_TriggerStartsPlaybackAtKeyFrequency(t *testing.T) {
	c := newTestChannel()
	c.trigger(60, nil)
	if !c.playing {
		t.Fatal("playing = false, want true")
	}
	if c.position != 0 {
		t.Errorf("position = %v, want 0", c.position)
	}
	if c.freq != trkmod.FreqForKey(8363, 60) {
		t.Errorf("freq = %v, want %v", c.freq, trkmod.FreqForKey(8363, 60))
	}
}

func TestChannel_TriggerWithSampleOffsetSeeks(t *testing.T) {
	c := newTestChannel()
	c.trigger(60, &trkmod.Effect{Kind: trkmod.EffSampleOffset, Value: 2})
	if c.position != 2*256 {
		t.Errorf("position = %v, want %v", c.position, 2*256)
	}
}

func TestSampleLinear_InterpolatesBetweenFrames(t *testing.T) {
	audio := []int16{0, 100, 200}
	got := sampleLinear(audio, 0.5)
	if got != 50 {
		t.Errorf("sampleLinear(0.5) = %v, want 50", got)
	}
}

func TestAdvancePosition_PingPongFlipsDirectionAtLoopEnd(t *testing.T) {
	c := newTestChannel()
	sample := c.sample()
	sample.LoopType = trkmod.LoopPingPong
	sample.LoopStart = 0
	sample.LoopEnd = 100
	c.position = 95
	c.backwards = false

	c.advancePosition(10)
	if !c.backwards {
		t.Errorf("backwards = false, want true after crossing ping-pong boundary")
	}
}

func TestAdvancePosition_ForwardLoopWrapsToStart(t *testing.T) {
	c := newTestChannel()
	sample := c.sample()
	sample.LoopType = trkmod.LoopForward
	sample.LoopStart = 10
	sample.LoopEnd = 100
	c.position = 95

	c.advancePosition(10)
	if c.position < 10 || c.position >= 100 {
		t.Errorf("position = %v, want within [10, 100) after forward-loop wrap", c.position)
	}
}

func TestAdvancePosition_StopsPlayingPastSampleEndWithNoLoop(t *testing.T) {
	c := newTestChannel()
	sample := c.sample()
	sample.LoopType = trkmod.LoopNone
	sample.LoopEnd = 0
	c.position = float64(len(sample.Audio) - 5)
	c.playing = true

	c.advancePosition(10)
	if c.playing {
		t.Errorf("playing = true, want false after running off the end of a non-looping sample")
	}
}

func TestAddToSlab_IgnoresStaleLoopEndWhenLoopTypeIsNone(t *testing.T) {
	c := newTestChannel()
	sample := c.sample()
	sample.LoopType = trkmod.LoopNone
	sample.LoopEnd = 10 // stale value carried from the file, loop flag not set
	c.playing = true
	c.position = 5
	c.freq = 8363

	slab := make([]int32, 64)
	c.addToSlab(slab, 44100, InterpolationNone)

	if c.position < 10 {
		t.Errorf("position = %v, want to have advanced past the stale LoopEnd of 10", c.position)
	}
}
