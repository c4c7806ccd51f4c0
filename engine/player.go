// Package engine sequences and mixes a trkmod.Module into a mono PCM stream.
// A Player owns one Module's worth of playback state; it never mutates the
// Module it was built from, so many Players can share one decoded module.
package engine

import (
	"log"

	"github.com/trkplay/trkplay/trkmod"
)

const noRow = 65535

// Player sequences a trkmod.Module tick by tick and mixes its channels into
// caller-supplied output buffers. It is not safe for concurrent use except
// through its Control mailbox.
type Player struct {
	Module        *trkmod.Module
	SampleRate    int
	Interpolation Interpolation
	Control       Control
	Logger        *log.Logger

	position int
	pattern  int
	row      int

	tempo int
	speed int

	tickCounter int
	ticksPassed int
	tickSlab    int

	paused bool
	ended  bool

	channels [64]channel

	slab []int32
}

// NewPlayer builds a Player ready to render mod at sampleRate.
func NewPlayer(mod *trkmod.Module, sampleRate int) *Player {
	p := &Player{
		Module:        mod,
		SampleRate:    sampleRate,
		Interpolation: InterpolationLinear,
		row:           noRow,
		tempo:         mod.InitialTempo,
		speed:         mod.InitialSpeed,
	}
	if len(mod.Playlist) > 0 {
		p.pattern = int(mod.Playlist[0])
	}
	if p.speed <= 0 {
		p.speed = 1
	}
	if p.tempo <= 0 {
		p.tempo = 125
	}
	for i := range p.channels {
		p.channels[i] = newChannel(mod)
	}
	p.tickSlab = p.computeTickSlab()
	return p
}

func (p *Player) computeTickSlab() int {
	return int((float64(p.SampleRate) * 2.5) / float64(p.tempo))
}

// Ended reports whether the sequencer has reached the end-of-song marker.
func (p *Player) Ended() bool { return p.ended }

// Position returns the current order index, pattern index and row.
func (p *Player) Position() (order, pattern, row int) {
	r := p.row
	if r == noRow {
		r = 0
	}
	return p.position, p.pattern, r
}

// NoteDataFor returns the Row at the given order/row for display purposes,
// or nil if out of range.
func (p *Player) NoteDataFor(order, row int) trkmod.Row {
	if order < 0 || order >= len(p.Module.Playlist) {
		return nil
	}
	pat := int(p.Module.Playlist[order])
	if pat < 0 || pat >= len(p.Module.Patterns) {
		return nil
	}
	pattern := p.Module.Patterns[pat]
	if row < 0 || row >= len(pattern.Rows) {
		return nil
	}
	return pattern.Rows[row]
}

// SeekTo jumps playback to the given order and row without re-triggering
// channel state, the way the reference player's position introspection is
// used by the scrolling CLI view to scrub playback.
func (p *Player) SeekTo(order, row int) {
	if order < 0 || order >= len(p.Module.Playlist) {
		return
	}
	p.position = order
	p.pattern = int(p.Module.Playlist[order])
	if p.pattern < 0 || p.pattern >= len(p.Module.Patterns) {
		p.pattern = 0
	}
	p.row = row
	p.ticksPassed = 0
	p.ended = false
}

func (p *Player) logf(format string, args ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

// Render fills buf with the next len(buf) mono PCM samples, advancing the
// sequencer as needed. Once Ended returns true, Render fills buf with
// silence.
func (p *Player) Render(buf []int16) {
	switch p.Control.take() {
	case CommandStop:
		p.ended = true
	case CommandPause:
		p.paused = true
	case CommandResume:
		p.paused = false
	}

	for i := range buf {
		buf[i] = 0
	}
	if p.ended || p.paused {
		return
	}

	if cap(p.slab) < len(buf) {
		p.slab = make([]int32, len(buf))
	}
	slab := p.slab[:len(buf)]
	for i := range slab {
		slab[i] = 0
	}

	numSamples := len(buf)
	totalCounter := numSamples + p.tickCounter
	if p.tickSlab <= 0 {
		p.tickSlab = 1
	}
	numTicks := totalCounter / p.tickSlab
	extraCounter := totalCounter % p.tickSlab

	thisPos := 0
	nextPos := p.tickSlab - p.tickCounter

	for i := 0; i < numTicks && !p.ended; i++ {
		for c := range p.channels {
			p.channels[c].addToSlab(slab[thisPos:nextPos], p.SampleRate, p.Interpolation)
		}

		thisPos = nextPos
		nextPos = thisPos + p.tickSlab

		p.ticksPassed++
		if p.ticksPassed >= p.speed {
			p.advanceRow()
			if !p.ended {
				p.playRow()
			}
		}
		p.processTick()
	}

	if thisPos < len(slab) && !p.ended {
		for c := range p.channels {
			p.channels[c].addToSlab(slab[thisPos:], p.SampleRate, p.Interpolation)
		}
	}

	p.tickCounter = extraCounter
	flattenSlab(slab, buf)
}

// processTick runs the per-tick (not per-row) continuous effects: pitch
// slides, tone portamento, volume slides and retriggers.
func (p *Player) processTick() {
	if p.row == noRow || p.pattern < 0 || p.pattern >= len(p.Module.Patterns) {
		return
	}
	pattern := p.Module.Patterns[p.pattern]
	if p.row >= len(pattern.Rows) {
		return
	}
	row := pattern.Rows[p.row]
	for i := range row {
		if i >= len(p.channels) {
			break
		}
		col := row[i]
		c := &p.channels[i]
		switch col.Effect.Kind {
		case trkmod.EffPortaUp:
			c.portaUp(col.Effect.Value)
		case trkmod.EffPortaDown:
			c.portaDown(col.Effect.Value)
		case trkmod.EffTonePorta:
			c.tonePortamento(col.Note, p.Module.LinearFreqSlides, col.Effect.Value)
		case trkmod.EffVolSlide:
			c.volSlide(col.Effect.Value)
		case trkmod.EffRetrig:
			c.retrigger(col.Effect.Value)
		}
	}
}

// advanceRow moves the sequencer to the next row, honoring the Axx/Txx
// speed/tempo and Bxx/Cxx pattern-order effects seen on the row just
// finished. SBx pattern loops are not acted on.
func (p *Player) advanceRow() {
	if p.row == noRow {
		p.row = 0
		p.ticksPassed = 0
		return
	}
	if p.pattern < 0 || p.pattern >= len(p.Module.Patterns) {
		p.ended = true
		return
	}
	pattern := p.Module.Patterns[p.pattern]
	if p.row >= len(pattern.Rows) {
		p.row = 0
	}
	row := pattern.Rows[p.row]

	posJump, posJumpTo := false, 0
	patBreak, patBreakTo := false, 0

	for _, col := range row {
		switch col.Effect.Kind {
		case trkmod.EffSetSpeed:
			if col.Effect.Value > 0 {
				p.speed = int(col.Effect.Value)
			}
		case trkmod.EffSetTempo:
			if col.Effect.Value >= 0x20 {
				p.tempo = int(col.Effect.Value)
				p.tickSlab = p.computeTickSlab()
			}
		case trkmod.EffPosJump:
			posJump, posJumpTo = true, int(col.Effect.Value)
		case trkmod.EffPatBreak:
			patBreak, patBreakTo = true, int(col.Effect.Value)
		}
	}

	p.ticksPassed = 0
	p.row++

	if posJump {
		p.row = 0
		p.position = posJumpTo
		p.advanceOrder(false)
	} else if patBreak {
		p.row = patBreakTo
		p.position++
		p.advanceOrder(true)
	}

	if p.pattern < 0 || p.pattern >= len(p.Module.Patterns) {
		p.ended = true
		return
	}
	if p.row >= len(p.Module.Patterns[p.pattern].Rows) {
		p.row = 0
		p.position++
		p.advanceOrder(true)
	}
}

// advanceOrder resolves p.position into p.pattern, wrapping to the start of
// the playlist on an end-of-song marker when wrap is true, or ending
// playback outright when it is false (a Bxx jump past the end is malformed
// data, clamp rather than crash).
func (p *Player) advanceOrder(wrap bool) {
	if p.position < 0 || p.position >= len(p.Module.Playlist) {
		if wrap {
			p.position = 0
		} else {
			p.ended = true
			return
		}
	}
	pat := p.Module.Playlist[p.position]
	if pat == trkmod.OrderEndOfSong {
		if !wrap {
			p.ended = true
			return
		}
		p.position = 0
		if len(p.Module.Playlist) == 0 {
			p.ended = true
			return
		}
		pat = p.Module.Playlist[p.position]
	}
	if pat == trkmod.OrderSkip {
		p.logf("engine: order %d is a skip marker, stopping", p.position)
		p.ended = true
		return
	}
	if int(pat) >= len(p.Module.Patterns) {
		p.logf("engine: order %d references out-of-range pattern %d", p.position, pat)
		p.ended = true
		return
	}
	p.pattern = int(pat)
}

// playRow applies the note-trigger, instrument-change and volume-column
// events of the row the sequencer just landed on.
func (p *Player) playRow() {
	if p.pattern < 0 || p.pattern >= len(p.Module.Patterns) {
		return
	}
	pattern := p.Module.Patterns[p.pattern]
	if p.row < 0 || p.row >= len(pattern.Rows) {
		return
	}
	row := pattern.Rows[p.row]

	for i, col := range row {
		if i >= len(p.channels) {
			break
		}
		c := &p.channels[i]

		switch col.Vol.Kind {
		case trkmod.VolSetVolume:
			c.volume = float64(col.Vol.Value)
		}

		if col.Instrument != 0 {
			if smp := p.Module.SampleFor(col.Instrument); smp != nil {
				c.sampleIndex = col.Instrument - 1
				if col.Vol.Kind == trkmod.VolNone {
					c.volume = float64(smp.DefaultVolume)
				}
			}
		}

		switch col.Note.Kind {
		case trkmod.NoteOn:
			if col.Effect.Kind != trkmod.EffTonePorta && col.Vol.Kind != trkmod.VolTonePorta {
				var offsetEff *trkmod.Effect
				if col.Effect.Kind == trkmod.EffSampleOffset {
					eff := col.Effect
					offsetEff = &eff
				}
				c.trigger(col.Note.Key, offsetEff)
				c.lastNote = col.Note.Key
			}
		case trkmod.NoteCut, trkmod.NoteOff:
			c.playing = false
		}
	}
}
