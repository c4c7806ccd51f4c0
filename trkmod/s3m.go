package trkmod

import (
	"encoding/binary"
	"fmt"
)

type s3mHeader struct {
	SongName        [28]byte
	_               uint32
	OrderCount      uint16
	SampleCount     uint16
	PatternCount    uint16
	Flags           uint16
	TrackerMetadata uint16
	SampleFormat    uint16 // 1 = signed, else unsigned
	Magic           [4]byte
	GlobalVolume    uint8
	InitialSpeed    uint8
	InitialTempo    uint8
	MixingVolume    uint8
	_               uint8
	DefaultPanning  uint8
	_               [8]byte
	Special         uint16
	ChannelSettings [32]byte
}

type s3mSampleHeader struct {
	SampleType uint8
	Filename   [12]byte
	MemSeg     [3]byte
	Length     uint32
	LoopBegin  uint32
	LoopEnd    uint32
	Volume     uint8
	_          uint8
	Packed     uint8
	Flags      uint8
	C2Speed    uint32
	_          uint32
	IntGP      uint16
	_          [6]byte
	SampleName [28]byte
	Magic      [4]byte
}

// LoadS3M decodes a Scream Tracker 3 module from src.
func LoadS3M(src Source) (*Module, error) {
	c := newCursor(src)

	var hdr s3mHeader
	if err := binary.Read(src, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: s3m header: %v", ErrTruncated, err)
	}
	if string(hdr.Magic[:]) != "SCRM" {
		return nil, fmt.Errorf("%w: s3m magic", ErrInvalidSignature)
	}

	playlist := make([]uint8, hdr.OrderCount)
	for i := range playlist {
		b, err := c.readU8()
		if err != nil {
			return nil, err
		}
		playlist[i] = b
	}

	sampleOffsets := make([]uint16, hdr.SampleCount)
	for i := range sampleOffsets {
		v, err := c.readU16()
		if err != nil {
			return nil, err
		}
		sampleOffsets[i] = v
	}
	patternOffsets := make([]uint16, hdr.PatternCount)
	for i := range patternOffsets {
		v, err := c.readU16()
		if err != nil {
			return nil, err
		}
		patternOffsets[i] = v
	}

	// Channel panning table trails the two parapointer tables; retained
	// below to seed Module.ChannelPan cosmetically. Older S3Ms omit it.
	channelPanning := make([]byte, 32)
	if raw, err := c.readFull(32); err == nil {
		copy(channelPanning, raw)
	}

	samples := make([]Sample, len(sampleOffsets))
	intGPTotal := uint16(0)
	for i, off := range sampleOffsets {
		if off == 0 {
			continue
		}
		if err := c.seekAbs(int64(off) << 4); err != nil {
			return nil, err
		}
		var sh s3mSampleHeader
		if err := binary.Read(src, binary.LittleEndian, &sh); err != nil {
			return nil, fmt.Errorf("%w: s3m sample %d: %v", ErrTruncated, i, err)
		}
		if sh.SampleType > 1 {
			return nil, fmt.Errorf("%w: AdLib instrument", ErrUnsupportedVariant)
		}
		if sh.Packed == 1 {
			return nil, fmt.Errorf("%w: compressed sample", ErrUnsupportedVariant)
		}
		if sh.SampleType < 2 {
			intGPTotal |= sh.IntGP
		}

		loopType := LoopNone
		if sh.Flags&1 != 0 {
			loopType = LoopForward
		}
		smp := Sample{
			Name:          trimNulString(sh.SampleName[:]),
			BaseFrequency: int(sh.C2Speed),
			DefaultVolume: int(sh.Volume),
			GlobalVolume:  64,
			LoopType:      loopType,
			LoopStart:     int(sh.LoopBegin),
			LoopEnd:       int(sh.LoopEnd),
		}

		dataOffset := int64(sh.MemSeg[1])<<4 | int64(sh.MemSeg[2])<<12 | int64(sh.MemSeg[0])<<20
		signed := hdr.SampleFormat == 1
		if sh.Length > 0 {
			if err := c.seekAbs(dataOffset); err != nil {
				return nil, err
			}
			if sh.Flags&0b100 != 0 {
				raw, err := c.readFull(int(sh.Length) * 2)
				if err != nil {
					return nil, err
				}
				smp.Audio = make([]int16, sh.Length)
				for j := range smp.Audio {
					v := binary.LittleEndian.Uint16(raw[j*2:])
					if signed {
						smp.Audio[j] = int16(v)
					} else {
						smp.Audio[j] = int16(v) - 32767
					}
				}
			} else {
				raw, err := c.readFull(int(sh.Length))
				if err != nil {
					return nil, err
				}
				smp.Audio = make([]int16, len(raw))
				for j, b := range raw {
					if signed {
						smp.Audio[j] = int16(int8(b)) * 256
					} else {
						smp.Audio[j] = (int16(b) - 128) * 256
					}
				}
			}
		}
		samples[i] = smp
	}

	patterns := make([]Pattern, len(patternOffsets))
	for i, off := range patternOffsets {
		if off == 0 {
			patterns[i] = emptyPattern(64, 32)
			continue
		}
		if err := c.seekAbs(int64(off)<<4 + 2); err != nil {
			return nil, err
		}
		pat := emptyPattern(64, 32)
		row := 0
		for row < 64 {
			b, err := c.readU8()
			if err != nil {
				return nil, err
			}
			if b == 0 {
				row++
				continue
			}
			ch := int(b & 31)
			col := &pat.Rows[row][ch]
			if b&32 != 0 {
				note, err := c.readU8()
				if err != nil {
					return nil, err
				}
				inst, err := c.readU8()
				if err != nil {
					return nil, err
				}
				switch note {
				case 255:
					col.Note = Note{}
				case 254:
					col.Note = Note{Kind: NoteCut}
				default:
					octave := note >> 4
					pitch := note & 0xF
					col.Note = Note{Kind: NoteOn, Key: octave*12 + pitch + 12}
				}
				col.Instrument = int(inst)
			}
			if b&64 != 0 {
				vol, err := c.readU8()
				if err != nil {
					return nil, err
				}
				switch {
				case vol <= 64:
					col.Vol = VolEffect{Kind: VolSetVolume, Value: vol}
				case vol >= 128 && vol <= 192:
					col.Vol = VolEffect{Kind: VolSetPan, Value: vol - 128}
				}
			}
			if b&128 != 0 {
				eff, err := c.readU8()
				if err != nil {
					return nil, err
				}
				val, err := c.readU8()
				if err != nil {
					return nil, err
				}
				col.Effect = s3mEffect(eff, val)
			}
		}
		patterns[i] = pat
	}

	gus := isGUS(intGPTotal, hdr.TrackerMetadata)
	mixingVolume := int(hdr.MixingVolume & 0x7F)
	if gus {
		mixingVolume = 48
	}

	mod := &Module{
		Name:                trimNulString(hdr.SongName[:]),
		Mode:                PlaybackMode{Kind: ModeS3M, GUS: gus},
		LinearFreqSlides:    false,
		FastVolumeSlides:    hdr.TrackerMetadata == 0x1300 || hdr.Flags&0x40 != 0,
		InitialTempo:        int(hdr.InitialTempo),
		InitialSpeed:        int(hdr.InitialSpeed),
		InitialGlobalVolume: int(hdr.GlobalVolume) * 2,
		MixingVolume:        mixingVolume,
		Samples:             samples,
		Patterns:            patterns,
		Playlist:            playlist,
	}
	for i := 0; i < 64 && i < 32; i++ {
		if channelPanning[i] < 16 {
			mod.ChannelPan[i] = channelPanning[i] * 4
		} else if i%2 == 0 {
			mod.ChannelPan[i] = 16
		} else {
			mod.ChannelPan[i] = 48
		}
	}
	return mod, nil
}

// isGUS replays the reference decoder's GUS-vs-SoundBlaster heuristic: OR
// every non-AdLib sample's IntGP field together, then classify by the
// result and the tracker-id/version word.
func isGUS(intGPTotal, trackerMetadata uint16) bool {
	switch intGPTotal {
	case 1:
		return false
	case 0:
		return trackerMetadata > 0x1300
	default:
		return true
	}
}

func s3mEffect(code, value uint8) Effect {
	switch code {
	case 1:
		return Effect{Kind: EffSetSpeed, Value: value}
	case 2:
		return Effect{Kind: EffPosJump, Value: value}
	case 3:
		return Effect{Kind: EffPatBreak, Value: value}
	case 4:
		return Effect{Kind: EffVolSlide, Value: value}
	case 5:
		return Effect{Kind: EffPortaDown, Value: value}
	case 6:
		return Effect{Kind: EffPortaUp, Value: value}
	case 7:
		return Effect{Kind: EffTonePorta, Value: value}
	case 8:
		return Effect{Kind: EffVibrato, Value: value}
	case 9:
		return Effect{Kind: EffTremor, Value: value}
	case 10:
		return Effect{Kind: EffArpeggio, Value: value}
	case 11:
		return Effect{Kind: EffVolSlideVibrato, Value: value}
	case 12:
		return Effect{Kind: EffVolSlideTonePorta, Value: value}
	case 13:
		return Effect{Kind: EffChannelVolume, Value: value}
	case 14:
		return Effect{Kind: EffChannelVolSlide, Value: value}
	case 15:
		return Effect{Kind: EffSampleOffset, Value: value}
	case 16:
		return Effect{Kind: EffPanSlide, Value: value}
	case 17:
		return Effect{Kind: EffRetrig, Value: value}
	case 18:
		return Effect{Kind: EffTremolo, Value: value}
	case 19:
		return sxyEffect(value)
	case 20:
		switch value & 0xF0 {
		case 0x00:
			return Effect{Kind: EffDecTempo, Value: value & 0x0F}
		case 0x10:
			return Effect{Kind: EffIncTempo, Value: value & 0x0F}
		default:
			return Effect{Kind: EffSetTempo, Value: value}
		}
	case 21:
		return Effect{Kind: EffFineVibrato, Value: value}
	case 22:
		return Effect{Kind: EffSetGlobalVol, Value: value}
	case 23:
		return Effect{Kind: EffGlobalVolSlide, Value: value}
	case 24:
		return Effect{Kind: EffFineSetPan, Value: value}
	case 25:
		return Effect{Kind: EffPanbrello, Value: value}
	case 26:
		return Effect{Kind: EffMIDIMacro, Value: value}
	default:
		return Effect{}
	}
}

// s7xEffect maps an S7x sub-nibble to its NNA/envelope control tag. Nibbles
// 0xD-0xF are unassigned and no-op.
func s7xEffect(nibble uint8) Effect {
	switch nibble {
	case 0x0:
		return Effect{Kind: EffPastNoteCut}
	case 0x1:
		return Effect{Kind: EffPastNoteOff}
	case 0x2:
		return Effect{Kind: EffPastNoteFade}
	case 0x3:
		return Effect{Kind: EffNNANoteCut}
	case 0x4:
		return Effect{Kind: EffNNANoteContinue}
	case 0x5:
		return Effect{Kind: EffNNANoteOff}
	case 0x6:
		return Effect{Kind: EffNNANoteFade}
	case 0x7:
		return Effect{Kind: EffVolEnvOff}
	case 0x8:
		return Effect{Kind: EffVolEnvOn}
	case 0x9:
		return Effect{Kind: EffPanEnvOff}
	case 0xA:
		return Effect{Kind: EffPanEnvOn}
	case 0xB:
		return Effect{Kind: EffPitchEnvOff}
	case 0xC:
		return Effect{Kind: EffPitchEnvOn}
	default:
		return Effect{}
	}
}

// sxyEffect flattens the shared Sxy sub-opcode table used by both S3M and IT.
func sxyEffect(value uint8) Effect {
	nibble := value & 0x0F
	switch value & 0xF0 {
	case 0x10:
		return Effect{Kind: EffGlissandoControl, Value: nibble}
	case 0x20:
		return Effect{Kind: EffSetFinetune, Value: nibble}
	case 0x30:
		return Effect{Kind: EffSetVibratoWaveform, Value: nibble}
	case 0x40:
		return Effect{Kind: EffSetTremoloWaveform, Value: nibble}
	case 0x50:
		return Effect{Kind: EffSetPanbrelloWaveform, Value: nibble}
	case 0x60:
		return Effect{Kind: EffFinePatternDelay, Value: nibble}
	case 0x70:
		return s7xEffect(nibble)
	case 0x80:
		return Effect{Kind: EffSetPanPosition, Value: nibble}
	case 0x90:
		return Effect{Kind: EffSoundControl, Value: nibble}
	case 0xA0:
		return Effect{Kind: EffHighOffset, Value: nibble}
	case 0xB0:
		if nibble == 0 {
			return Effect{Kind: EffPatternLoopStart}
		}
		return Effect{Kind: EffPatternLoop, Value: nibble}
	case 0xC0:
		return Effect{Kind: EffNoteCut, Value: nibble}
	case 0xD0:
		return Effect{Kind: EffNoteDelay, Value: nibble}
	case 0xE0:
		return Effect{Kind: EffPatternDelay, Value: nibble}
	case 0xF0:
		return Effect{Kind: EffSetActiveMacro, Value: nibble}
	default:
		return Effect{}
	}
}
