package trkmod

import (
	"encoding/binary"
	"fmt"
	"io"
)

// stmHeader is the fixed 48-byte ST2 header, read with a single binary.Read.
type stmHeader struct {
	SongName     [20]byte
	TrackerName  [8]byte
	DOSEOF       uint8
	FileType     uint8
	VersionMajor uint8
	VersionMinor uint8
	InitialTempo uint8
	PatternCount uint8
	GlobalVolume uint8
	_            [13]byte // pad out to the 48-byte sample table start
}

type stmSampleHeader struct {
	Filename  [12]byte
	_         uint16
	MemSeg    uint16
	Length    uint16
	LoopBegin uint16
	LoopEnd   uint16
	Volume    uint8
	_         uint8
	C2Speed   uint16
	_         [6]byte
}

// translateEarlySTMTempo rewrites a pre-2.1 ST2 tempo byte t so that its
// high nibble holds the decimal tens digit of t and its low nibble the ones
// digit (0x60 = 96 becomes 0x96), matching the reference player's
// early-format handling.
func translateEarlySTMTempo(tempo uint8) uint8 {
	return ((tempo / 10) << 4) + (tempo % 10)
}

// LoadSTM decodes a Scream Tracker 2 module from src.
func LoadSTM(src Source) (*Module, error) {
	c := newCursor(src)

	var hdr stmHeader
	if err := binary.Read(src, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: stm header: %v", ErrTruncated, err)
	}
	for _, b := range hdr.TrackerName {
		if b != 0 && (b < 0x20 || b > 0x7E) {
			return nil, fmt.Errorf("%w: stm tracker name", ErrInvalidSignature)
		}
	}
	switch hdr.FileType {
	case 1:
		return nil, fmt.Errorf("%w: stm song-only files", ErrUnsupportedVariant)
	case 2:
	default:
		return nil, fmt.Errorf("%w: stm file type %d", ErrInvalidSignature, hdr.FileType)
	}

	tempo := hdr.InitialTempo
	if hdr.VersionMinor < 21 {
		tempo = translateEarlySTMTempo(tempo)
	}
	if tempo == 0 {
		tempo = 0x60
	}

	samples := make([]Sample, 31)
	for i := 0; i < 31; i++ {
		if err := c.seekAbs(48 + int64(i)*32); err != nil {
			return nil, err
		}
		var sh stmSampleHeader
		if err := binary.Read(src, binary.LittleEndian, &sh); err != nil {
			return nil, fmt.Errorf("%w: stm sample %d: %v", ErrTruncated, i, err)
		}

		loopType := LoopForward
		if sh.LoopEnd >= 0xFFFF {
			loopType = LoopNone
		}

		smp := Sample{
			Name:          trimNulString(sh.Filename[:]),
			BaseFrequency: int(sh.C2Speed),
			DefaultVolume: int(sh.Volume),
			GlobalVolume:  64,
			LoopType:      loopType,
			LoopStart:     int(sh.LoopBegin),
			LoopEnd:       int(sh.LoopEnd),
		}

		if sh.Volume != 0 && sh.Length > 0 {
			if err := c.seekAbs(int64(sh.MemSeg) << 4); err == nil {
				// Some wild STMs declare sample lengths beyond EOF;
				// keep whatever was actually read rather than failing
				// the whole module.
				raw := make([]byte, int(sh.Length))
				n, _ := io.ReadFull(src, raw)
				raw = raw[:n]
				smp.Audio = make([]int16, len(raw))
				for j, b := range raw {
					smp.Audio[j] = int16(int8(b)) * 256
				}
			}
		}

		samples[i] = smp
	}

	if err := c.seekAbs(0x410); err != nil {
		return nil, err
	}
	playlist := make([]uint8, 0, 129)
	for i := 0; i < 128; i++ {
		b, err := c.readU8()
		if err != nil {
			return nil, err
		}
		if b < 63 {
			playlist = append(playlist, b)
		}
	}
	playlist = append(playlist, OrderEndOfSong)

	if err := c.seekAbs(0x490); err != nil {
		return nil, err
	}
	patterns := make([]Pattern, 0, hdr.PatternCount)
	for p := 0; p < int(hdr.PatternCount); p++ {
		pat := emptyPattern(64, 4)
		row := 0
		for row < 64 {
			for ch := 0; ch < 4; ch++ {
				b, err := c.readU8()
				if err != nil {
					return nil, err
				}
				col := &pat.Rows[row][ch]
				switch b {
				case 0xFB:
					// Explicit empty cell; leave the zero-valued Column.
				case 0xFC:
					// No-op placeholder cell: same as empty.
				case 0xFD:
					col.Note = Note{Kind: NoteCut}
				default:
					b2, err := c.readU8()
					if err != nil {
						return nil, err
					}
					b3, err := c.readU8()
					if err != nil {
						return nil, err
					}
					b4, err := c.readU8()
					if err != nil {
						return nil, err
					}
					octave := (b >> 4) + 2
					pitch := b & 0xF
					col.Note = Note{Kind: NoteOn, Key: octave*12 + pitch + 12}
					col.Instrument = int(b2 >> 3)
					vol := (b2 & 7) | ((b3 & 0xF0) >> 1)
					if vol <= 64 {
						col.Vol = VolEffect{Kind: VolSetVolume, Value: vol}
					}
					effNibble := b3 & 0x0F
					effVal := b4
					if hdr.VersionMinor < 21 && effNibble == 1 {
						effVal = translateEarlySTMTempo(b4)
					}
					col.Effect = stmEffect(effNibble, effVal)
				}
			}
			row++
		}
		patterns = append(patterns, pat)
	}

	mod := &Module{
		Name:                trimNulString(hdr.SongName[:]),
		Mode:                PlaybackMode{Kind: ModeS3M, GUS: false},
		LinearFreqSlides:    false,
		FastVolumeSlides:    false,
		InitialTempo:        125,
		InitialSpeed:        int(tempo >> 4),
		InitialGlobalVolume: 64,
		MixingVolume:        48,
		Samples:             samples,
		Patterns:            patterns,
		Playlist:            playlist,
	}
	if mod.Name == "" {
		mod.Name = trimNulString(hdr.TrackerName[:])
	}
	return mod, nil
}

// stmEffect translates an STM effect nibble/value pair into the canonical
// Effect vocabulary. Most STM effects are no-ops when their value is zero,
// matching the reference decoder's "value 0 means the effect never fires"
// convention for this format.
func stmEffect(nibble, value uint8) Effect {
	if value == 0 && nibble != 2 && nibble != 3 {
		return Effect{}
	}
	switch nibble {
	case 1:
		// 'A' (set tempo) is parsed by the reference decoder but never
		// dispatched by the reference player; STM playback tempo is fixed.
		return Effect{}
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
	default:
		return Effect{}
	}
}

func trimNulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
