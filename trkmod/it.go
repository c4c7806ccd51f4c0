package trkmod

import (
	"encoding/binary"
	"fmt"
)

type itHeader struct {
	Magic             [4]byte
	SongName          [26]byte
	PatternHighlight  uint16
	OrderCount        uint16
	InstrumentCount   uint16
	SampleCount       uint16
	PatternCount      uint16
	TrackerID         uint16
	FormatVersion     uint16
	Flags             uint16
	Special           uint16
	GlobalVolume      uint8
	MixingVolume      uint8
	InitialSpeed      uint8
	InitialTempo      uint8
	Separation        uint8
	PitchWheelDepth   uint8
	MessageLength     uint16
	MessageOffset     uint32
	_                 [4]byte
	ChannelPan        [64]byte
	ChannelVolume     [64]byte
}

type itEnvelopeHeader struct {
	Flags        uint8
	NodeCount    uint8
	LoopStart    uint8
	LoopEnd      uint8
	SustainStart uint8
	SustainEnd   uint8
}

// itInstrumentHeader covers the fixed-layout part of the 0040h instrument
// block, up to but not including the 120-entry note/sample map.
type itInstrumentHeader struct {
	Magic                [4]byte
	Filename             [12]byte
	_                    uint8
	NewNoteAction        uint8
	DuplicateCheckType   uint8
	DuplicateCheckAction uint8
	Fadeout              uint16
	PitchPanSeparation   int8
	PitchPanCenter       uint8
	GlobalVolume         uint8
	DefaultPan           uint8
	RandomVolume         uint8
	RandomPan            uint8
	_                    uint16
	_                    uint8
	_                    uint8
	Name                 [26]byte
	InitialFilterCutoff  uint8
	InitialFilterResonance uint8
	MidiChannel          uint8
	MidiProgram          uint8
	MidiBank             uint16
}

type itSampleHeader struct {
	Magic            [4]byte
	Filename         [12]byte
	_                uint8
	GlobalVolume     uint8
	Flags            uint8
	Volume           uint8
	Name             [26]byte
	Convert          uint8
	DefaultPan       uint8
	Length           uint32
	LoopBegin        uint32
	LoopEnd          uint32
	C5Speed          uint32
	SustainLoopBegin uint32
	SustainLoopEnd   uint32
	SamplePointer    uint32
	VibratoSpeed     uint8
	VibratoDepth     uint8
	VibratoRate      uint8
	VibratoType      uint8
}

// LoadIT decodes an Impulse Tracker module from src.
func LoadIT(src Source) (*Module, error) {
	c := newCursor(src)

	var hdr itHeader
	if err := binary.Read(src, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: it header: %v", ErrTruncated, err)
	}
	if string(hdr.Magic[:]) != "IMPM" {
		return nil, fmt.Errorf("%w: it magic", ErrInvalidSignature)
	}

	playlist := make([]uint8, hdr.OrderCount)
	for i := range playlist {
		b, err := c.readU8()
		if err != nil {
			return nil, err
		}
		playlist[i] = b
	}

	instOffsets, err := readOffsetTable(c, int(hdr.InstrumentCount))
	if err != nil {
		return nil, err
	}
	sampOffsets, err := readOffsetTable(c, int(hdr.SampleCount))
	if err != nil {
		return nil, err
	}
	patOffsets, err := readOffsetTable(c, int(hdr.PatternCount))
	if err != nil {
		return nil, err
	}

	useInstruments := hdr.Flags&0b100 != 0
	var instruments []Instrument
	if useInstruments {
		instruments = make([]Instrument, len(instOffsets))
		for i, off := range instOffsets {
			inst, err := loadITInstrument(c, src, off)
			if err != nil {
				return nil, fmt.Errorf("it instrument %d: %w", i, err)
			}
			instruments[i] = *inst
		}
	}

	samples := make([]Sample, len(sampOffsets))
	for i, off := range sampOffsets {
		smp, err := loadITSample(c, src, off)
		if err != nil {
			return nil, fmt.Errorf("it sample %d: %w", i, err)
		}
		samples[i] = *smp
	}

	patterns := make([]Pattern, len(patOffsets))
	for i, off := range patOffsets {
		pat, err := loadITPattern(c, off)
		if err != nil {
			return nil, fmt.Errorf("it pattern %d: %w", i, err)
		}
		patterns[i] = *pat
	}

	message := ""
	if hdr.MessageLength > 0 && hdr.MessageOffset > 0 {
		if err := c.seekAbs(int64(hdr.MessageOffset)); err == nil {
			if raw, err := c.readFull(int(hdr.MessageLength)); err == nil {
				message = trimNulString(raw)
			}
		}
	}

	mode := ModeITSample
	if useInstruments {
		mode = ModeIT
	}

	mod := &Module{
		Name:                trimNulString(hdr.SongName[:]),
		Mode:                PlaybackMode{Kind: mode},
		LinearFreqSlides:    hdr.Flags&0b1000 != 0,
		FastVolumeSlides:    false,
		InitialTempo:        int(hdr.InitialTempo),
		InitialSpeed:        int(hdr.InitialSpeed),
		InitialGlobalVolume: int(hdr.GlobalVolume) * 2,
		MixingVolume:        int(hdr.MixingVolume),
		Samples:             samples,
		Instruments:         instruments,
		Patterns:            patterns,
		Playlist:            playlist,
		ChannelPan:          hdr.ChannelPan,
		ChannelVolume:       hdr.ChannelVolume,
		Message:             message,
	}
	return mod, nil
}

func readOffsetTable(c *cursor, n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := c.readU32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func loadITEnvelope(c *cursor) (*Envelope, error) {
	var eh itEnvelopeHeader
	b, err := c.readFull(6)
	if err != nil {
		return nil, err
	}
	eh.Flags, eh.NodeCount, eh.LoopStart, eh.LoopEnd, eh.SustainStart, eh.SustainEnd =
		b[0], b[1], b[2], b[3], b[4], b[5]

	env := &Envelope{
		Enabled:      eh.Flags&1 != 0,
		Loop:         eh.Flags&2 != 0,
		Sustain:      eh.Flags&4 != 0,
		LoopStart:    eh.LoopStart,
		LoopEnd:      eh.LoopEnd,
		SustainStart: eh.SustainStart,
		SustainEnd:   eh.SustainEnd,
	}
	// IT instrument files always reserve 25 node slots; only NodeCount of
	// them are meaningful.
	for i := 0; i < 25; i++ {
		y, err := c.readU8()
		if err != nil {
			return nil, err
		}
		tick, err := c.readU16()
		if err != nil {
			return nil, err
		}
		if i < int(eh.NodeCount) {
			env.Nodes = append(env.Nodes, EnvelopeNode{Y: y, Tick: tick})
		}
	}
	return env, nil
}

func loadITInstrument(c *cursor, src Source, offset uint32) (*Instrument, error) {
	if err := c.seekAbs(int64(offset)); err != nil {
		return nil, err
	}
	var ih itInstrumentHeader
	if err := binary.Read(src, binary.LittleEndian, &ih); err != nil {
		return nil, fmt.Errorf("%w: instrument header: %v", ErrTruncated, err)
	}

	inst := &Instrument{
		Name:                 trimNulString(ih.Name[:]),
		NewNoteAction:        ih.NewNoteAction,
		DuplicateCheckType:   ih.DuplicateCheckType,
		DuplicateCheckAction: ih.DuplicateCheckAction,
		Fadeout:              ih.Fadeout,
		GlobalVolume:         ih.GlobalVolume,
	}
	for i := 0; i < 120; i++ {
		note, err := c.readU8()
		if err != nil {
			return nil, err
		}
		sample, err := c.readU8()
		if err != nil {
			return nil, err
		}
		inst.Notemap[i] = NotemapEntry{Note: note, Sample: sample}
	}

	vol, err := loadITEnvelope(c)
	if err != nil {
		return nil, err
	}
	pan, err := loadITEnvelope(c)
	if err != nil {
		return nil, err
	}
	pitch, err := loadITEnvelope(c)
	if err != nil {
		return nil, err
	}
	inst.VolumeEnvelope, inst.PanEnvelope, inst.PitchEnvelope = *vol, *pan, *pitch

	return inst, nil
}

func loadITSample(c *cursor, src Source, offset uint32) (*Sample, error) {
	if err := c.seekAbs(int64(offset)); err != nil {
		return nil, err
	}
	var sh itSampleHeader
	if err := binary.Read(src, binary.LittleEndian, &sh); err != nil {
		return nil, fmt.Errorf("%w: sample header: %v", ErrTruncated, err)
	}

	loopType := LoopNone
	switch sh.Flags & 0b01010000 {
	case 0b00010000:
		loopType = LoopForward
	case 0b01010000:
		loopType = LoopPingPong
	}

	smp := &Sample{
		Name:          trimNulString(sh.Name[:]),
		BaseFrequency: int(sh.C5Speed),
		DefaultVolume: int(sh.Volume),
		GlobalVolume:  int(sh.GlobalVolume),
		LoopType:      loopType,
		LoopStart:     int(sh.LoopBegin),
		LoopEnd:       int(sh.LoopEnd),
	}

	hasSample := sh.Flags&1 != 0
	compressed := sh.Flags&0b1000 != 0
	if !hasSample || sh.SamplePointer == 0 || compressed || sh.Length == 0 {
		// No sample data, a zero pointer, or a compression scheme this
		// decoder does not implement: produce the canonical silent sample.
		return smp, nil
	}

	if err := c.seekAbs(int64(sh.SamplePointer)); err != nil {
		return nil, err
	}

	signed := sh.Convert&1 != 0
	if sh.Flags&0b10 != 0 {
		raw, err := c.readFull(int(sh.Length) * 2)
		if err != nil {
			return nil, err
		}
		smp.Audio = make([]int16, sh.Length)
		for i := range smp.Audio {
			v := binary.LittleEndian.Uint16(raw[i*2:])
			if signed {
				smp.Audio[i] = int16(v)
			} else {
				smp.Audio[i] = int16(v) - 32767
			}
		}
	} else {
		raw, err := c.readFull(int(sh.Length))
		if err != nil {
			return nil, err
		}
		smp.Audio = make([]int16, len(raw))
		for i, b := range raw {
			if signed {
				smp.Audio[i] = int16(int8(b)) * 256
			} else {
				smp.Audio[i] = (int16(b) - 128) * 256
			}
		}
	}
	return smp, nil
}

func loadITPattern(c *cursor, offset uint32) (*Pattern, error) {
	if offset == 0 {
		pat := emptyPattern(64, 64)
		return &pat, nil
	}
	if err := c.seekAbs(int64(offset)); err != nil {
		return nil, err
	}
	length, err := c.readU16()
	if err != nil {
		return nil, err
	}
	rowsAmount, err := c.readU16()
	if err != nil {
		return nil, err
	}
	if _, err := c.readFull(4); err != nil {
		return nil, err
	}
	data, err := c.readFull(int(length))
	if err != nil {
		return nil, err
	}

	pat := emptyPattern(int(rowsAmount), 64)

	var (
		pos                                   int
		lastNote                              [64]uint8
		lastInstrument, lastFx, lastFxValue    [64]uint8
		lastVolume                            [64]uint8
		mask                                  [64]uint8
	)
	for i := range lastNote {
		lastNote[i] = 119
		lastVolume[i] = 255
	}

	row := 0
	for row < int(rowsAmount) {
		if pos >= len(data) {
			break
		}
		chanVar := data[pos]
		pos++
		if chanVar == 0 {
			row++
			continue
		}

		chanNum := int((chanVar - 1) & 63)
		if chanVar&128 != 0 {
			if pos >= len(data) {
				break
			}
			mask[chanNum] = data[pos]
			pos++
		}

		var note, instrument, vol, effect, effectValue uint8
		note, instrument, vol = 120, 0, 255

		if mask[chanNum]&1 != 0 {
			note = data[pos]
			pos++
			lastNote[chanNum] = note
		}
		if mask[chanNum]&2 != 0 {
			instrument = data[pos]
			pos++
			lastInstrument[chanNum] = instrument
		}
		if mask[chanNum]&4 != 0 {
			vol = data[pos]
			pos++
			lastVolume[chanNum] = vol
		}
		if mask[chanNum]&8 != 0 {
			effect = data[pos]
			effectValue = data[pos+1]
			pos += 2
			lastFx[chanNum] = effect
			lastFxValue[chanNum] = effectValue
		}
		if mask[chanNum]&16 != 0 {
			note = lastNote[chanNum]
		}
		if mask[chanNum]&32 != 0 {
			instrument = lastInstrument[chanNum]
		}
		if mask[chanNum]&64 != 0 {
			vol = lastVolume[chanNum]
		}
		if mask[chanNum]&128 != 0 {
			effect = lastFx[chanNum]
			effectValue = lastFxValue[chanNum]
		}

		if chanNum >= len(pat.Rows[row]) {
			continue
		}
		pat.Rows[row][chanNum] = itColumn(note, instrument, vol, effect, effectValue)
	}

	return &pat, nil
}

func itColumn(note, instrument, vol, effect, effectValue uint8) Column {
	col := Column{Instrument: int(instrument)}

	switch {
	case note == 120:
		col.Note = Note{}
	case note >= 121 && note <= 253:
		col.Note = Note{Kind: NoteFade}
	case note == 254:
		col.Note = Note{Kind: NoteCut}
	case note == 255:
		col.Note = Note{Kind: NoteOff}
	default:
		col.Note = Note{Kind: NoteOn, Key: note}
	}

	switch {
	case vol <= 64:
		col.Vol = VolEffect{Kind: VolSetVolume, Value: vol}
	case vol >= 65 && vol <= 74:
		col.Vol = VolEffect{Kind: VolFineVolSlideUp, Value: vol - 65}
	case vol >= 75 && vol <= 84:
		col.Vol = VolEffect{Kind: VolFineVolSlideDown, Value: vol - 75}
	case vol >= 85 && vol <= 94:
		col.Vol = VolEffect{Kind: VolSlideUp, Value: vol - 85}
	case vol >= 95 && vol <= 104:
		col.Vol = VolEffect{Kind: VolSlideDown, Value: vol - 95}
	case vol >= 105 && vol <= 114:
		col.Vol = VolEffect{Kind: VolPortaDown, Value: vol - 105}
	case vol >= 115 && vol <= 124:
		col.Vol = VolEffect{Kind: VolPortaUp, Value: vol - 115}
	case vol >= 128 && vol <= 192:
		col.Vol = VolEffect{Kind: VolSetPan, Value: vol - 128}
	case vol >= 193 && vol <= 202:
		col.Vol = VolEffect{Kind: VolTonePorta, Value: vol - 193}
	case vol >= 203 && vol <= 212:
		col.Vol = VolEffect{Kind: VolVibratoDepth, Value: vol - 203}
	}

	switch effect {
	case 1:
		col.Effect = Effect{Kind: EffSetSpeed, Value: effectValue}
	case 2:
		col.Effect = Effect{Kind: EffPosJump, Value: effectValue}
	case 3:
		col.Effect = Effect{Kind: EffPatBreak, Value: effectValue}
	case 4:
		col.Effect = Effect{Kind: EffVolSlide, Value: effectValue}
	case 5:
		col.Effect = Effect{Kind: EffPortaDown, Value: effectValue}
	case 6:
		col.Effect = Effect{Kind: EffPortaUp, Value: effectValue}
	case 7:
		col.Effect = Effect{Kind: EffTonePorta, Value: effectValue}
	case 8:
		col.Effect = Effect{Kind: EffVibrato, Value: effectValue}
	case 9:
		col.Effect = Effect{Kind: EffTremor, Value: effectValue}
	case 10:
		col.Effect = Effect{Kind: EffArpeggio, Value: effectValue}
	case 11:
		col.Effect = Effect{Kind: EffVolSlideVibrato, Value: effectValue}
	case 12:
		col.Effect = Effect{Kind: EffVolSlideTonePorta, Value: effectValue}
	case 13:
		col.Effect = Effect{Kind: EffChannelVolume, Value: effectValue}
	case 14:
		col.Effect = Effect{Kind: EffChannelVolSlide, Value: effectValue}
	case 15:
		col.Effect = Effect{Kind: EffSampleOffset, Value: effectValue}
	case 16:
		col.Effect = Effect{Kind: EffPanSlide, Value: effectValue}
	case 17:
		col.Effect = Effect{Kind: EffRetrig, Value: effectValue}
	case 18:
		col.Effect = Effect{Kind: EffTremolo, Value: effectValue}
	case 19:
		col.Effect = sxyEffect(effectValue)
	case 20:
		switch effectValue & 0xF0 {
		case 0x00:
			col.Effect = Effect{Kind: EffDecTempo, Value: effectValue & 0x0F}
		case 0x10:
			col.Effect = Effect{Kind: EffIncTempo, Value: effectValue & 0x0F}
		default:
			col.Effect = Effect{Kind: EffSetTempo, Value: effectValue}
		}
	case 21:
		col.Effect = Effect{Kind: EffFineVibrato, Value: effectValue}
	case 22:
		col.Effect = Effect{Kind: EffSetGlobalVol, Value: effectValue}
	case 23:
		col.Effect = Effect{Kind: EffGlobalVolSlide, Value: effectValue}
	case 24:
		col.Effect = Effect{Kind: EffFineSetPan, Value: effectValue}
	case 25:
		col.Effect = Effect{Kind: EffPanbrello, Value: effectValue}
	case 26:
		col.Effect = Effect{Kind: EffMIDIMacro, Value: effectValue}
	}

	return col
}
