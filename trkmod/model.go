// Package trkmod holds the canonical, format-independent representation of a
// tracker module and the decoders that translate STM, S3M and IT files into
// it. A Module and its Samples are built once by a decoder and from then on
// are treated as immutable, read-only data shared by any number of players.
package trkmod

// ModeKind tags the tracker dialect a Module was decoded from. The engine
// does not read it; slide arithmetic follows Module.LinearFreqSlides.
type ModeKind uint8

const (
	ModeMOD ModeKind = iota
	ModeS3M
	ModeXM
	ModeIT
	ModeITSample
)

func (m ModeKind) String() string {
	switch m {
	case ModeMOD:
		return "MOD"
	case ModeS3M:
		return "S3M"
	case ModeXM:
		return "XM"
	case ModeIT:
		return "IT"
	case ModeITSample:
		return "IT-sample"
	default:
		return "unknown"
	}
}

// PlaybackMode is the module's dialect tag plus the one piece of per-dialect
// data (S3M's GUS-mode flag) that affects playback defaults.
type PlaybackMode struct {
	Kind ModeKind
	GUS  bool // only meaningful when Kind == ModeS3M
}

// NoteKind tags a Column's note event.
type NoteKind uint8

const (
	NoteNone NoteKind = iota
	NoteOn
	NoteFade
	NoteCut
	NoteOff
)

// Note is a tagged {None, On(key), Fade, Cut, Off} variant. Key is only
// meaningful when Kind == NoteOn and is a MIDI-like value in
// 0..=119 (12 semitones per octave, octave 5 starting at key 60).
type Note struct {
	Kind NoteKind
	Key  uint8
}

func (n Note) String() string {
	switch n.Kind {
	case NoteOn:
		return noteKeyName(n.Key)
	case NoteFade:
		return "~~~"
	case NoteCut:
		return "^^^"
	case NoteOff:
		return "==="
	default:
		return "..."
	}
}

var noteNames = [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

func noteKeyName(key uint8) string {
	if int(key) >= 120 {
		return "???"
	}
	octave := int(key) / 12
	semitone := int(key) % 12
	return noteNames[semitone] + string(rune('0'+octave))
}

// LoopType tags a Sample's loop behavior.
type LoopType uint8

const (
	LoopNone LoopType = iota
	LoopForward
	LoopPingPong
)

func (l LoopType) String() string {
	switch l {
	case LoopForward:
		return "forward"
	case LoopPingPong:
		return "pingpong"
	default:
		return "none"
	}
}

// Sample is a digitized waveform and its loop metadata. Audio is always
// decoded to signed 16-bit PCM regardless of the on-disk bit depth or
// signedness.
type Sample struct {
	Name          string
	BaseFrequency int // Hz at note C-5 (key 60)
	DefaultVolume int // 0..64
	GlobalVolume  int // 0..64
	LoopType      LoopType
	LoopStart     int // sample-frame index
	LoopEnd       int // sample-frame index, exclusive
	Audio         []int16
}

// VolEffectKind tags the volume-column effect of a Column.
type VolEffectKind uint8

const (
	VolNone VolEffectKind = iota
	VolSetVolume
	VolFineVolSlideUp
	VolFineVolSlideDown
	VolSlideUp
	VolSlideDown
	VolPortaDown
	VolPortaUp
	VolSetPan
	VolTonePorta
	VolVibratoDepth
)

// VolEffect is the volume-column tagged variant. Value's meaning depends on
// Kind: a 0..64 volume/pan level for VolSetVolume/VolSetPan, a slide/porta
// magnitude otherwise.
type VolEffect struct {
	Kind  VolEffectKind
	Value uint8
}

// EffectKind enumerates the canonical Axx..Zxx effect vocabulary, including
// the IT Sxy sub-opcode table flattened into its own tags. Decoders populate
// whichever subset their format supports; the Player dispatches on this tag
// and no-ops anything it does not yet act on.
type EffectKind uint8

const (
	EffNone EffectKind = iota
	EffSetSpeed          // Axx
	EffPosJump           // Bxx
	EffPatBreak          // Cxx
	EffVolSlide          // Dxy
	EffPortaDown         // Exx
	EffPortaUp           // Fxx
	EffTonePorta         // Gxx
	EffVibrato           // Hxy
	EffTremor            // Ixy
	EffArpeggio          // Jxy
	EffVolSlideVibrato   // Kxy
	EffVolSlideTonePorta // Lxy
	EffChannelVolume     // Mxx
	EffChannelVolSlide   // Nxy
	EffSampleOffset      // Oxx
	EffPanSlide          // Pxy
	EffRetrig            // Qxy
	EffTremolo           // Rxy

	// Sxy sub-opcode table (S1x..SFx)
	EffGlissandoControl     // S1x
	EffSetFinetune          // S2x
	EffSetVibratoWaveform   // S3x
	EffSetTremoloWaveform   // S4x
	EffSetPanbrelloWaveform // S5x
	EffFinePatternDelay     // S6x

	// S7x: past-note and new-note-action / envelope sub-effects, one tag
	// per nibble 0x0-0xC. Nibbles 0xD-0xF are unassigned (no-op).
	EffPastNoteCut      // S70
	EffPastNoteOff      // S71
	EffPastNoteFade     // S72
	EffNNANoteCut       // S73
	EffNNANoteContinue  // S74
	EffNNANoteOff       // S75
	EffNNANoteFade      // S76
	EffVolEnvOff        // S77
	EffVolEnvOn         // S78
	EffPanEnvOff        // S79
	EffPanEnvOn         // S7A
	EffPitchEnvOff      // S7B
	EffPitchEnvOn       // S7C

	EffSetPanPosition // S8x
	EffSoundControl   // S9x (surround/stereo control)
	EffHighOffset     // SAx

	EffPatternLoopStart // SB0
	EffPatternLoop      // SBx, x != 0

	EffNoteCut        // SCx
	EffNoteDelay      // SDx
	EffPatternDelay   // SEx
	EffSetActiveMacro // SFx

	EffSetTempo       // Txx, xx >= 0x20
	EffDecTempo       // T0x
	EffIncTempo       // T1x
	EffFineVibrato    // Uxy
	EffSetGlobalVol   // Vxx
	EffGlobalVolSlide // Wxy
	EffFineSetPan     // Xxx
	EffPanbrello      // Yxy
	EffMIDIMacro      // Zxx
)

// Effect is the main-column tagged effect variant. Value carries the raw xy
// argument byte; per-effect nibble splitting happens where the effect is
// consumed, since the two nibbles mean different things for different
// effects (e.g. Dxy packs two slide directions, Qxy packs a volume-transform
// selector and a retrigger period).
type Effect struct {
	Kind  EffectKind
	Value uint8
}

// Column is one channel's cell within a Row.
type Column struct {
	Note       Note
	Instrument int // 0 = no change, else 1-based index into Module.Samples
	Vol        VolEffect
	Effect     Effect
}

// Row is one horizontal slice of a Pattern; all channels advance in lockstep.
type Row []Column

// Pattern is a 2-D grid of Rows, one per sequencer row, each containing one
// Column per channel.
type Pattern struct {
	Rows []Row
}

// Channels returns the column width of the pattern's first row, or 0 for an
// empty pattern.
func (p Pattern) Channels() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return len(p.Rows[0])
}

// Order sentinel values in Module.Playlist.
const (
	OrderEndOfSong = 255
	OrderSkip      = 254
)

// NotemapEntry maps an instrument's incoming note to a sample+transposed-key
// pair (IT instrument mode).
type NotemapEntry struct {
	Note   uint8
	Sample uint8
}

// EnvelopeNode is one (value, tick) control point of an Envelope.
type EnvelopeNode struct {
	Y    uint8
	Tick uint16
}

// Envelope is one of an Instrument's volume/pan/pitch envelopes, parsed from
// the IT instrument-mode block for a future envelope-aware mixer; Player
// does not evaluate it yet.
type Envelope struct {
	Enabled      bool
	Loop         bool
	Sustain      bool
	LoopStart    uint8
	LoopEnd      uint8
	SustainStart uint8
	SustainEnd   uint8
	Nodes        []EnvelopeNode
}

// Instrument is an IT instrument-mode indirection layer between a note and a
// Sample. STM and S3M are sample-mode formats and never populate
// Module.Instruments.
type Instrument struct {
	Name                 string
	NewNoteAction        uint8
	DuplicateCheckType   uint8
	DuplicateCheckAction uint8
	Fadeout              uint16
	GlobalVolume         uint8
	Notemap              [120]NotemapEntry
	VolumeEnvelope       Envelope
	PanEnvelope          Envelope
	PitchEnvelope        Envelope
}

// Module is the canonical, format-independent song produced by a decoder.
type Module struct {
	Name string
	Mode PlaybackMode

	LinearFreqSlides bool
	FastVolumeSlides bool

	InitialTempo        int // BPM-like, 32..255
	InitialSpeed        int // ticks per row, 1..255
	InitialGlobalVolume int // 0..128
	MixingVolume        int // 0..128

	Samples     []Sample
	Instruments []Instrument
	Patterns    []Pattern
	Playlist    []uint8 // pattern indices, terminated by OrderEndOfSong

	ChannelPan    [64]uint8
	ChannelVolume [64]uint8
	Message       string
}

// SampleFor returns the Sample bound by a 1-based pattern instrument index,
// or nil if idx is 0 ("no change") or out of range. The decoders copy
// instrument indices from the file without range-checking them, and Module
// data may also be hand-built, so the Player treats out-of-range indices
// defensively through this lookup.
func (m *Module) SampleFor(idx int) *Sample {
	if idx <= 0 || idx > len(m.Samples) {
		return nil
	}
	return &m.Samples[idx-1]
}

// emptyPattern returns a Pattern of the given row/channel shape with every
// Column zero-valued, used by IT for unused pattern offsets and by decoders
// that need a placeholder while building up packed-row state.
func emptyPattern(rows, channels int) Pattern {
	p := Pattern{Rows: make([]Row, rows)}
	for r := range p.Rows {
		p.Rows[r] = make(Row, channels)
	}
	return p
}
