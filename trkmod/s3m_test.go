package trkmod

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

const (
	s3mHeaderSize       = 96
	s3mSampleHeaderSize = 80
)

// buildS3M assembles a minimal, well-formed S3M file with one sample
// (pointed to by parapointer 16) and two patterns: pattern 0 is unallocated
// (parapointer 0, all-silent), pattern 1 holds one real note at parapointer
// 32.
func buildS3M(t *testing.T, intGP uint16, trackerMetadata uint16) []byte {
	t.Helper()

	const total = 600
	buf := make([]byte, total)

	copy(buf[0:28], "test s3m")
	binary.LittleEndian.PutUint16(buf[32:34], 2) // OrderCount
	binary.LittleEndian.PutUint16(buf[34:36], 1) // SampleCount
	binary.LittleEndian.PutUint16(buf[36:38], 2) // PatternCount
	binary.LittleEndian.PutUint16(buf[40:42], trackerMetadata)
	binary.LittleEndian.PutUint16(buf[42:44], 1) // SampleFormat: signed
	copy(buf[44:48], "SCRM")
	buf[48] = 32 // GlobalVolume (0..64 domain)
	buf[49] = 6  // InitialSpeed
	buf[50] = 125
	buf[51] = 16 // MixingVolume

	// Order list (2 bytes) immediately follows the header.
	pos := s3mHeaderSize
	buf[pos] = 0
	buf[pos+1] = 1
	pos += 2

	// One sample parapointer -> para 16 (byte 256).
	binary.LittleEndian.PutUint16(buf[pos:pos+2], 16)
	pos += 2

	// Two pattern parapointers: pattern 0 unallocated, pattern 1 -> para 32 (byte 512).
	binary.LittleEndian.PutUint16(buf[pos:pos+2], 0)
	binary.LittleEndian.PutUint16(buf[pos+2:pos+4], 32)
	pos += 4

	// 32-byte channel panning table, left at zero (cosmetic only).
	pos += 32
	_ = pos

	// Sample header at byte 256.
	sampBase := 256
	buf[sampBase+0] = 1 // SampleType: normal PCM
	copy(buf[sampBase+1:sampBase+13], "testsmp")
	binary.LittleEndian.PutUint32(buf[sampBase+16:sampBase+20], 0) // Length 0, no audio
	buf[sampBase+28] = 40                                          // Volume
	buf[sampBase+30] = 0                                           // Packed
	buf[sampBase+31] = 0                                           // Flags: no loop
	binary.LittleEndian.PutUint32(buf[sampBase+32:sampBase+36], 8363)
	binary.LittleEndian.PutUint16(buf[sampBase+40:sampBase+42], intGP)
	copy(buf[sampBase+48:sampBase+76], "test sample name")

	// Pattern 1 data at byte 512; first 2 bytes are the on-disk packed
	// length field, unused by the decoder.
	patBase := 512 + 2
	cell := []byte{
		0 | 32 | 64, // channel 0, note+instrument present, volume present
		0x40,        // note: octave 4, pitch 0
		1,           // instrument 1
		32,          // volume 32
	}
	copy(buf[patBase:], cell)
	rowEnd := patBase + len(cell)
	buf[rowEnd] = 0 // terminate row 0
	for r := 1; r < 64; r++ {
		buf[rowEnd+r] = 0 // terminate remaining rows
	}

	return buf
}

func TestLoadS3M_Basic(t *testing.T) {
	data := buildS3M(t, 0, 0x1300)
	mod, err := LoadS3M(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadS3M: %v", err)
	}

	if mod.Name != "test s3m" {
		t.Errorf("Name = %q, want %q", mod.Name, "test s3m")
	}
	if mod.Mode.Kind != ModeS3M {
		t.Errorf("Mode.Kind = %v, want ModeS3M", mod.Mode.Kind)
	}
	if len(mod.Playlist) != 2 || mod.Playlist[0] != 0 || mod.Playlist[1] != 1 {
		t.Errorf("Playlist = %v, want [0 1]", mod.Playlist)
	}
	if len(mod.Patterns) != 2 {
		t.Fatalf("len(Patterns) = %d, want 2", len(mod.Patterns))
	}
	if mod.InitialGlobalVolume != 64 {
		t.Errorf("InitialGlobalVolume = %d, want 64 (header GlobalVolume 32 scaled x2)", mod.InitialGlobalVolume)
	}

	col := mod.Patterns[1].Rows[0][0]
	if col.Note.Kind != NoteOn || col.Note.Key != 4*12+0+12 {
		t.Errorf("Note = %+v, want On(key=%d)", col.Note, 4*12+12)
	}
	if col.Instrument != 1 {
		t.Errorf("Instrument = %d, want 1", col.Instrument)
	}
	if col.Vol.Kind != VolSetVolume || col.Vol.Value != 32 {
		t.Errorf("Vol = %+v, want {VolSetVolume, 32}", col.Vol)
	}

	// Pattern 0's parapointer was 0: must come back as a fully silent,
	// fixed-width 32-channel pattern rather than failing to decode.
	if got := mod.Patterns[0].Channels(); got != 32 {
		t.Errorf("Patterns[0].Channels() = %d, want 32", got)
	}
}

func TestIsGUS(t *testing.T) {
	cases := []struct {
		intGPTotal, trackerMetadata uint16
		want                        bool
	}{
		{1, 0x1300, false},
		{0, 0x1300, false},
		{0, 0x1301, true},
		{7, 0, true},
	}
	for _, c := range cases {
		if got := isGUS(c.intGPTotal, c.trackerMetadata); got != c.want {
			t.Errorf("isGUS(%d, %#x) = %v, want %v", c.intGPTotal, c.trackerMetadata, got, c.want)
		}
	}
}

func TestLoadS3M_BadMagic(t *testing.T) {
	data := buildS3M(t, 0, 0x1300)
	copy(data[44:48], "XXXX")

	_, err := LoadS3M(bytes.NewReader(data))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestS3MEffect_SxyDispatch(t *testing.T) {
	eff := s3mEffect(19, 0xB4) // SBx -> pattern loop, nibble 4
	if eff.Kind != EffPatternLoop || eff.Value != 4 {
		t.Errorf("s3mEffect(19, 0xB4) = %+v, want {EffPatternLoop, 4}", eff)
	}

	if eff := s3mEffect(19, 0xB0); eff.Kind != EffPatternLoopStart {
		t.Errorf("s3mEffect(19, 0xB0) = %+v, want EffPatternLoopStart", eff)
	}
	if eff := s3mEffect(19, 0x90); eff.Kind != EffSoundControl {
		t.Errorf("s3mEffect(19, 0x90) = %+v, want EffSoundControl", eff)
	}
	if eff := s3mEffect(19, 0x70); eff.Kind != EffPastNoteCut {
		t.Errorf("s3mEffect(19, 0x70) = %+v, want EffPastNoteCut", eff)
	}
	if eff := s3mEffect(19, 0x78); eff.Kind != EffVolEnvOn {
		t.Errorf("s3mEffect(19, 0x78) = %+v, want EffVolEnvOn", eff)
	}
}
