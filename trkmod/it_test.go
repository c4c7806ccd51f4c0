package trkmod

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

const (
	itHeaderSize       = 192
	itSampleHeaderSize = 80
)

// buildIT assembles a minimal, well-formed IT file: no instrument-mode
// block, one silent sample, and one two-row pattern with a single note.
func buildIT(t *testing.T, flags uint16) []byte {
	t.Helper()

	const total = 512
	buf := make([]byte, total)
	copy(buf[0:4], "IMPM")
	copy(buf[4:30], "test it")
	binary.LittleEndian.PutUint16(buf[32:34], 1) // OrderCount
	binary.LittleEndian.PutUint16(buf[34:36], 0) // InstrumentCount
	binary.LittleEndian.PutUint16(buf[36:38], 1) // SampleCount
	binary.LittleEndian.PutUint16(buf[38:40], 1) // PatternCount
	binary.LittleEndian.PutUint16(buf[44:46], flags)
	buf[48] = 64 // GlobalVolume
	buf[49] = 48 // MixingVolume
	buf[50] = 6  // InitialSpeed
	buf[51] = 125

	pos := itHeaderSize
	buf[pos] = 0 // order 0 -> pattern 0
	pos++

	binary.LittleEndian.PutUint32(buf[pos:pos+4], 256) // sample offset
	pos += 4
	binary.LittleEndian.PutUint32(buf[pos:pos+4], 400) // pattern offset
	pos += 4

	sampBase := 256
	copy(buf[sampBase:sampBase+4], "IMPS")
	copy(buf[sampBase+4:sampBase+16], "testsmp")
	buf[sampBase+17] = 48 // GlobalVolume
	buf[sampBase+18] = 0  // Flags: no sample data present
	buf[sampBase+19] = 48 // Volume
	binary.LittleEndian.PutUint32(buf[sampBase+48:sampBase+52], 0) // Length 0
	binary.LittleEndian.PutUint32(buf[sampBase+60:sampBase+64], 8363)

	patBase := 400
	data := []byte{0x81, 0x07, 60, 1, 48, 0x00, 0x00}
	binary.LittleEndian.PutUint16(buf[patBase:patBase+2], uint16(len(data)))
	binary.LittleEndian.PutUint16(buf[patBase+2:patBase+4], 2) // rowsAmount
	copy(buf[patBase+8:], data)

	return buf
}

func TestLoadIT_Basic(t *testing.T) {
	data := buildIT(t, 0x08) // linear frequency slides
	mod, err := LoadIT(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadIT: %v", err)
	}

	if mod.Name != "test it" {
		t.Errorf("Name = %q, want %q", mod.Name, "test it")
	}
	if mod.Mode.Kind != ModeITSample {
		t.Errorf("Mode.Kind = %v, want ModeITSample (no instrument-mode flag set)", mod.Mode.Kind)
	}
	if !mod.LinearFreqSlides {
		t.Errorf("LinearFreqSlides = false, want true")
	}
	if len(mod.Patterns) != 1 {
		t.Fatalf("len(Patterns) = %d, want 1", len(mod.Patterns))
	}
	pat := mod.Patterns[0]
	if len(pat.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(pat.Rows))
	}
	if pat.Channels() != 64 {
		t.Errorf("Channels() = %d, want 64", pat.Channels())
	}

	col := pat.Rows[0][0]
	if col.Note.Kind != NoteOn || col.Note.Key != 60 {
		t.Errorf("Note = %+v, want On(key=60)", col.Note)
	}
	if col.Instrument != 1 {
		t.Errorf("Instrument = %d, want 1", col.Instrument)
	}
	if col.Vol.Kind != VolSetVolume || col.Vol.Value != 48 {
		t.Errorf("Vol = %+v, want {VolSetVolume, 48}", col.Vol)
	}

	// Untouched channels on the same row must stay the zero Column.
	if pat.Rows[0][1].Note.Kind != NoteNone {
		t.Errorf("Rows[0][1].Note.Kind = %v, want NoteNone", pat.Rows[0][1].Note.Kind)
	}
}

func TestLoadIT_SampleWithZeroPointerIsSilent(t *testing.T) {
	data := buildIT(t, 0)
	mod, err := LoadIT(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadIT: %v", err)
	}
	if len(mod.Samples) != 1 {
		t.Fatalf("len(Samples) = %d, want 1", len(mod.Samples))
	}
	if len(mod.Samples[0].Audio) != 0 {
		t.Errorf("Samples[0].Audio has %d frames, want 0 (no sample data flag set)", len(mod.Samples[0].Audio))
	}
}

func TestLoadIT_BadMagic(t *testing.T) {
	data := buildIT(t, 0)
	copy(data[0:4], "XXXX")

	_, err := LoadIT(bytes.NewReader(data))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestLoadITPattern_UnallocatedOffsetIsEmpty(t *testing.T) {
	pat, err := loadITPattern(newCursor(bytes.NewReader(nil)), 0)
	if err != nil {
		t.Fatalf("loadITPattern: %v", err)
	}
	if len(pat.Rows) != 64 || pat.Channels() != 64 {
		t.Errorf("empty IT pattern shape = %dx%d, want 64x64", len(pat.Rows), pat.Channels())
	}
}

func TestItColumn_VolumeColumnRanges(t *testing.T) {
	cases := []struct {
		vol  uint8
		kind VolEffectKind
		val  uint8
	}{
		{32, VolSetVolume, 32},
		{70, VolFineVolSlideUp, 5},
		{150, VolSetPan, 22},
		{198, VolTonePorta, 5},
	}
	for _, c := range cases {
		col := itColumn(120, 0, c.vol, 0, 0)
		if col.Vol.Kind != c.kind || col.Vol.Value != c.val {
			t.Errorf("itColumn(vol=%d) = %+v, want {%v, %d}", c.vol, col.Vol, c.kind, c.val)
		}
	}
}
