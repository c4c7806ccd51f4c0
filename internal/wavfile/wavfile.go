// Package wavfile writes mono 16-bit PCM WAVE files without needing to know
// the sample count up front. The header is written with zeroed size fields
// and patched in Finish once the total is known.
package wavfile

import (
	"encoding/binary"
	"io"
)

const pcmFormat = 1

// Writer streams mono signed 16-bit PCM to ws, backpatching the RIFF and data
// chunk sizes once the total sample count is known.
type Writer struct {
	ws         io.WriteSeeker
	sampleRate int
}

type waveFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// NewWriter writes the RIFF/WAVE/fmt header (with zeroed size fields) and
// returns a Writer ready for WriteSamples calls.
func NewWriter(ws io.WriteSeeker, sampleRate int) (*Writer, error) {
	w := &Writer{ws: ws, sampleRate: sampleRate}

	if _, err := ws.Write([]byte("RIFF")); err != nil {
		return nil, err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(0)); err != nil {
		return nil, err
	}
	if _, err := ws.Write([]byte("WAVE")); err != nil {
		return nil, err
	}

	if _, err := ws.Write([]byte("fmt ")); err != nil {
		return nil, err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(16)); err != nil {
		return nil, err
	}
	format := waveFormat{
		AudioFormat:   pcmFormat,
		Channels:      1,
		SampleRate:    uint32(sampleRate),
		BitsPerSample: 16,
	}
	format.ByteRate = uint32(sampleRate) * 2
	format.BlockAlign = 2
	if err := binary.Write(ws, binary.LittleEndian, format); err != nil {
		return nil, err
	}

	if _, err := ws.Write([]byte("data")); err != nil {
		return nil, err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(0)); err != nil {
		return nil, err
	}

	return w, nil
}

// WriteSamples appends mono PCM frames to the data chunk.
func (w *Writer) WriteSamples(samples []int16) error {
	return binary.Write(w.ws, binary.LittleEndian, samples)
}

// Finish backpatches the RIFF and data chunk sizes now that the total length
// is known, and returns the final file length.
func (w *Writer) Finish() (int64, error) {
	total, err := w.ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	if _, err := w.ws.Seek(4, io.SeekStart); err != nil {
		return 0, err
	}
	if err := binary.Write(w.ws, binary.LittleEndian, int32(total-8)); err != nil {
		return 0, err
	}

	if _, err := w.ws.Seek(40, io.SeekStart); err != nil {
		return 0, err
	}
	if err := binary.Write(w.ws, binary.LittleEndian, int32(total-44)); err != nil {
		return 0, err
	}

	return total, nil
}
