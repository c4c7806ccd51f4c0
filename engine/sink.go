package engine

import "context"

// Sink is the abstract audio output a Player renders into. A real-time CLI
// wires this to a portaudio stream callback; an offline renderer wires it to
// a WAVE file writer. Mono signed 16-bit PCM at the Player's sample rate.
type Sink interface {
	Write(samples []int16) (int, error)
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func([]int16) (int, error)

func (f SinkFunc) Write(samples []int16) (int, error) { return f(samples) }

// Stream pulls fixed-size buffers from the Player and writes them to sink
// until ctx is canceled, the song ends, or sink returns an error. bufSize is
// in samples (frames, since output is mono).
func (p *Player) Stream(ctx context.Context, sink Sink, bufSize int) error {
	buf := make([]int16, bufSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p.Render(buf)
		if _, err := sink.Write(buf); err != nil {
			return err
		}
		if p.Ended() {
			return nil
		}
	}
}
