// Command trkwav renders a tracker module to a WAVE file. It runs the
// sequencer to completion in memory and writes one finite PCM buffer with
// github.com/go-audio/wav, unlike cmd/trkplay which streams indefinitely to
// a live device.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/trkplay/trkplay/engine"
	"github.com/trkplay/trkplay/internal/config"
	"github.com/trkplay/trkplay/trkmod"
)

const audioFormatPCM = 1

var (
	flagOut    = flag.String("wav", "", "output WAVE file (required)")
	flagHz     = flag.Int("hz", 44100, "output sample rate")
	flagInterp = flag.String("interp", "linear", "interpolation: none, linear, sinc8, sinc16, sinc32")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("trkwav: ")
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("Missing module filename")
	}
	if *flagOut == "" {
		log.Fatal("Missing -wav output path")
	}

	interp, err := config.InterpolationFromFlag(*flagInterp)
	if err != nil {
		log.Fatal(err)
	}

	fname := flag.Arg(0)
	data, err := os.ReadFile(fname)
	if err != nil {
		log.Fatal(err)
	}

	ext := strings.ToLower(filepath.Ext(fname))
	mod, err := trkmod.Load(ext, bytes.NewReader(data))
	if err != nil {
		log.Fatal(err)
	}

	player := engine.NewPlayer(mod, *flagHz)
	player.Interpolation = interp

	const chunkSize = 4096
	chunk := make([]int16, chunkSize)
	samples := make([]int, 0, chunkSize*64)
	for !player.Ended() {
		player.Render(chunk)
		for _, s := range chunk {
			samples = append(samples, int(s))
		}
	}

	outF, err := os.Create(*flagOut)
	if err != nil {
		log.Fatal(err)
	}
	defer outF.Close()

	enc := wav.NewEncoder(outF, *flagHz, 16, 1, audioFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: *flagHz},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		log.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s -> %s (%d samples, %.1fs)\n", fname, *flagOut, len(samples), float64(len(samples))/float64(*flagHz))
}
