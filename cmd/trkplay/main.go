// Command trkplay decodes a tracker module and plays it through the default
// audio device via portaudio, printing a scrolling tracker-style view of the
// pattern data around the current row.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/gordonklaus/portaudio"

	"github.com/trkplay/trkplay/engine"
	"github.com/trkplay/trkplay/internal/config"
	"github.com/trkplay/trkplay/internal/wavfile"
	"github.com/trkplay/trkplay/trkmod"
)

var (
	flagHz       = flag.Int("hz", 44100, "output sample rate")
	flagInterp   = flag.String("interp", "linear", "interpolation: none, linear, sinc8, sinc16, sinc32")
	flagStartOrd = flag.Int("start", 0, "starting order; an out-of-range value starts at order 0")
	flagRecord   = flag.String("record", "", "also stream output to this WAVE file as it plays")
)

const (
	escape     = "\x1b["
	hideCursor = escape + "?25l"
	showCursor = escape + "?25h"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("trkplay: ")
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("Missing module filename")
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
	player.Logger = log.New(os.Stderr, "trkplay: ", 0)

	start := *flagStartOrd
	if start < 0 || start >= len(mod.Playlist) {
		start = 0
	}
	player.SeekTo(start, 0)

	var rec *wavfile.Writer
	if *flagRecord != "" {
		recF, err := os.Create(*flagRecord)
		if err != nil {
			log.Fatal(err)
		}
		defer recF.Close()
		rec, err = wavfile.NewWriter(recF, *flagHz)
		if err != nil {
			log.Fatal(err)
		}
		defer rec.Finish()
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer portaudio.Terminate()

	streamCB := func(out []int16) {
		player.Render(out)
		if rec != nil {
			rec.WriteSamples(out)
		}
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(*flagHz), portaudio.FramesPerBufferUnspecified, streamCB)
	if err != nil {
		log.Fatal(err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		log.Fatal(err)
	}
	defer stream.Stop()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)
	go func() {
		<-sigch
		player.Control.Post(engine.CommandStop)
		stream.Stop()
		portaudio.Terminate()
		if rec != nil {
			rec.Finish()
		}
		fmt.Print(showCursor)
		os.Exit(0)
	}()

	fmt.Print(hideCursor)
	fmt.Println(mod.Name)

	white := color.New(color.FgWhite).SprintFunc()
	cyan := color.New(color.FgCyan).SprintfFunc()
	magenta := color.New(color.FgMagenta).SprintfFunc()
	yellow := color.New(color.FgYellow).SprintfFunc()

	lastOrder, lastRow := -1, -1
	for !player.Ended() {
		order, _, row := player.Position()
		if order == lastOrder && row == lastRow {
			continue
		}
		lastOrder, lastRow = order, row

		for i := -4; i <= 4; i++ {
			rowData := player.NoteDataFor(order, row+i)
			if rowData == nil {
				fmt.Println()
				continue
			}

			if i == 0 {
				fmt.Print(">>> ")
			} else {
				fmt.Print("    ")
			}

			for ci, col := range rowData {
				if ci >= 4 {
					fmt.Print(" ...")
					break
				}
				fmt.Print(white(col.Note.String()), " ", cyan("%2d", col.Instrument), " ",
					magenta("%d", col.Effect.Kind), yellow("%02X", col.Effect.Value))
				if ci < 3 {
					fmt.Print("|")
				}
			}
			if i == 0 {
				fmt.Print(" <<<")
			}
			fmt.Println()
		}
		fmt.Print(escape + "9F")
	}

	fmt.Print(showCursor)
}
