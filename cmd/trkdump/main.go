// Command trkdump decodes a tracker module and prints a summary of its
// header, samples and patterns. It never opens an audio device.
package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/trkplay/trkplay/trkmod"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("trkdump: ")

	if len(os.Args) <= 1 {
		log.Fatal("Missing module filename")
	}

	fname := os.Args[1]
	data, err := os.ReadFile(fname)
	if err != nil {
		log.Fatal(err)
	}

	ext := strings.ToLower(filepath.Ext(fname))
	mod, err := trkmod.Load(ext, bytes.NewReader(data))
	if err != nil {
		log.Fatal(err)
	}

	dump(mod)
}

func dump(mod *trkmod.Module) {
	fmt.Printf("Name:      %s\n", mod.Name)
	fmt.Printf("Format:    %s\n", mod.Mode.Kind)
	if mod.Mode.Kind == trkmod.ModeS3M {
		fmt.Printf("GUS mode:  %t\n", mod.Mode.GUS)
	}
	fmt.Printf("Tempo:     %d\n", mod.InitialTempo)
	fmt.Printf("Speed:     %d\n", mod.InitialSpeed)
	fmt.Printf("GlobalVol: %d\n", mod.InitialGlobalVolume)
	fmt.Printf("MixVol:    %d\n", mod.MixingVolume)
	fmt.Printf("Samples:   %d\n", len(mod.Samples))
	fmt.Printf("Instruments: %d\n", len(mod.Instruments))
	fmt.Printf("Patterns:  %d\n", len(mod.Patterns))
	fmt.Printf("Orders:    %d\n", len(mod.Playlist))
	if mod.Message != "" {
		fmt.Printf("Message:\n%s\n", mod.Message)
	}

	fmt.Println("\nSamples:")
	for i, s := range mod.Samples {
		if s.Name == "" && len(s.Audio) == 0 {
			continue
		}
		fmt.Printf("  %3d %-28s len=%-8d loop=%-8s baseHz=%-6d vol=%-3d gvol=%d\n",
			i+1, s.Name, len(s.Audio), s.LoopType, s.BaseFrequency, s.DefaultVolume, s.GlobalVolume)
	}

	fmt.Println("\nOrder list:")
	for i, p := range mod.Playlist {
		switch p {
		case trkmod.OrderEndOfSong:
			fmt.Printf("  %3d: end\n", i)
		case trkmod.OrderSkip:
			fmt.Printf("  %3d: skip\n", i)
		default:
			fmt.Printf("  %3d: pattern %d\n", i, p)
		}
	}
}
