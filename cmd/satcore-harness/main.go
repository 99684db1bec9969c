// Command satcore-harness drives a saturn.Machine headlessly for a fixed
// number of master-clock cycles, optionally loading and/or writing a
// save state. It exists to exercise the module end to end without a
// display/audio frontend of its own.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/user-none/satcore/saturn"
	"github.com/user-none/satcore/scu"
)

func main() {
	region := flag.String("region", "ntsc", "region: ntsc or pal")
	cycles := flag.Uint64("cycles", 4_000_000, "master-clock cycles to run")
	wramSize := flag.Int("wram-size", saturn.DefaultWRAMSize, "WRAM size in bytes")
	backupRAMSize := flag.Int("backup-ram-size", 0, "if nonzero, install a backup RAM cartridge of this size")
	loadState := flag.String("load-state", "", "path to a save state to load before running")
	saveState := flag.String("save-state", "", "path to write a save state to after running")
	threaded := flag.Bool("threaded-render", true, "apply VDP2 render events on a worker goroutine")
	flag.Parse()

	cfg := saturn.DefaultConfig()
	cfg.WRAMSize = *wramSize
	cfg.ThreadedRendering = *threaded
	switch *region {
	case "ntsc":
		cfg.Region = saturn.RegionNTSC
	case "pal":
		cfg.Region = saturn.RegionPAL
	default:
		log.Fatalf("unknown region %q: want ntsc or pal", *region)
	}
	if *backupRAMSize > 0 {
		cfg.Cart = scu.NewBackupRAMCart(0x01, *backupRAMSize)
	}

	frames := 0
	cb := saturn.Callbacks{
		FrameComplete: func() { frames++ },
		DebugSink: func(b uint8) {
			os.Stdout.Write([]byte{b})
		},
	}

	m := saturn.New(cfg, cb)
	defer m.Shutdown()

	if *loadState != "" {
		data, err := os.ReadFile(*loadState)
		if err != nil {
			log.Fatalf("reading save state: %v", err)
		}
		if err := m.Deserialize(data); err != nil {
			log.Fatalf("loading save state: %v", err)
		}
	}

	m.RunCycles(*cycles)
	log.Printf("ran %d cycles, completed %d frames", *cycles, frames)

	if *saveState != "" {
		if err := os.WriteFile(*saveState, m.Serialize(), 0o644); err != nil {
			log.Fatalf("writing save state: %v", err)
		}
	}
}
