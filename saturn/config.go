// Package saturn wires the scheduler, bus matrix, SCU, and VDP packages
// into one cycle-driven machine: one value-struct config, one thin
// top-level struct gluing collaborators constructed independently, and a
// versioned CRC32-checked save-state codec living beside it.
package saturn

import "github.com/user-none/satcore/scu"

// Region selects NTSC or PAL field timing.
type Region int

const (
	RegionNTSC Region = iota
	RegionPAL
)

// DefaultWRAMSize is the Saturn's high work RAM size this module models by
// default; Config.WRAMSize overrides it to exercise the save-state's
// documented "WRAM size select" field.
const DefaultWRAMSize = 1 << 20 // 1 MiB

// Config is the machine's construction-time configuration, passed by value
// as a plain value struct rather than a builder or options-functions API.
type Config struct {
	Region   Region
	WRAMSize int

	// Deinterlace enables the progressive-scan enhancement over raw
	// interlaced field output.
	Deinterlace bool
	// TransparentMeshes makes VDP1 write the pixels that mesh mode's
	// checkerboard skips into VDP1.MeshFB instead of dropping them. VDP2
	// does not composite MeshFB, so the displayed image still shows the
	// checkerboard.
	TransparentMeshes bool
	// ThreadedRendering enables the producer/consumer render queue; when
	// false, render events apply synchronously on the calling goroutine.
	ThreadedRendering bool
	// VDP1CyclePenalty is the tunable per-pixel VRAM write cost.
	VDP1CyclePenalty uint64

	// Cart selects what's plugged into the cartridge slot; nil installs
	// scu.EmptySlot.
	Cart scu.Slot
}

// DefaultConfig returns the documented defaults: NTSC, 1 MiB WRAM, threaded
// rendering on, the default VDP1 cycle penalty, no cartridge.
func DefaultConfig() Config {
	return Config{
		Region:            RegionNTSC,
		WRAMSize:          DefaultWRAMSize,
		ThreadedRendering: true,
		VDP1CyclePenalty:  22,
	}
}

// Callbacks is the frontend's collaborator surface: direct function-valued
// callbacks wired in at construction, rather than an event-bus/observer
// framework.
type Callbacks struct {
	FrameComplete        func()
	VDP1DrawFinished     func()
	VDP1FramebufferSwap  func()
	DebugSink            func(b uint8)
	MasterInterrupt      func(level int, vector uint8)
	SlaveInterrupt       func(level int, vector uint8)
}
