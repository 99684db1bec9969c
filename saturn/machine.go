package saturn

import (
	"github.com/user-none/satcore/bus"
	"github.com/user-none/satcore/cpu"
	"github.com/user-none/satcore/internal/logx"
	"github.com/user-none/satcore/scheduler"
	"github.com/user-none/satcore/scu"
	"github.com/user-none/satcore/vdp"
)

// B-bus sub-ranges within the documented 0x05A0_0000..0x05FB_FFFF span,
// picked to keep VDP1, VDP2, and the SCSP stub non-overlapping.
const (
	scspBase, scspEnd = 0x05A0_0000, 0x05BF_FFFF
	vdp1Base, vdp1End = 0x05C0_0000, 0x05CF_FFFF
	vdp2Base, vdp2End = 0x05E0_0000, 0x05FB_FFFF
	vdp2CRAMBase      = 0x05F0_0000
	vdp2CRAMEnd       = 0x05F7_FFFF

	wramBase = 0x0600_0000
	cartBase, cartEnd = 0x0200_0000, 0x023F_FFFF

	cartIDAddr  = 0x04FF_FFFE
	debugPortAddr = 0x0210_0001

	// EventTimer1 is the scheduler event id backing Timers.ScheduleTimer1Tick;
	// EventH/EventV (1, 2) are claimed by vdp.PhaseMachine.
	EventTimer1 scheduler.EventID = 3
)

// Machine is the top-level wiring of scheduler, bus, SCU, and VDP into one
// cycle-driven unit: a multi-CPU, multi-GPU system sharing one scheduler.
type Machine struct {
	Config    Config
	Callbacks Callbacks

	Sched *scheduler.Scheduler
	Bus   *bus.Bus
	SCU   *scu.SCU
	VDP1  *vdp.VDP1
	VDP2  *vdp.VDP2
	Phase *vdp.PhaseMachine

	Master cpu.Unit
	Slave  cpu.Unit

	Render      *vdp.RenderQueue
	Framebuffer []uint16
	Stride      int

	wram []byte
}

// New constructs a fully wired Machine: scheduler, bus regions for WRAM,
// cartridge slot, VDP1/VDP2, cartridge ID and debug port, the SCU's DMA
// engine/interrupt controller/timers, the VDP phase machine's callbacks
// into the SCU and VDP1/VDP2, and default VRAM layout for VDP2's four
// scrolling backgrounds and two rotation backgrounds. Master and Slave
// default to cpu.NullUnit until the caller assigns real SH-2 collaborators.
func New(cfg Config, cb Callbacks) *Machine {
	if cfg.WRAMSize == 0 {
		cfg.WRAMSize = DefaultWRAMSize
	}
	if cfg.VDP1CyclePenalty == 0 {
		cfg.VDP1CyclePenalty = 22
	}

	m := &Machine{
		Config:    cfg,
		Callbacks: cb,
		Sched:     scheduler.New(),
		Bus:       bus.NewBus(),
		VDP1:      vdp.NewVDP1(),
		VDP2:      vdp.NewVDP2(),
		Master:    cpu.NullUnit{},
		Slave:     cpu.NullUnit{},
		wram:      make([]byte, cfg.WRAMSize),
	}
	m.VDP1.VRAMWritePenalty = cfg.VDP1CyclePenalty
	m.VDP2.ScreenWide = 320
	m.VDP1.TransparentMeshes = cfg.TransparentMeshes
	m.Stride = m.VDP2.ScreenWide
	m.Framebuffer = make([]uint16, m.Stride*vdp.NTSC320x224.VRes)
	m.Render = vdp.NewRenderQueue(cfg.ThreadedRendering, 64, m.applyRenderEvent)
	m.wireVDP2Layers()

	m.Bus.UnmappedReadLog = func(addr uint32, size int) {
		logx.Debugf("bus: unmapped %d-byte read at %#x", size, addr)
	}

	m.SCU = scu.New(m.Bus)
	if cfg.Cart != nil {
		m.SCU.Cart = cfg.Cart
	}
	m.SCU.Intc.MasterInterrupt = func(level int, vector uint8) {
		if m.Callbacks.MasterInterrupt != nil {
			m.Callbacks.MasterInterrupt(level, vector)
		}
	}
	m.SCU.Timers.ScheduleTimer1Tick = func(delta uint64) {
		m.Sched.ScheduleFromNow(EventTimer1, delta)
	}
	m.Sched.RegisterEvent(EventTimer1, m.SCU, func(_ uint64, ctx any) {
		ctx.(*scu.SCU).Timers.FireTimer1()
	})

	m.mapRegions()
	m.wirePhase()
	return m
}

func (m *Machine) mapRegions() {
	wram := &bus.Region{
		Start: wramBase, End: wramBase + uint32(len(m.wram)) - 1, Bus: bus.CBus, Ctx: m.wram,
		Read8: func(ctx any, addr uint32) uint8 {
			buf := ctx.([]byte)
			return buf[int(addr-wramBase)%len(buf)]
		},
		Write8: func(ctx any, addr uint32, v uint8) {
			buf := ctx.([]byte)
			buf[int(addr-wramBase)%len(buf)] = v
		},
	}
	m.Bus.MapNormal(wram)
	m.Bus.MapSideEffectFree(wram)

	vdp1Region := &bus.Region{
		Start: vdp1Base, End: vdp1End, Bus: bus.BBus, Ctx: m.VDP1,
		Read8:   func(ctx any, addr uint32) uint8 { return ctx.(*vdp.VDP1).Read8(addr - vdp1Base) },
		Write8:  func(ctx any, addr uint32, v uint8) { ctx.(*vdp.VDP1).Write8(addr-vdp1Base, v) },
		Read16:  func(ctx any, addr uint32) uint16 { return ctx.(*vdp.VDP1).Read16(addr - vdp1Base) },
		Write16: func(ctx any, addr uint32, v uint16) { ctx.(*vdp.VDP1).Write16(addr-vdp1Base, v) },
	}
	m.Bus.MapNormal(vdp1Region)
	m.Bus.MapSideEffectFree(vdp1Region)

	vdp2Region := &bus.Region{
		Start: vdp2Base, End: vdp2End, Bus: bus.BBus, Ctx: m.VDP2,
		Read8:  func(ctx any, addr uint32) uint8 { return ctx.(*vdp.VDP2).Read8(addr - vdp2Base) },
		Write8: func(ctx any, addr uint32, v uint8) { ctx.(*vdp.VDP2).Write8(addr-vdp2Base, v) },
	}
	m.Bus.MapNormal(vdp2Region)
	m.Bus.MapSideEffectFree(vdp2Region)

	cramRegion := &bus.Region{
		Start: vdp2CRAMBase, End: vdp2CRAMEnd, Bus: bus.BBus, Ctx: m.VDP2,
		Read8:  func(ctx any, addr uint32) uint8 { return ctx.(*vdp.VDP2).ReadCRAM8(addr - vdp2CRAMBase) },
		Write8: func(ctx any, addr uint32, v uint8) { ctx.(*vdp.VDP2).WriteCRAM8(addr-vdp2CRAMBase, v) },
	}
	m.Bus.MapNormal(cramRegion)
	m.Bus.MapSideEffectFree(cramRegion)

	// Cartridge ID: a fixed side-effect-free 16-bit accessor.
	m.Bus.MapNormal(&bus.Region{
		Start: cartIDAddr, End: cartIDAddr + 1, Bus: bus.ABus, Ctx: m.SCU,
		Read16: func(ctx any, addr uint32) uint16 { return ctx.(*scu.SCU).ReadCartID() },
	})

	// Debug port: write-only, forwarded to Callbacks.DebugSink.
	m.Bus.MapNormal(&bus.Region{
		Start: debugPortAddr, End: debugPortAddr, Bus: bus.ABus, Ctx: m,
		Write8: func(ctx any, _ uint32, v uint8) {
			mm := ctx.(*Machine)
			if mm.Callbacks.DebugSink != nil {
				mm.Callbacks.DebugSink(v)
			}
		},
	})

	// The cart window contains the debug port; it is registered after it so
	// the debug port's region is found first.
	cartRegion := &bus.Region{
		Start: cartBase, End: cartEnd, Bus: bus.ABus, Ctx: m.SCU,
		Read8:  func(ctx any, addr uint32) uint8 { return ctx.(*scu.SCU).Cart.Read8(addr) },
		Write8: func(ctx any, addr uint32, v uint8) { ctx.(*scu.SCU).Cart.Write8(addr, v) },
	}
	m.Bus.MapNormal(cartRegion)
}

// vdp2NBGLayout carves VDP2's 512 KiB VRAM into four non-overlapping
// pattern-name-table/character-data regions, one per scrolling background,
// plus a rotation region for each of RBG0/RBG1. A real cartridge/CPU would
// place these per title; these offsets are this module's power-on default
// so NBG0-3 and RBG0/1 decode real VRAM data from the moment a caller
// flips a layer's Enabled bit, rather than needing an external fetcher
// wired in after construction.
var vdp2NBGLayout = [4]struct {
	pnBase, charBase uint32
	paletteBase      uint16
}{
	{pnBase: 0x00000, charBase: 0x10000, paletteBase: 0x0000},
	{pnBase: 0x02000, charBase: 0x18000, paletteBase: 0x0100},
	{pnBase: 0x04000, charBase: 0x20000, paletteBase: 0x0200},
	{pnBase: 0x06000, charBase: 0x28000, paletteBase: 0x0300},
}

var vdp2RBGLayout = [2]struct {
	base        uint32
	width, height int
}{
	{base: 0x40000, width: 512, height: 128},
	{base: 0x60000, width: 512, height: 128},
}

// wireVDP2Layers gives each NBG/RBG layer a concrete character-mode (NBG)
// or bitmap-mode (RBG) VRAM source, so VDP2.DrawLine decodes real pattern
// name tables and character data instead of relying on an externally
// injected Fetch closure that nothing in the bus-driven machine ever
// supplies.
func (m *Machine) wireVDP2Layers() {
	for i := range m.VDP2.Scrolls {
		l := vdp2NBGLayout[i]
		m.VDP2.Scrolls[i].Source = vdp.LayerSource{
			Char: vdp.CharacterSource{
				PatternNameBase: l.pnBase,
				PatternNameMode: vdp.PatternName1Word,
				CharBase:        l.charBase,
				PaletteBase:     l.paletteBase,
				CellSize:        vdp.Cell8x8,
				ColorFormat:     vdp.FmtPalette16,
				MapWidthChars:   64,
				MapHeightChars:  64,
			},
		}
	}
	for i := range m.VDP2.Rotation {
		l := vdp2RBGLayout[i]
		m.VDP2.Rotation[i].Source = vdp.LayerSource{
			Bitmap: true,
			Bmp: vdp.BitmapSource{
				Base:        l.base,
				Width:       l.width,
				Height:      l.height,
				ColorFormat: vdp.FmtRGB555,
			},
		}
	}
}

func (m *Machine) wirePhase() {
	m.Phase = vdp.New(m.Sched)
	if m.Config.Region == RegionPAL {
		res := vdp.NTSC320x224
		res.PAL = true
		m.Phase.UpdateResolution(res)
	}

	m.Phase.OnHBlank = func(active bool) {
		if active && m.Phase.VPhase == vdp.VActive {
			m.SCU.OnHBlankIN()
		}
	}
	m.Phase.OnVBlankIN = m.SCU.OnVBlankIN
	m.Phase.OnVBlankOUT = m.SCU.OnVBlankOUT
	m.Phase.OnVDP1FrameComplete = func() {
		if m.Callbacks.VDP1DrawFinished != nil {
			m.Callbacks.VDP1DrawFinished()
		}
	}
	m.Phase.OnVDP1Swap = func() {
		if m.VDP1.Swap() && m.Callbacks.VDP1FramebufferSwap != nil {
			m.Callbacks.VDP1FramebufferSwap()
		}
	}
	m.Phase.OnVDP2NewFrame = func() {
		m.VDP2.Sprite.FB = m.VDP1.DisplayFramebuffer()
		m.VDP2.Sprite.Width = vdp.FBWidth
		// The budget is one field's master clocks, so a command list that
		// never reaches an End opcode or an underflowing Return (zeroed
		// VRAM decodes as an endless run of sprites) stops when it runs out.
		m.VDP1.BeginFrame(m.Phase.LineTotal() * m.Phase.FieldTotal(m.Phase.Field))
		m.VDP1.RunFrame()
		m.Render.Push(vdp.RenderEvent{Kind: vdp.EvVDP2BeginFrame})
	}
	m.Phase.OnScanline = func(line int) {
		m.Render.Push(vdp.RenderEvent{Kind: vdp.EvVDP2DrawLine, Line: line})
	}

	origVBlankIN := m.Phase.OnVBlankIN
	m.Phase.OnVBlankIN = func() {
		origVBlankIN()
		m.Render.Push(vdp.RenderEvent{Kind: vdp.EvVDP2EndFrame})
	}

	m.VDP1.OnDMATrigger = m.SCU.OnSpriteDrawEnd
	m.Phase.Start()
}

// applyRenderEvent is RenderQueue's Apply callback: it draws VDP2 scanlines
// into Framebuffer, forwards completed frames to Callbacks.FrameComplete,
// and applies batched VRAM/CRAM write-through events.
func (m *Machine) applyRenderEvent(ev vdp.RenderEvent) {
	switch ev.Kind {
	case vdp.EvVDP2DrawLine:
		y := ev.Line
		if y >= 0 && (y+1)*m.Stride <= len(m.Framebuffer) {
			m.VDP2.DrawLine(y, m.Framebuffer[y*m.Stride:(y+1)*m.Stride])
		}
	case vdp.EvVDP2EndFrame:
		if m.Callbacks.FrameComplete != nil {
			m.Callbacks.FrameComplete()
		}
	case vdp.EvWriteVRAM1:
		m.VDP1.Write8(ev.Addr, uint8(ev.Value))
	case vdp.EvWriteVRAM2:
		m.VDP2.Write8(ev.Addr, uint8(ev.Value))
	case vdp.EvWriteCRAM:
		m.VDP2.WriteCRAM8(ev.Addr, uint8(ev.Value))
	}
}

// RunCycles advances the master CPU, the DMA engine, the DSP host, and the
// scheduler together by n master-clock cycles, in bus-stall-respecting
// increments. The slave CPU and SCSP are driven by their own collaborators
// outside this loop; only genuinely external units (Slave, the SCSP) are
// left to the caller.
func (m *Machine) RunCycles(n uint64) {
	target := m.Sched.Current() + n
	for m.Sched.Current() < target {
		remaining := target - m.Sched.Current()
		consumed := m.Master.Advance(int(remaining))
		if consumed <= 0 {
			consumed = int(remaining)
		}
		m.SCU.DMA.RunDMA(uint64(consumed))
		m.SCU.AdvanceDSP(consumed)
		m.Sched.AdvanceTo(m.Sched.Current() + uint64(consumed))
	}
}

// Shutdown drains and stops the render queue's consumer goroutine, if one
// is running. Safe to call more than once is not guaranteed; callers should
// invoke it exactly once when tearing down the machine.
func (m *Machine) Shutdown() {
	m.Render.Shutdown()
}
