package scu

import (
	"testing"

	"github.com/user-none/satcore/bus"
)

// newTestBus wires a flat byte-addressable backing array into the C-bus
// WRAM range and the B-bus VDP2 VRAM range, enough to exercise DMA without
// a real memory subsystem.
func newTestBus() (*bus.Bus, map[string][]byte) {
	b := bus.NewBus()
	backing := map[string][]byte{
		"wram": make([]byte, 0x20_0000),
		"vdp2": make([]byte, 0x8_0000),
		"cart": make([]byte, 0x40_0000),
	}

	wramRegion := &bus.Region{
		Start: 0x0600_0000, End: 0x07FF_FFFF, Bus: bus.CBus, Ctx: backing["wram"],
		Read8:  func(ctx any, addr uint32) uint8 { return ctx.([]byte)[addr&0x1F_FFFF] },
		Write8: func(ctx any, addr uint32, v uint8) { ctx.([]byte)[addr&0x1F_FFFF] = v },
		Read16: func(ctx any, addr uint32) uint16 { return beRead16(ctx.([]byte), addr&0x1F_FFFF) },
		Read32: func(ctx any, addr uint32) uint32 { return beRead32(ctx.([]byte), addr&0x1F_FFFF) },
		Write16: func(ctx any, addr uint32, v uint16) { beWrite16(ctx.([]byte), addr&0x1F_FFFF, v) },
		Write32: func(ctx any, addr uint32, v uint32) { beWrite32(ctx.([]byte), addr&0x1F_FFFF, v) },
	}
	vdp2Region := &bus.Region{
		Start: 0x05A0_0000, End: 0x05FB_FFFF, Bus: bus.BBus, Ctx: backing["vdp2"],
		Read8:  func(ctx any, addr uint32) uint8 { return ctx.([]byte)[addr&0x7_FFFF] },
		Write8: func(ctx any, addr uint32, v uint8) { ctx.([]byte)[addr&0x7_FFFF] = v },
		Read16: func(ctx any, addr uint32) uint16 { return beRead16(ctx.([]byte), addr&0x7_FFFF) },
		Read32: func(ctx any, addr uint32) uint32 { return beRead32(ctx.([]byte), addr&0x7_FFFF) },
		Write16: func(ctx any, addr uint32, v uint16) { beWrite16(ctx.([]byte), addr&0x7_FFFF, v) },
		Write32: func(ctx any, addr uint32, v uint32) { beWrite32(ctx.([]byte), addr&0x7_FFFF, v) },
	}
	// cart is an A-bus region, used where a test needs a destination on a
	// different physical bus than C-bus WRAM without exercising the B-bus
	// 16-bit lane quirks.
	cartRegion := &bus.Region{
		Start: 0x0200_0000, End: 0x023F_FFFF, Bus: bus.ABus, Ctx: backing["cart"],
		Read8:  func(ctx any, addr uint32) uint8 { return ctx.([]byte)[addr&0x3F_FFFF] },
		Write8: func(ctx any, addr uint32, v uint8) { ctx.([]byte)[addr&0x3F_FFFF] = v },
		Read16: func(ctx any, addr uint32) uint16 { return beRead16(ctx.([]byte), addr&0x3F_FFFF) },
		Read32: func(ctx any, addr uint32) uint32 { return beRead32(ctx.([]byte), addr&0x3F_FFFF) },
		Write16: func(ctx any, addr uint32, v uint16) { beWrite16(ctx.([]byte), addr&0x3F_FFFF, v) },
		Write32: func(ctx any, addr uint32, v uint32) { beWrite32(ctx.([]byte), addr&0x3F_FFFF, v) },
	}
	b.MapNormal(wramRegion)
	b.MapNormal(vdp2Region)
	b.MapNormal(cartRegion)
	return b, backing
}

func beRead16(b []byte, addr uint32) uint16 {
	return uint16(b[addr])<<8 | uint16(b[addr+1])
}

func beRead32(b []byte, addr uint32) uint32 {
	return uint32(b[addr])<<24 | uint32(b[addr+1])<<16 | uint32(b[addr+2])<<8 | uint32(b[addr+3])
}

func beWrite16(b []byte, addr uint32, v uint16) {
	b[addr] = byte(v >> 8)
	b[addr+1] = byte(v)
}

func beWrite32(b []byte, addr uint32, v uint32) {
	b[addr] = byte(v >> 24)
	b[addr+1] = byte(v >> 16)
	b[addr+2] = byte(v >> 8)
	b[addr+3] = byte(v)
}

func TestDMADirectWRAMRoundTrip(t *testing.T) {
	b, backing := newTestBus()
	e := NewEngine(b)
	var endRaised int
	e.RaiseDMAEnd = func(level int) { endRaised++ }

	wram := backing["wram"]
	for i := 0; i < 0x100; i++ {
		wram[i] = byte(i)
	}

	// Source on C-bus WRAM, destination on A-bus cart space: same-bus
	// source/destination pairs are rejected as illegal transfers, so a real
	// copy needs two different buses.
	ch := e.Channels[1]
	ch.SrcAddr = 0x0600_0000
	ch.DstAddr = 0x0200_0000
	ch.XferCount = 0x100
	ch.SrcAddrInc = 4
	ch.DstAddrInc = 4
	ch.DMATrigger = TriggerImmediate

	e.WriteEnable(1, true)
	// Drain: run to completion, then run off the intrDelay counter (33 +
	// min(xferLength>>4, 32) cycles for an Immediate-triggered transfer).
	e.RunDMA(0)
	for i := 0; i < 60; i++ {
		e.RunDMA(1)
	}

	cart := backing["cart"]
	for i := 0; i < 0x100; i++ {
		if cart[i] != byte(i) {
			t.Fatalf("byte %d = %#x, want %#x", i, cart[i], byte(i))
			break
		}
	}
	if endRaised != 1 {
		t.Fatalf("DMA-end raised %d times, want exactly 1", endRaised)
	}
}

func TestDMAPriorityLevel0BeforeLevel2(t *testing.T) {
	b, backing := newTestBus()
	e := NewEngine(b)
	var order []int
	e.RaiseDMAEnd = func(level int) { order = append(order, level) }

	wram := backing["wram"]
	for i := range wram {
		wram[i] = 0
	}

	// Destinations on A-bus cart space: WRAM-to-WRAM is rejected as a
	// same-bus illegal transfer.
	e.Channels[0].SrcAddr = 0x0600_0000
	e.Channels[0].DstAddr = 0x0200_0000
	e.Channels[0].XferCount = 0x40
	e.Channels[0].SrcAddrInc = 4
	e.Channels[0].DstAddrInc = 4
	e.Channels[0].DMATrigger = TriggerImmediate

	e.Channels[2].SrcAddr = 0x0600_1000
	e.Channels[2].DstAddr = 0x0210_0000
	e.Channels[2].XferCount = 0x40
	e.Channels[2].SrcAddrInc = 4
	e.Channels[2].DstAddrInc = 4
	e.Channels[2].DMATrigger = TriggerImmediate

	// Enable the lower-priority channel first; it starts immediately since
	// nothing else is active yet... to test true simultaneity we enable
	// level 2 then level 0 without letting RunDMA drain level 2 first by
	// flipping enable bits back-to-back before any RunDMA call.
	e.Channels[2].Enabled = true
	e.Channels[2].start = true
	e.Channels[0].Enabled = true
	e.Channels[0].start = true
	e.startNextLatched()

	for i := 0; i < 200; i++ {
		e.RunDMA(1)
	}

	if len(order) != 2 {
		t.Fatalf("order = %v, want 2 completions", order)
	}
	if order[0] != 0 || order[1] != 2 {
		t.Fatalf("completion order = %v, want [0 2]", order)
	}
}

func TestDMABBus32BitRunQuirk(t *testing.T) {
	b, backing := newTestBus()
	e := NewEngine(b)
	e.RaiseDMAEnd = func(int) {}

	wram := backing["wram"]
	src := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	copy(wram[0x1000:], src)

	ch := e.Channels[0]
	ch.SrcAddr = 0x0600_1000
	ch.DstAddr = 0x05E0_0000
	ch.XferCount = 0x10
	ch.SrcAddrInc = 4
	ch.DstAddrInc = 4
	ch.DMATrigger = TriggerImmediate

	e.WriteEnable(0, true)
	for i := 0; i < 50; i++ {
		e.RunDMA(1)
	}

	vdp2 := backing["vdp2"]
	want := []struct {
		addr uint32
		lo   byte
		hi   byte
	}{
		{0x0000, 0, 1},
		{0x0004, 2, 3},
		{0x0008, 4, 5},
		{0x000C, 6, 7},
	}
	for _, w := range want {
		got0, got1 := vdp2[w.addr], vdp2[w.addr+1]
		if got0 != w.lo || got1 != w.hi {
			t.Errorf("vdp2[%#x:%#x] = %02x %02x, want %02x %02x", w.addr, w.addr+1, got0, got1, w.lo, w.hi)
		}
	}

	// dst_addr register lands one dst_inc back from the final advance: the
	// last run leaves the cursor at 0x05E0_001C, so it ends at 0x05E0_0018.
	wantDst := uint32(0x05E0_001C) - ch.DstAddrInc
	if ch.xfer.currDstAddr&0x7FF_FFFF != wantDst {
		t.Fatalf("currDstAddr after completion = %#x, want %#x", ch.xfer.currDstAddr, wantDst)
	}
}

func TestDMAIndirectChainRunsAllEntriesOnce(t *testing.T) {
	b, backing := newTestBus()
	e := NewEngine(b)
	var endCount int
	e.RaiseDMAEnd = func(level int) {
		if level == 2 {
			endCount++
		}
	}

	wram := backing["wram"]
	putEntry := func(base uint32, count, dest, source uint32) {
		putU32 := func(off uint32, v uint32) {
			wram[base+off] = byte(v >> 24)
			wram[base+off+1] = byte(v >> 16)
			wram[base+off+2] = byte(v >> 8)
			wram[base+off+3] = byte(v)
		}
		putU32(0, count)
		putU32(4, dest)
		putU32(8, source)
	}

	tableBase := uint32(0x2000)
	// Destinations are on the B-bus (VDP2 VRAM) so they classify as a
	// different bus than the C-bus WRAM sources; same-bus entries would be
	// discarded as illegal instead of transferring. Entry 1
	putEntry(tableBase+0, 4, 0x05A0_0000, 0x0600_5000)
	// Entry 2
	putEntry(tableBase+12, 4, 0x05A0_1000, 0x0600_5010)
	// Entry 3, final flag set in source's high bit
	putEntry(tableBase+24, 4, 0x05A0_2000, 0x0600_5020|0x8000_0000)

	ch := e.Channels[2]
	ch.DstAddr = 0x0600_0000 + tableBase
	ch.Indirect = true
	ch.SrcAddrInc = 4
	ch.DstAddrInc = 4
	ch.DMATrigger = TriggerImmediate

	e.WriteEnable(2, true)
	for i := 0; i < 200; i++ {
		e.RunDMA(1)
	}

	if endCount != 1 {
		t.Fatalf("level-2 DMA-end raised %d times, want exactly 1", endCount)
	}
}

func TestDMASameBusTransferIsIllegal(t *testing.T) {
	b, _ := newTestBus()
	e := NewEngine(b)
	illegal := 0
	e.RaiseDMAIllegal = func() { illegal++ }

	ch := e.Channels[1]
	ch.SrcAddr = 0x0600_0000
	ch.DstAddr = 0x0600_1000 // same C-bus as source: invalid
	ch.XferCount = 0x10
	ch.SrcAddrInc = 4
	ch.DstAddrInc = 4
	ch.DMATrigger = TriggerImmediate

	e.WriteEnable(1, true)
	e.RunDMA(0)

	if illegal != 1 {
		t.Fatalf("DMA-illegal raised %d times, want 1", illegal)
	}
}

func TestDMAWriteBackPreservesLeftoverOffsetOnNonBBusDst(t *testing.T) {
	b, _ := newTestBus()
	e := NewEngine(b)

	ch := e.Channels[0]
	ch.SrcAddr = 0x0600_0000 // C-bus WRAM
	ch.DstAddr = 0x0200_0000 // A-bus cart, not B-bus: exercises the general case
	ch.XferCount = 5         // one full word leg plus a trailing odd byte
	ch.SrcAddrInc = 4
	ch.DstAddrInc = 4
	ch.UpdateSrc = true
	ch.UpdateDst = true
	ch.DMATrigger = TriggerImmediate

	e.WriteEnable(0, true)
	e.RunDMA(0)

	// Both cursors drained 5 bytes past their start address: the write-back
	// must preserve that trailing single-byte offset rather than rounding
	// back down to the last 4-byte-aligned word.
	if ch.SrcAddr != 0x0600_0005 {
		t.Fatalf("SrcAddr = %#x, want 0x0600_0005", ch.SrcAddr)
	}
	if ch.DstAddr != 0x0200_0005 {
		t.Fatalf("DstAddr = %#x, want 0x0200_0005", ch.DstAddr)
	}
}

func TestForceStopClearsActiveWithoutInterrupt(t *testing.T) {
	b, _ := newTestBus()
	e := NewEngine(b)
	raised := false
	e.RaiseDMAEnd = func(int) { raised = true }

	ch := e.Channels[0]
	ch.SrcAddr = 0x0600_0000
	ch.DstAddr = 0x0601_0000
	ch.XferCount = 0x1000
	ch.SrcAddrInc = 4
	ch.DstAddrInc = 4
	ch.DMATrigger = TriggerImmediate
	e.WriteEnable(0, true)

	e.ForceStop()
	if e.Channels[0].active {
		t.Fatalf("channel should be inactive after ForceStop")
	}
	if raised {
		t.Fatalf("ForceStop must not raise any interrupt")
	}
}
