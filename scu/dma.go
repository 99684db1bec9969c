package scu

import (
	"encoding/binary"

	"github.com/user-none/satcore/bus"
)

// Trigger selects what starts a DMA channel's transfer.
type Trigger int

const (
	TriggerVBlankIN Trigger = iota
	TriggerVBlankOUT
	TriggerHBlankIN
	TriggerTimer0
	TriggerTimer1
	TriggerSoundRequest
	TriggerSpriteDrawEnd
	TriggerImmediate
)

// maxCount is the channel's max transfer count, used when a configured
// count of 0 means "maximum".
func maxCount(level int) uint32 {
	if level == 0 {
		return 0x10_0000
	}
	return 0x1000
}

// indirectEntrySize is the size in bytes of one indirect-mode chain entry:
// (count, dest, source), 4 bytes each.
const indirectEntrySize = 12

// transferState is the runtime read-ahead/byte-cursor state for an
// in-progress transfer.
type transferState struct {
	started         bool
	buf             uint32
	bufPos          uint32 // bytes consumed from buf, 0..8 transiently
	currSrcAddr     uint32
	currSrcAddrInc  uint32
	currDstAddr     uint32
	currDstOffset   uint32
	currDstAddrInc  uint32
	currXferCount   uint32
	initialDstAlign uint32 // currDstAddr & 1 at transfer start, B-bus only
	xferLength      uint32 // original xfer count for this leg, for B-bus quirks
}

// Channel is one of the SCU's three DMA channels.
type Channel struct {
	Level int // 0, 1, or 2; 0 is highest priority

	// Configured state.
	SrcAddr      uint32
	DstAddr      uint32
	XferCount    uint32
	SrcAddrInc   uint32
	DstAddrInc   uint32
	Indirect     bool
	UpdateSrc    bool
	UpdateDst    bool
	DMATrigger   Trigger
	Enabled      bool

	// Runtime state.
	active       bool
	start        bool
	indirectPtr  uint32
	endIndirect  bool
	intrDelay    uint64
	xfer         transferState
}

// Engine runs the three-channel priority-ordered DMA system.
type Engine struct {
	Channels [3]*Channel
	Bus      *bus.Bus

	// RaiseDMAEnd(level) notifies the interrupt controller that the given
	// channel's transfer completed. RaiseDMAIllegal notifies it of an
	// illegal same-bus/no-bus transfer.
	RaiseDMAEnd     func(level int)
	RaiseDMAIllegal func()
}

// NewEngine returns an Engine with three configured-but-disabled channels.
func NewEngine(b *bus.Bus) *Engine {
	e := &Engine{Bus: b}
	for i := range e.Channels {
		e.Channels[i] = &Channel{Level: i}
	}
	return e
}

// activeLevel returns the level of the currently active (running) channel,
// or -1 if none is active.
func (e *Engine) activeLevel() int {
	for i, ch := range e.Channels {
		if ch.active {
			return i
		}
	}
	return -1
}

// WriteEnable handles a write to a channel's enable register. Setting the
// enable bit with trigger==Immediate starts the transfer immediately; other
// triggers wait for TriggerDMATransfer.
func (e *Engine) WriteEnable(level int, enabled bool) {
	ch := e.Channels[level]
	ch.Enabled = enabled
	if enabled && ch.DMATrigger == TriggerImmediate {
		ch.start = true
		e.tryStart(ch)
	}
}

// TriggerDMATransfer is called by VDP/SCSP callbacks on blanking edges,
// sound requests, etc. It sets start=true on every enabled channel whose
// trigger matches kind, then attempts to start the highest-priority one
// that isn't already running.
func (e *Engine) TriggerDMATransfer(kind Trigger) {
	for _, ch := range e.Channels {
		if ch.Enabled && ch.DMATrigger == kind {
			ch.start = true
		}
	}
	for _, ch := range e.Channels {
		if ch.start {
			e.tryStart(ch)
		}
	}
}

// tryStart begins ch's transfer if no channel is currently active. A
// trigger arriving while any channel is active, higher-priority or not,
// stays latched in start and runs once the current transfer completes
// (checked again from completeChannel, in priority order 0 > 1 > 2).
func (e *Engine) tryStart(ch *Channel) {
	// At most one channel runs at a time. If any channel — higher or lower
	// priority — is already active, ch's trigger stays latched in start and is
	// picked up by completeChannel once the current transfer finishes and
	// RunDMA re-scans priority order.
	if e.activeLevel() >= 0 {
		return
	}
	ch.start = false
	ch.active = true
	e.startTransfer(ch)
}

func (e *Engine) startTransfer(ch *Channel) {
	if !ch.Indirect {
		ch.xfer = transferState{
			started:        true,
			currSrcAddr:    ch.SrcAddr & 0x7FF_FFFF,
			currSrcAddrInc: ch.SrcAddrInc,
			currDstAddr:    ch.DstAddr & 0x7FF_FFFF,
			currDstAddrInc: ch.DstAddrInc,
			currXferCount:  normalizeCount(ch.XferCount, ch.Level),
		}
		e.armLeg(ch)
		return
	}

	ch.indirectPtr = ch.DstAddr & 0x7FF_FFFF
	ch.endIndirect = false
	e.readIndirectEntry(ch)
}

// readIndirectEntry fetches the next 12-byte indirect chain entry and arms
// the transfer leg for it.
func (e *Engine) readIndirectEntry(ch *Channel) {
	count := e.Bus.Read32(ch.indirectPtr)
	dest := e.Bus.Read32(ch.indirectPtr + 4)
	source := e.Bus.Read32(ch.indirectPtr + 8)

	ch.endIndirect = source&0x8000_0000 != 0
	srcAddr := source & 0x7FF_FFFF

	ch.xfer = transferState{
		started:        true,
		currSrcAddr:    srcAddr,
		currSrcAddrInc: ch.SrcAddrInc,
		currDstAddr:    dest & 0x7FF_FFFF,
		currDstAddrInc: ch.DstAddrInc,
		currXferCount:  normalizeCount(count, ch.Level),
	}
	ch.indirectPtr += indirectEntrySize
	e.armLeg(ch)
}

func normalizeCount(count uint32, level int) uint32 {
	if count == 0 {
		return maxCount(level)
	}
	return count
}

func (e *Engine) armLeg(ch *Channel) {
	ch.xfer.currDstOffset = 0
	ch.xfer.initialDstAlign = ch.xfer.currDstAddr & 1
	ch.xfer.xferLength = ch.xfer.currXferCount
}

// ForceStop clears active on every channel without raising any interrupt.
func (e *Engine) ForceStop() {
	for _, ch := range e.Channels {
		ch.active = false
	}
}

// RunDMA advances the DMA-end interrupt delay counters by cycles, then runs
// transfer legs of the active channel, and of any latched channel started as
// one completes, until no channel is active or a leg stalls.
func (e *Engine) RunDMA(cycles uint64) {
	for _, ch := range e.Channels {
		if ch.intrDelay == 0 {
			continue
		}
		if ch.intrDelay > cycles {
			ch.intrDelay -= cycles
		} else {
			ch.intrDelay = 0
			if e.RaiseDMAEnd != nil {
				e.RaiseDMAEnd(ch.Level)
			}
		}
	}

	for {
		level := e.activeLevel()
		if level < 0 {
			return
		}
		if !e.runChannelLeg(e.Channels[level]) {
			return // suspended on a bus stall
		}
	}
}

// runChannelLeg advances one active channel by one "leg" worth of work: it
// classifies src/dst buses, rejects illegal transfers, and otherwise drains
// the channel's current-leg byte count via the 4-byte read-ahead buffer,
// reproducing the documented B-bus quirks bit-for-bit. Returns false if the
// transfer suspended on a bus stall (the caller must retry on the next
// scheduler tick) or true if it made progress (completed the leg, moved to
// the next indirect entry, or fully completed).
func (e *Engine) runChannelLeg(ch *Channel) bool {
	xfer := &ch.xfer

	srcBusID := bus.BusID(ch.xfer.currSrcAddr)
	dstBusID := bus.BusID(ch.xfer.currDstAddr)

	if srcBusID == dstBusID || srcBusID == bus.None || dstBusID == bus.None {
		if ch.Indirect && !ch.endIndirect {
			e.readIndirectEntry(ch)
			return true
		}
		ch.active = false
		if e.RaiseDMAIllegal != nil {
			e.RaiseDMAIllegal()
		}
		return true
	}

	checkStall := func(addr uint32, size int, write bool) bool {
		return e.Bus.IsBusWait(addr, size, write)
	}
	checkReadStall := func(size uint32) bool {
		return xfer.bufPos+size > 4 && checkStall(xfer.currSrcAddr&^3, 4, false)
	}

	ensureBuf := func() bool {
		if xfer.started {
			if checkReadStall(4) {
				return false
			}
			xfer.started = false
			xfer.buf = e.Bus.Read32(xfer.currSrcAddr &^ 3)
		}
		return true
	}
	if !ensureBuf() {
		return false
	}

	doRead := func(size uint32) uint32 {
		xfer.bufPos += size
		if xfer.bufPos <= 4 {
			return xfer.buf >> ((^(xfer.bufPos - 1) & 3) * 8)
		}
		prevBuf := xfer.buf
		xfer.bufPos -= 4
		xfer.currSrcAddr += xfer.currSrcAddrInc
		xfer.currSrcAddr &= 0x7FF_FFFF
		xfer.buf = e.Bus.Read32(xfer.currSrcAddr &^ 3)
		value := xfer.buf >> ((^(xfer.bufPos - 1) & 3) * 8)
		if xfer.bufPos < 4 {
			value |= prevBuf << (xfer.bufPos * 8)
		}
		return value
	}
	read8 := func() uint8 { return uint8(doRead(1)) }
	read16 := func() uint16 { return uint16(doRead(2)) }
	read32 := func() uint32 { return doRead(4) }

	incDst := func() {
		if xfer.currDstOffset >= 4 {
			xfer.currDstOffset -= 4
			xfer.currDstAddr += xfer.currDstAddrInc
			xfer.currDstAddr &= 0x7FF_FFFF
		}
	}

	if dstBusID != bus.BBus {
		xfer.currDstAddr &^= 3

		if xfer.currXferCount >= 1 && xfer.currDstOffset&1 != 0 {
			addr := xfer.currDstAddr + xfer.currDstOffset
			if checkReadStall(1) || checkStall(addr, 1, true) {
				return false
			}
			e.Bus.Write8(addr, read8())
			xfer.currDstOffset++
			xfer.currXferCount--
		}

		if xfer.currXferCount >= 2 && xfer.currDstOffset&2 != 0 {
			incDst()
			addr := (xfer.currDstAddr + xfer.currDstOffset) &^ 1
			if checkReadStall(2) || checkStall(addr, 2, true) {
				return false
			}
			e.Bus.Write16(addr, read16())
			xfer.currDstOffset += 2
			xfer.currXferCount -= 2
		}

		for xfer.currXferCount >= 4 {
			incDst()
			addr := (xfer.currDstAddr + xfer.currDstOffset) &^ 3
			if checkReadStall(4) || checkStall(addr, 4, true) {
				return false
			}
			e.Bus.Write32(addr, read32())
			xfer.currDstOffset += 4
			xfer.currXferCount -= 4
		}

		if xfer.currXferCount&2 != 0 {
			incDst()
			addr := (xfer.currDstAddr + xfer.currDstOffset) &^ 1
			if checkReadStall(2) || checkStall(addr, 2, true) {
				return false
			}
			e.Bus.Write16(addr, read16())
			xfer.currDstOffset += 2
			xfer.currXferCount -= 2
		}

		if xfer.currXferCount&1 != 0 {
			incDst()
			addr := xfer.currDstAddr + xfer.currDstOffset
			if checkReadStall(1) || checkStall(addr, 1, true) {
				return false
			}
			e.Bus.Write8(addr, read8())
			xfer.currDstOffset++
			xfer.currXferCount--
		}
	} else {
		// B-bus is 16-bit; every quirk below matches the real hardware's
		// SCU DMA sequencer bit-for-bit.
		xfer.currDstAddr &^= 1

		if xfer.currXferCount >= 1 && xfer.currDstOffset&1 != 0 {
			addr := xfer.currDstAddr | xfer.currDstOffset
			if checkReadStall(1) || checkStall(addr, 1, true) {
				return false
			}
			e.Bus.Write8(addr, read8())
			xfer.currDstOffset++
			xfer.currXferCount--

			if xfer.xferLength > 1 && xfer.currDstAddrInc >= 4 && xfer.currDstOffset >= 4 {
				xfer.currDstAddr += xfer.currDstAddrInc
				xfer.currDstAddr &= 0x7FF_FFFF
			}
		}

		if xfer.currXferCount >= 2 && xfer.currDstOffset&2 != 0 {
			incDst()
			addr := (xfer.currDstAddr | xfer.currDstOffset) &^ 1
			if xfer.currDstAddrInc >= 4 && xfer.initialDstAlign == 1 && xfer.currDstOffset+2 >= 4 {
				addr += xfer.currDstAddrInc
			}
			if checkReadStall(2) || checkStall(addr, 2, true) {
				return false
			}
			e.Bus.Write16(addr, read16())
			xfer.currDstOffset += 2
			xfer.currXferCount -= 2

			if xfer.xferLength > 3 && xfer.initialDstAlign == 1 && xfer.currDstOffset >= 4 {
				xfer.currDstAddr += xfer.currDstAddrInc
				xfer.currDstAddr &= 0x7FF_FFFF
			}
		}

		for xfer.currXferCount >= 4 {
			incDst()
			addr1 := (xfer.currDstAddr | xfer.currDstOffset) &^ 1
			addr2 := (((xfer.currDstAddr + xfer.currDstAddrInc) & 0x7FF_FFFF) | xfer.currDstOffset) &^ 1

			if checkReadStall(4) || checkStall(addr1, 2, true) || checkStall(addr2, 2, true) {
				return false
			}
			e.Bus.Write16(addr1, read16())
			e.Bus.Write16(addr2, read16())

			xfer.currDstAddr += xfer.currDstAddrInc
			xfer.currDstAddr &= 0x7FF_FFFF
			xfer.currDstOffset += 4
			xfer.currXferCount -= 4

			if xfer.currXferCount == 0 {
				// Rewind by one dst_inc so a subsequent chained transfer
				// reuses the prior address.
				xfer.currDstAddr -= xfer.currDstAddrInc
				xfer.currDstAddr &= 0x7FF_FFFF
			}
		}

		if xfer.currXferCount&2 != 0 {
			incDst()
			addr := (xfer.currDstAddr | xfer.currDstOffset) &^ 1
			if checkReadStall(2) || checkStall(addr, 2, true) {
				return false
			}
			e.Bus.Write16(addr, read16())
			xfer.currDstOffset += 2
			xfer.currXferCount -= 2
		}

		if xfer.currXferCount&1 != 0 {
			incDst()
			addr := xfer.currDstAddr | xfer.currDstOffset
			if xfer.currDstAddrInc >= 4 && xfer.currDstOffset&2 != 0 {
				addr += xfer.currDstAddrInc
			}
			if checkReadStall(1) || checkStall(addr, 1, true) {
				return false
			}
			e.Bus.Write8(addr, read8())
			xfer.currDstOffset++
			xfer.currXferCount--
		}
	}

	// Leg fully drained.
	if ch.Indirect && !ch.endIndirect {
		e.readIndirectEntry(ch)
		return true
	}

	e.completeChannel(ch)
	return true
}

// completeChannel finalizes a channel once its transfer (or final indirect
// chain entry) has fully drained.
func (e *Engine) completeChannel(ch *Channel) {
	ch.active = false

	if ch.UpdateSrc {
		// currSrcAddr was left 4-byte-rounded by the read-ahead buffer's
		// refill step; bufPos (0..4, bytes already consumed from that
		// refill) restores the exact byte position the source cursor was
		// at when the leg finished draining.
		ch.SrcAddr = (ch.xfer.currSrcAddr &^ 3) + ch.xfer.bufPos
	}
	if ch.UpdateDst {
		switch {
		case ch.Indirect:
			ch.DstAddr = ch.indirectPtr
		case bus.BusID(ch.xfer.currDstAddr) == bus.BBus:
			// B-bus keeps its working cursor split into a 4-byte-rounded
			// base plus a sub-word offset; writing back the raw sum would
			// lose the offset's low bits across a save/resume boundary.
			ch.DstAddr = ((ch.xfer.currDstAddr &^ 3) | (ch.xfer.currDstOffset & 3)) + (ch.xfer.currDstOffset &^ 3)
		default:
			ch.DstAddr = (ch.xfer.currDstAddr &^ 3) + ch.xfer.currDstOffset
		}
	}

	if ch.DMATrigger == TriggerImmediate {
		delay := uint64(33)
		if bus.BusID(ch.xfer.currDstAddr) == bus.BBus {
			delay = 1
		}
		delay += minU64(uint64(ch.xfer.xferLength)>>4, 32)
		ch.intrDelay = delay
	} else if e.RaiseDMAEnd != nil {
		e.RaiseDMAEnd(ch.Level)
	}

	e.startNextLatched()
}

// startNextLatched scans channels in priority order (0 > 1 > 2) for one
// whose trigger is latched in start and begins it, implementing "higher-
// priority triggers while a lower channel is active are latched into start
// and run on completion of the current transfer".
func (e *Engine) startNextLatched() {
	for _, ch := range e.Channels {
		if ch.start {
			e.tryStart(ch)
			return
		}
	}
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// channelStateSize is the per-channel save-state byte size: the configured
// register set plus the runtime transfer-in-progress state, laid out as an
// offset-threaded sequence of binary.LittleEndian fields.
const channelStateSize = 16*4 + 8 /*bools*/ + 1 /*trigger*/ + 8 /*intrDelay*/

func putBool(data []byte, offset int, v bool) int {
	if v {
		data[offset] = 1
	} else {
		data[offset] = 0
	}
	return offset + 1
}

func getBool(data []byte, offset int) (bool, int) {
	return data[offset] != 0, offset + 1
}

func putU32(data []byte, offset int, v uint32) int {
	binary.LittleEndian.PutUint32(data[offset:], v)
	return offset + 4
}

func getU32(data []byte, offset int) (uint32, int) {
	return binary.LittleEndian.Uint32(data[offset:]), offset + 4
}

func putU16(data []byte, offset int, v uint16) int {
	binary.LittleEndian.PutUint16(data[offset:], v)
	return offset + 2
}

func getU16(data []byte, offset int) (uint16, int) {
	return binary.LittleEndian.Uint16(data[offset:]), offset + 2
}

func putU64(data []byte, offset int, v uint64) int {
	binary.LittleEndian.PutUint64(data[offset:], v)
	return offset + 8
}

func getU64(data []byte, offset int) (uint64, int) {
	return binary.LittleEndian.Uint64(data[offset:]), offset + 8
}

func (ch *Channel) serialize(data []byte, offset int) int {
	offset = putU32(data, offset, ch.SrcAddr)
	offset = putU32(data, offset, ch.DstAddr)
	offset = putU32(data, offset, ch.XferCount)
	offset = putU32(data, offset, ch.SrcAddrInc)
	offset = putU32(data, offset, ch.DstAddrInc)
	offset = putBool(data, offset, ch.Indirect)
	offset = putBool(data, offset, ch.UpdateSrc)
	offset = putBool(data, offset, ch.UpdateDst)
	data[offset] = uint8(ch.DMATrigger)
	offset++
	offset = putBool(data, offset, ch.Enabled)
	offset = putBool(data, offset, ch.active)
	offset = putBool(data, offset, ch.start)
	offset = putU32(data, offset, ch.indirectPtr)
	offset = putBool(data, offset, ch.endIndirect)
	offset = putU64(data, offset, ch.intrDelay)
	offset = putU32(data, offset, ch.xfer.buf)
	offset = putU32(data, offset, ch.xfer.bufPos)
	offset = putU32(data, offset, ch.xfer.currSrcAddr)
	offset = putU32(data, offset, ch.xfer.currSrcAddrInc)
	offset = putU32(data, offset, ch.xfer.currDstAddr)
	offset = putU32(data, offset, ch.xfer.currDstOffset)
	offset = putU32(data, offset, ch.xfer.currDstAddrInc)
	offset = putU32(data, offset, ch.xfer.currXferCount)
	offset = putU32(data, offset, ch.xfer.initialDstAlign)
	offset = putU32(data, offset, ch.xfer.xferLength)
	offset = putBool(data, offset, ch.xfer.started)
	return offset
}

func (ch *Channel) deserialize(data []byte, offset int) int {
	ch.SrcAddr, offset = getU32(data, offset)
	ch.DstAddr, offset = getU32(data, offset)
	ch.XferCount, offset = getU32(data, offset)
	ch.SrcAddrInc, offset = getU32(data, offset)
	ch.DstAddrInc, offset = getU32(data, offset)
	ch.Indirect, offset = getBool(data, offset)
	ch.UpdateSrc, offset = getBool(data, offset)
	ch.UpdateDst, offset = getBool(data, offset)
	ch.DMATrigger = Trigger(data[offset])
	offset++
	ch.Enabled, offset = getBool(data, offset)
	ch.active, offset = getBool(data, offset)
	ch.start, offset = getBool(data, offset)
	ch.indirectPtr, offset = getU32(data, offset)
	ch.endIndirect, offset = getBool(data, offset)
	ch.intrDelay, offset = getU64(data, offset)
	ch.xfer.buf, offset = getU32(data, offset)
	ch.xfer.bufPos, offset = getU32(data, offset)
	ch.xfer.currSrcAddr, offset = getU32(data, offset)
	ch.xfer.currSrcAddrInc, offset = getU32(data, offset)
	ch.xfer.currDstAddr, offset = getU32(data, offset)
	ch.xfer.currDstOffset, offset = getU32(data, offset)
	ch.xfer.currDstAddrInc, offset = getU32(data, offset)
	ch.xfer.currXferCount, offset = getU32(data, offset)
	ch.xfer.initialDstAlign, offset = getU32(data, offset)
	ch.xfer.xferLength, offset = getU32(data, offset)
	ch.xfer.started, offset = getBool(data, offset)
	return offset
}

// SerializeSize returns the save-state byte size for all three DMA
// channels.
func (e *Engine) SerializeSize() int { return channelStateSize * 3 }

// Serialize writes all three channels' configured and runtime state into
// data at offset, returning the new offset.
func (e *Engine) Serialize(data []byte, offset int) int {
	for _, ch := range e.Channels {
		offset = ch.serialize(data, offset)
	}
	return offset
}

// Deserialize restores all three channels' state from data at offset.
func (e *Engine) Deserialize(data []byte, offset int) int {
	for _, ch := range e.Channels {
		offset = ch.deserialize(data, offset)
	}
	return offset
}
