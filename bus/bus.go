// Package bus implements the Saturn's address-decode routing table: the
// physical A-bus/B-bus/C-bus matrix the SCU's DMA engine and the external
// CPUs both read and write through, plus a side-effect-free mirror used by
// debug peek/poke.
package bus

// ID classifies a destination address by physical bus, used by the DMA
// engine to reject same-bus and no-bus transfers.
type ID int

const (
	None ID = iota
	ABus
	BBus
	CBus
)

// Region is an inclusive [Start, End] address range mapped to an
// accessor tuple. Any accessor left nil is treated as unimplemented for
// that width; Bus synthesizes the documented open-bus/drop behavior.
type Region struct {
	Start, End uint32
	Bus        ID
	Ctx        any

	Read8   func(ctx any, addr uint32) uint8
	Read16  func(ctx any, addr uint32) uint16
	Read32  func(ctx any, addr uint32) uint32
	Write8  func(ctx any, addr uint32, v uint8)
	Write16 func(ctx any, addr uint32, v uint16)
	Write32 func(ctx any, addr uint32, v uint32)

	// BusWait reports whether this region is currently stalled for the
	// given access. Nil means never stalled.
	BusWait func(ctx any, addr uint32, size int, isWrite bool) bool
}

// OpenBusPattern returns the documented open-bus fill value for an
// unmapped region of the given width. Real hardware returns the last value
// latched on the bus; this module uses the common simplification of all-1s.
func OpenBusPattern(size int) uint32 {
	switch size {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

// Matrix is the live (normal) or side-effect-free (peek/poke) routing table.
// Two independent Matrix values back one Bus: writes through the normal
// table have side effects (VDP register latches, DMA triggers, ...); writes
// through the side-effect-free table never do.
type Matrix struct {
	regions []*Region
	// lookup caches the region covering each 1 MiB page for O(1) decode on
	// the hot path; finer-grained B-bus regions still do a linear scan
	// within the page's region list.
	lookup [4096][]*Region // 4096 * 1MiB = 4GiB of 32-bit address space
}

// NewMatrix returns an empty routing table.
func NewMatrix() *Matrix {
	return &Matrix{}
}

// Map registers a region. Overlap is not validated; where regions overlap,
// the one registered first wins.
func (m *Matrix) Map(r *Region) {
	m.regions = append(m.regions, r)
	firstPage := r.Start >> 20
	lastPage := r.End >> 20
	for p := firstPage; p <= lastPage && p < 4096; p++ {
		m.lookup[p] = append(m.lookup[p], r)
	}
}

func (m *Matrix) find(addr uint32) *Region {
	page := (addr >> 20) & 4095
	for _, r := range m.lookup[page] {
		if addr >= r.Start && addr <= r.End {
			return r
		}
	}
	return nil
}

// Bus pairs a normal Matrix with a side-effect-free mirror Matrix and
// exposes the documented read/write/peek/poke/BusWait operations.
type Bus struct {
	Normal          *Matrix
	SideEffectFree  *Matrix
	DebugSink       func(b uint8)
	UnmappedReadLog func(addr uint32, size int)
}

// NewBus creates a Bus with empty normal and side-effect-free tables.
func NewBus() *Bus {
	return &Bus{Normal: NewMatrix(), SideEffectFree: NewMatrix()}
}

// MapNormal registers r into the live routing table.
func (b *Bus) MapNormal(r *Region) { b.Normal.Map(r) }

// MapSideEffectFree registers r into the debug peek/poke mirror.
func (b *Bus) MapSideEffectFree(r *Region) { b.SideEffectFree.Map(r) }

func (b *Bus) logUnmapped(addr uint32, size int) {
	if b.UnmappedReadLog != nil {
		b.UnmappedReadLog(addr, size)
	}
}

// Read8/Read16/Read32 decode addr against the normal table and dispatch to
// the matching accessor, synthesizing B-bus 16-bit-lane splitting for 32-bit
// reads on regions that expose only Read16, and the documented open-bus
// pattern for unmapped addresses.
func (b *Bus) Read8(addr uint32) uint8 {
	r := b.Normal.find(addr)
	if r == nil || r.Read8 == nil {
		b.logUnmapped(addr, 1)
		return uint8(OpenBusPattern(1))
	}
	return r.Read8(r.Ctx, addr)
}

func (b *Bus) Read16(addr uint32) uint16 {
	r := b.Normal.find(addr)
	if r == nil {
		b.logUnmapped(addr, 2)
		return uint16(OpenBusPattern(2))
	}
	if r.Read16 != nil {
		return r.Read16(r.Ctx, addr)
	}
	if r.Read8 != nil {
		hi := uint16(r.Read8(r.Ctx, addr))
		lo := uint16(r.Read8(r.Ctx, addr+1))
		return hi<<8 | lo
	}
	b.logUnmapped(addr, 2)
	return uint16(OpenBusPattern(2))
}

func (b *Bus) Read32(addr uint32) uint32 {
	r := b.Normal.find(addr)
	if r == nil {
		b.logUnmapped(addr, 4)
		return OpenBusPattern(4)
	}
	if r.Read32 != nil {
		return r.Read32(r.Ctx, addr)
	}
	if r.Read16 != nil {
		// B-bus ports with only 16-bit lanes: split into two 16-bit reads
		// in high/low order.
		hi := uint32(r.Read16(r.Ctx, addr))
		lo := uint32(r.Read16(r.Ctx, addr+2))
		return hi<<16 | lo
	}
	b.logUnmapped(addr, 4)
	return OpenBusPattern(4)
}

func (b *Bus) Write8(addr uint32, v uint8) {
	r := b.Normal.find(addr)
	if r == nil || r.Write8 == nil {
		return // dropped: no region mapped, or the region doesn't implement this width
	}
	r.Write8(r.Ctx, addr, v)
}

func (b *Bus) Write16(addr uint32, v uint16) {
	r := b.Normal.find(addr)
	if r == nil {
		return
	}
	if r.Write16 != nil {
		r.Write16(r.Ctx, addr, v)
		return
	}
	if r.Write8 != nil {
		r.Write8(r.Ctx, addr, uint8(v>>8))
		r.Write8(r.Ctx, addr+1, uint8(v))
	}
}

func (b *Bus) Write32(addr uint32, v uint32) {
	r := b.Normal.find(addr)
	if r == nil {
		return
	}
	if r.Write32 != nil {
		r.Write32(r.Ctx, addr, v)
		return
	}
	if r.Write16 != nil {
		r.Write16(r.Ctx, addr, uint16(v>>16))
		r.Write16(r.Ctx, addr+2, uint16(v))
		return
	}
	if r.Write8 != nil {
		r.Write8(r.Ctx, addr, uint8(v>>24))
		r.Write8(r.Ctx, addr+1, uint8(v>>16))
		r.Write8(r.Ctx, addr+2, uint8(v>>8))
		r.Write8(r.Ctx, addr+3, uint8(v))
	}
}

// Peek8/Peek16/Peek32 are side-effect-free reads through the debug mirror
// table. Regions that are side-effect-free by construction (CRAM, VRAM) are
// registered identically in both tables, so Peek and Read agree.
func (b *Bus) Peek8(addr uint32) uint8 {
	r := b.SideEffectFree.find(addr)
	if r == nil || r.Read8 == nil {
		return uint8(OpenBusPattern(1))
	}
	return r.Read8(r.Ctx, addr)
}

func (b *Bus) Peek16(addr uint32) uint16 {
	r := b.SideEffectFree.find(addr)
	if r == nil || r.Read16 == nil {
		return uint16(OpenBusPattern(2))
	}
	return r.Read16(r.Ctx, addr)
}

func (b *Bus) Peek32(addr uint32) uint32 {
	r := b.SideEffectFree.find(addr)
	if r == nil || r.Read32 == nil {
		return OpenBusPattern(4)
	}
	return r.Read32(r.Ctx, addr)
}

// Poke8/Poke16/Poke32 are side-effect-free writes through the debug mirror.
func (b *Bus) Poke8(addr uint32, v uint8) {
	if r := b.SideEffectFree.find(addr); r != nil && r.Write8 != nil {
		r.Write8(r.Ctx, addr, v)
	}
}

func (b *Bus) Poke16(addr uint32, v uint16) {
	if r := b.SideEffectFree.find(addr); r != nil && r.Write16 != nil {
		r.Write16(r.Ctx, addr, v)
	}
}

func (b *Bus) Poke32(addr uint32, v uint32) {
	if r := b.SideEffectFree.find(addr); r != nil && r.Write32 != nil {
		r.Write32(r.Ctx, addr, v)
	}
}

// IsBusWait reports whether the target region is currently stalled for the
// given access. Consumers (the DMA engine, the CPU glue) must not poll in a
// tight loop on this; they must suspend and let the scheduler advance.
func (b *Bus) IsBusWait(addr uint32, size int, isWrite bool) bool {
	r := b.Normal.find(addr)
	if r == nil || r.BusWait == nil {
		return false
	}
	return r.BusWait(r.Ctx, addr, size, isWrite)
}

// BusID classifies addr by physical bus, per the region map below. This
// mirrors the SCU's own address classification used to validate DMA
// transfers: A-bus cartridge/CD, B-bus VDP/SCSP, C-bus WRAM.
func BusID(addr uint32) ID {
	switch {
	case addr >= 0x0200_0000 && addr <= 0x04FF_FFFF: // A-bus CS0/CS1 cartridge
		return ABus
	case addr >= 0x0580_0000 && addr <= 0x058F_FFFF: // A-bus CS2 CD block
		return ABus
	case addr >= 0x05A0_0000 && addr <= 0x05FB_FFFF: // B-bus VDP1/VDP2/SCSP
		return BBus
	case addr >= 0x0600_0000 && addr <= 0x07FF_FFFF: // C-bus work RAM
		return CBus
	default:
		return None
	}
}
