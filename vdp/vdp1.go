package vdp

// VDP1 VRAM and framebuffer sizing.
const (
	VDP1VRAMSize = 0x8_0000 // 512 KiB
	FBWidth      = 512
	FBHeight     = 256
	fbWords      = FBWidth * FBHeight
)

// CommandKind enumerates the VDP1 draw-list opcodes.
type CommandKind uint8

const (
	CmdNormalSprite CommandKind = iota
	CmdScaledSprite
	CmdDistortedSprite
	CmdPolygon
	CmdPolylines
	CmdLine
	CmdSetSystemClipping
	CmdSetUserClipping
	CmdSetLocalCoordinates
	CmdJump
	CmdCall
	CmdReturn
	CmdSkip
	CmdEnd
)

// Draw-mode bits decoded from a command's mode word. These are independent
// flags, not mutually exclusive states; Mode holds the raw OR of whichever
// apply.
const (
	ModeShadow DrawMode = 1 << iota
	ModeHalfLuminance
	ModeHalfTransparent
	ModeGouraud
	ModeMesh
	ModeHighSpeedShrink
)

type DrawMode uint16

// EndCode is the reserved texel value that terminates a textured primitive's
// scan row.
const EndCode = 0x8000

// Point is a vertex in VDP1's local (pre-clip) coordinate space.
type Point struct{ X, Y int16 }

// Rect is an inclusive pixel rectangle used for clipping and erase regions.
type Rect struct{ X0, Y0, X1, Y1 int16 }

func (r Rect) contains(p Point) bool {
	return p.X >= r.X0 && p.X <= r.X1 && p.Y >= r.Y0 && p.Y <= r.Y1
}

// command is one decoded 32-byte VRAM entry. The field layout here is a
// simplified, software-only representation of the documented command kinds;
// it is not a bit-exact hardware register decode.
type command struct {
	kind        CommandKind
	mode        DrawMode
	color       uint16
	verts       [4]Point
	charAddr    uint32
	charW       int
	charH       int
	next        uint32
	gouraudAddr uint32 // VRAM word offset of the 4 per-vertex Gouraud colors
}

// VDP1 processes the sprite/polygon command list into the draw framebuffer.
type VDP1 struct {
	VRAM [VDP1VRAMSize]byte
	FB   [2][fbWords]uint16

	drawFB int
	dispFB int

	SystemClip Rect
	UserClip   Rect
	Local      Point

	EraseWriteValue uint16
	EraseRect       Rect
	ManualErase     bool
	SwapRequested   bool

	// TransparentMeshes, when enabled, routes mesh-mode pixels to MeshFB
	// instead of a real checkerboard discard (enhancement, ).
	TransparentMeshes bool
	MeshFB            [fbWords]uint16

	pc          uint32
	returnStack []uint32
	halted      bool

	CyclesSpent      uint64
	CycleBudget      uint64
	VRAMWritePenalty uint64 // tunable external-VRAM-write cost

	// OnFrameComplete is invoked when the command list hits End.
	OnFrameComplete func()
	// OnDMATrigger requests the SCU raise its sprite-draw-end DMA trigger.
	OnDMATrigger func()
}

// NewVDP1 returns a VDP1 with the documented default per-write penalty.
func NewVDP1() *VDP1 {
	return &VDP1{VRAMWritePenalty: 22}
}

// BeginFrame resets the command-list program counter to VRAM offset 0 and
// clears the halted flag so RunFrame will process commands again.
func (v *VDP1) BeginFrame(budget uint64) {
	v.pc = 0
	v.returnStack = v.returnStack[:0]
	v.halted = false
	v.CyclesSpent = 0
	v.CycleBudget = budget
}

// RunFrame executes commands until the cycle budget is exhausted or an End
// opcode is reached.
func (v *VDP1) RunFrame() {
	for !v.halted && v.CyclesSpent < v.CycleBudget {
		v.step()
	}
}

func (v *VDP1) readWord(addr uint32) uint16 {
	addr &= VDP1VRAMSize - 1
	return uint16(v.VRAM[addr])<<8 | uint16(v.VRAM[addr+1])
}

func (v *VDP1) decode(addr uint32) command {
	w := func(i uint32) uint16 { return v.readWord(addr + i*2) }
	var c command
	c.kind = CommandKind(w(0) & 0xFF)
	c.mode = DrawMode(w(1))
	c.color = w(2)
	for i := 0; i < 4; i++ {
		c.verts[i] = Point{X: int16(w(uint32(3 + 2*i))), Y: int16(w(uint32(4 + 2*i)))}
	}
	c.charAddr = uint32(w(11)) * 8
	c.charW = int(w(12) >> 8)
	c.charH = int(w(12) & 0xFF)
	c.next = uint32(w(13)) * 8
	c.gouraudAddr = uint32(w(14)) * 8
	return c
}

func (v *VDP1) step() {
	c := v.decode(v.pc)
	v.CyclesSpent += 8 // base decode cost, independent of draw extent

	switch c.kind {
	case CmdEnd:
		v.halted = true
		if v.OnFrameComplete != nil {
			v.OnFrameComplete()
		}
		if v.OnDMATrigger != nil {
			v.OnDMATrigger()
		}
		return
	case CmdSkip:
		v.pc = c.next
		return
	case CmdJump:
		v.pc = c.next
		return
	case CmdCall:
		v.returnStack = append(v.returnStack, v.pc+32)
		v.pc = c.next
		return
	case CmdReturn:
		if n := len(v.returnStack); n > 0 {
			v.pc = v.returnStack[n-1]
			v.returnStack = v.returnStack[:n-1]
		} else {
			v.halted = true
		}
		return
	case CmdSetSystemClipping:
		v.SystemClip = Rect{X1: c.verts[0].X, Y1: c.verts[0].Y}
		v.pc += 32
		return
	case CmdSetUserClipping:
		v.UserClip = Rect{c.verts[0].X, c.verts[0].Y, c.verts[1].X, c.verts[1].Y}
		v.pc += 32
		return
	case CmdSetLocalCoordinates:
		v.Local = c.verts[0]
		v.pc += 32
		return
	}

	v.drawCommand(c)
	v.pc += 32
}

// drawCommand applies the local-coordinate offset, tests against the system
// clip rectangle, and rasterizes the primitive into the draw framebuffer
// . Distorted/scaled quads and true textured DDA stepping are approximated
// by a bounding-box fill driven by the same end-code, draw-mode and cycle-
// accounting rules real primitives use.
func (v *VDP1) drawCommand(c command) {
	for i := range c.verts {
		c.verts[i].X += v.Local.X
		c.verts[i].Y += v.Local.Y
	}

	switch c.kind {
	case CmdLine:
		v.drawLine(c.verts[0], c.verts[1], c)
	case CmdPolylines:
		for i := 0; i < 3; i++ {
			v.drawLine(c.verts[i], c.verts[i+1], c)
		}
		v.drawLine(c.verts[3], c.verts[0], c)
	default: // sprites and polygons: axis-aligned bounding-box fill
		minX, minY, maxX, maxY := boundingBox(c.verts)
		if !v.clipRectVisible(minX, minY, maxX, maxY) {
			return
		}
		v.fillRect(minX, minY, maxX, maxY, c)
	}
}

func boundingBox(verts [4]Point) (minX, minY, maxX, maxY int16) {
	minX, minY = verts[0].X, verts[0].Y
	maxX, maxY = verts[0].X, verts[0].Y
	for _, p := range verts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return
}

func (v *VDP1) clipRectVisible(minX, minY, maxX, maxY int16) bool {
	clip := v.SystemClip
	return !(maxX < clip.X0 || minX > clip.X1 || maxY < clip.Y0 || minY > clip.Y1)
}

// fillRect writes c's color (Gouraud-interpolated across the four vertices
// when ModeGouraud is set) across the clipped bounding box, honoring
// end-code, mesh, and high-speed-shrink draw modes.
func (v *VDP1) fillRect(minX, minY, maxX, maxY int16, c command) {
	clip := v.SystemClip
	if minX < clip.X0 {
		minX = clip.X0
	}
	if maxX > clip.X1 {
		maxX = clip.X1
	}
	if minY < clip.Y0 {
		minY = clip.Y0
	}
	if maxY > clip.Y1 {
		maxY = clip.Y1
	}

	col := c.color
	if col == EndCode {
		return // a fully end-code-filled primitive draws nothing
	}

	mesh := c.mode&ModeMesh != 0
	shrink := c.mode&ModeHighSpeedShrink != 0
	var gouraud [4]uint16
	if c.mode&ModeGouraud != 0 {
		gouraud = v.gouraudColors(c.gouraudAddr)
	}
	for y := minY; y <= maxY; y++ {
		if shrink && (int(y)-int(minY))%2 == 1 {
			continue // high-speed shrink halves vertical texel density
		}
		rowEndCodes := 0
		for x := minX; x <= maxX; x++ {
			if shrink && (int(x)-int(minX))%2 == 1 {
				continue // and horizontal texel density
			}
			if mesh && (int(x)+int(y))%2 == 0 {
				if v.TransparentMeshes {
					v.writePixel(v.MeshFB[:], x, y, col)
				}
				continue
			}
			if col == EndCode {
				rowEndCodes++
				if rowEndCodes >= 2 {
					break // two consecutive end codes terminate the row
				}
				continue
			}
			rowEndCodes = 0
			px := col
			if c.mode&ModeGouraud != 0 {
				px = gouraudPixel(gouraud, x, y, minX, minY, maxX, maxY)
			}
			existing := v.framebufferPixel(x, y)
			out := v.shade(px, c.mode, existing)
			v.writePixel(v.FB[v.drawFB][:], x, y, out)
			v.CyclesSpent += v.VRAMWritePenalty
		}
	}
}

// shade applies the independent draw-mode transforms on top of col: at most
// one of half-luminance/shadow replaces the color outright, then
// half-transparent blends the result 50/50 with the framebuffer's current
// content at the write position.
func (v *VDP1) shade(col uint16, mode DrawMode, existing uint16) uint16 {
	switch {
	case mode&ModeHalfLuminance != 0:
		r := (col >> 10) & 0x1F / 2
		g := (col >> 5) & 0x1F / 2
		b := col & 0x1F / 2
		col = r<<10 | g<<5 | b
	case mode&ModeShadow != 0:
		col = col &^ 0x8000
	}
	if mode&ModeHalfTransparent != 0 {
		col = blendHalf(col, existing)
	}
	return col
}

// gouraudColors reads the 4 per-vertex RGB555 colors of a Gouraud table
// starting at addr, ordered the same as command.verts (A, B, C, D).
func (v *VDP1) gouraudColors(addr uint32) [4]uint16 {
	var c [4]uint16
	for i := range c {
		c[i] = v.readWord(addr + uint32(i)*2)
	}
	return c
}

// gouraudPixel bilinearly interpolates the four corner colors across the
// bounding box at (x, y), the linear-interpolating DDA the documented
// Gouraud stepper performs along a scan line, generalized across both axes.
func gouraudPixel(c [4]uint16, x, y, minX, minY, maxX, maxY int16) uint16 {
	xNum, xDen := int(x-minX), int(maxX-minX)
	yNum, yDen := int(y-minY), int(maxY-minY)
	top := lerpColor(c[0], c[1], xNum, xDen)
	bottom := lerpColor(c[3], c[2], xNum, xDen)
	return lerpColor(top, bottom, yNum, yDen)
}

func lerpColor(a, b uint16, num, den int) uint16 {
	if den == 0 {
		return a
	}
	r := lerp5(uint8((a>>10)&0x1F), uint8((b>>10)&0x1F), num, den)
	g := lerp5(uint8((a>>5)&0x1F), uint8((b>>5)&0x1F), num, den)
	bl := lerp5(uint8(a&0x1F), uint8(b&0x1F), num, den)
	return uint16(r)<<10 | uint16(g)<<5 | uint16(bl)
}

func lerp5(a, b uint8, num, den int) uint8 {
	return uint8(int(a) + (int(b)-int(a))*num/den)
}

func blendHalf(a, b uint16) uint16 {
	ar, ag, ab := (a>>10)&0x1F, (a>>5)&0x1F, a&0x1F
	br, bg, bb := (b>>10)&0x1F, (b>>5)&0x1F, b&0x1F
	return (ar+br)/2<<10 | (ag+bg)/2<<5 | (ab+bb)/2
}

func (v *VDP1) writePixel(fb []uint16, x, y int16, value uint16) {
	if x < 0 || y < 0 || int(x) >= FBWidth || int(y) >= FBHeight {
		return
	}
	fb[int(y)*FBWidth+int(x)] = value
}

func (v *VDP1) drawLine(a, b Point, c command) {
	dx := int(b.X) - int(a.X)
	dy := int(b.Y) - int(a.Y)
	steps := abs(dx)
	if abs(dy) > steps {
		steps = abs(dy)
	}
	var gouraudLeft, gouraudRight uint16
	if c.mode&ModeGouraud != 0 {
		ends := v.gouraudColors(c.gouraudAddr)
		gouraudLeft, gouraudRight = ends[0], ends[1]
	}
	linePixel := func(i int) uint16 {
		if c.mode&ModeGouraud != 0 {
			return lerpColor(gouraudLeft, gouraudRight, i, steps)
		}
		return c.color
	}
	if steps == 0 {
		v.writePixel(v.FB[v.drawFB][:], a.X, a.Y, v.shade(linePixel(0), c.mode, v.framebufferPixel(a.X, a.Y)))
		return
	}
	for i := 0; i <= steps; i++ {
		x := int(a.X) + dx*i/steps
		y := int(a.Y) + dy*i/steps
		if !v.SystemClip.contains(Point{int16(x), int16(y)}) {
			continue
		}
		existing := v.framebufferPixel(int16(x), int16(y))
		v.writePixel(v.FB[v.drawFB][:], int16(x), int16(y), v.shade(linePixel(i), c.mode, existing))
		v.CyclesSpent += v.VRAMWritePenalty
	}
}

// framebufferPixel reads the draw framebuffer at (x, y), or 0 if out of
// bounds, for draw-mode transforms that blend against the existing pixel.
func (v *VDP1) framebufferPixel(x, y int16) uint16 {
	if x < 0 || y < 0 || int(x) >= FBWidth || int(y) >= FBHeight {
		return 0
	}
	return v.FB[v.drawFB][int(y)*FBWidth+int(x)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// RequestSwap records a pending framebuffer swap (FBCR register bit, ); the
// actual swap happens at the next VBlank-OUT via Swap.
func (v *VDP1) RequestSwap() { v.SwapRequested = true }

// Swap performs the documented framebuffer swap if one was requested, then
// erases the new draw buffer (the previous display buffer) per the latched
// erase rectangle. Returns whether a swap occurred.
func (v *VDP1) Swap() bool {
	if !v.SwapRequested {
		return false
	}
	v.SwapRequested = false
	v.drawFB, v.dispFB = v.dispFB, v.drawFB
	v.eraseDrawBuffer()
	return true
}

func (v *VDP1) eraseDrawBuffer() {
	r := v.EraseRect
	fb := v.FB[v.drawFB][:]
	for y := r.Y0; y <= r.Y1 && int(y) < FBHeight; y++ {
		for x := r.X0; x <= r.X1 && int(x) < FBWidth; x++ {
			v.writePixel(fb, x, y, v.EraseWriteValue)
		}
	}
}

// DisplayFramebuffer returns the currently-displayed (non-draw) framebuffer,
// for the VDP2 sprite layer fetch.
func (v *VDP1) DisplayFramebuffer() []uint16 { return v.FB[v.dispFB][:] }

// Read8/Write8 expose VRAM over the bus matrix.
func (v *VDP1) Read8(addr uint32) uint8 {
	return v.VRAM[addr&(VDP1VRAMSize-1)]
}

func (v *VDP1) Write8(addr uint32, val uint8) {
	v.VRAM[addr&(VDP1VRAMSize-1)] = val
}

func (v *VDP1) Read16(addr uint32) uint16 { return v.readWord(addr) }

func (v *VDP1) Write16(addr uint32, val uint16) {
	addr &= VDP1VRAMSize - 1
	v.VRAM[addr] = uint8(val >> 8)
	v.VRAM[addr+1] = uint8(val)
}

// SerializeSize returns the save-state byte size for VRAM, both
// framebuffers, the mesh-enhancement buffer, and VDP1's register/runtime
// state.
func (v *VDP1) SerializeSize() int {
	framebuffers := 2*fbWords*2 + fbWords*2 // FB[0], FB[1], MeshFB, each uint16
	rects := rectSize * 3                   // SystemClip, UserClip, EraseRect
	registers := pointSize + 2              // Local, EraseWriteValue
	flags := 4 + 2                          // 4 bools + drawFB/dispFB bytes
	counters := 8 * 4                        // pc, CyclesSpent, CycleBudget, VRAMWritePenalty
	return VDP1VRAMSize + framebuffers + rects + registers + flags + counters
}

const rectSize = 8  // 4 x int16
const pointSize = 4 // 2 x int16

func putRect(data []byte, offset int, r Rect) int {
	offset = putU16(data, offset, uint16(r.X0))
	offset = putU16(data, offset, uint16(r.Y0))
	offset = putU16(data, offset, uint16(r.X1))
	offset = putU16(data, offset, uint16(r.Y1))
	return offset
}

func getRect(data []byte, offset int) (Rect, int) {
	var r Rect
	var x0, y0, x1, y1 uint16
	x0, offset = getU16(data, offset)
	y0, offset = getU16(data, offset)
	x1, offset = getU16(data, offset)
	y1, offset = getU16(data, offset)
	r = Rect{X0: int16(x0), Y0: int16(y0), X1: int16(x1), Y1: int16(y1)}
	return r, offset
}

// Serialize writes VDP1's full persisted state into data at offset.
// The call/return stack built up mid-command-list is not persisted: a
// save taken between BeginFrame and the matching End would lose it, but
// save points are only meaningful at frame boundaries, where the stack is
// always empty.
func (v *VDP1) Serialize(data []byte, offset int) int {
	offset += copy(data[offset:], v.VRAM[:])
	for _, fb := range v.FB {
		for _, px := range fb {
			offset = putU16(data, offset, px)
		}
	}
	for _, px := range v.MeshFB {
		offset = putU16(data, offset, px)
	}
	offset = putRect(data, offset, v.SystemClip)
	offset = putRect(data, offset, v.UserClip)
	offset = putRect(data, offset, v.EraseRect)
	offset = putU16(data, offset, uint16(v.Local.X))
	offset = putU16(data, offset, uint16(v.Local.Y))
	offset = putU16(data, offset, v.EraseWriteValue)
	offset = putBool(data, offset, v.ManualErase)
	offset = putBool(data, offset, v.SwapRequested)
	offset = putBool(data, offset, v.TransparentMeshes)
	offset = putBool(data, offset, v.halted)
	data[offset] = byte(v.drawFB)
	offset++
	data[offset] = byte(v.dispFB)
	offset++
	offset = putU64At(data, offset, uint64(v.pc))
	offset = putU64At(data, offset, v.CyclesSpent)
	offset = putU64At(data, offset, v.CycleBudget)
	offset = putU64At(data, offset, v.VRAMWritePenalty)
	return offset
}

// Deserialize restores VDP1's full persisted state from data at offset.
func (v *VDP1) Deserialize(data []byte, offset int) int {
	offset += copy(v.VRAM[:], data[offset:offset+VDP1VRAMSize])
	for i := range v.FB {
		for j := range v.FB[i] {
			v.FB[i][j], offset = getU16(data, offset)
		}
	}
	for i := range v.MeshFB {
		v.MeshFB[i], offset = getU16(data, offset)
	}
	v.SystemClip, offset = getRect(data, offset)
	v.UserClip, offset = getRect(data, offset)
	v.EraseRect, offset = getRect(data, offset)
	var lx, ly uint16
	lx, offset = getU16(data, offset)
	ly, offset = getU16(data, offset)
	v.Local = Point{X: int16(lx), Y: int16(ly)}
	v.EraseWriteValue, offset = getU16(data, offset)
	v.ManualErase, offset = getBool(data, offset)
	v.SwapRequested, offset = getBool(data, offset)
	v.TransparentMeshes, offset = getBool(data, offset)
	v.halted, offset = getBool(data, offset)
	v.drawFB = int(data[offset])
	offset++
	v.dispFB = int(data[offset])
	offset++
	var pc uint64
	pc, offset = getU64At(data, offset)
	v.pc = uint32(pc)
	v.CyclesSpent, offset = getU64At(data, offset)
	v.CycleBudget, offset = getU64At(data, offset)
	v.VRAMWritePenalty, offset = getU64At(data, offset)
	v.returnStack = v.returnStack[:0]
	return offset
}

func putU16(data []byte, offset int, v uint16) int {
	data[offset] = byte(v)
	data[offset+1] = byte(v >> 8)
	return offset + 2
}

func getU16(data []byte, offset int) (uint16, int) {
	return uint16(data[offset]) | uint16(data[offset+1])<<8, offset + 2
}

func putU64At(data []byte, offset int, v uint64) int {
	for i := 0; i < 8; i++ {
		data[offset+i] = byte(v >> (8 * i))
	}
	return offset + 8
}

func getU64At(data []byte, offset int) (uint64, int) {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(data[offset+i]) << (8 * i)
	}
	return v, offset + 8
}
