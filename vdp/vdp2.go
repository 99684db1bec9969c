package vdp

// VDP2 VRAM/CRAM sizing.
const (
	VDP2VRAMSize = 0x8_0000 // 512 KiB
	VDP2CRAMSize = 0x1000   // 4 KiB
)

// FetchFunc samples a layer's source (character/bitmap VRAM, or a rotation
// parameter table transform) at a screen-relative pixel coordinate. It
// returns the raw 15-bit RGB555 color and whether the pixel is transparent.
// A layer with Fetch set uses it verbatim, bypassing Source entirely; this
// is how tests and alternative renderers substitute their own pipeline.
type FetchFunc func(x, y int) (color uint16, transparent bool)

// CharFmt is the color format a character or bitmap source decodes pixel
// data as, matching the five color-depth variants VDP2's pattern name and
// bitmap registers select between.
type CharFmt int

const (
	FmtPalette16 CharFmt = iota
	FmtPalette256
	FmtPalette2048
	FmtRGB555
	FmtRGB888
)

// CellSize selects the 8x8 or 16x16 character cell size.
type CellSize int

const (
	Cell8x8 CellSize = iota
	Cell16x16
)

// PatternNameMode selects the 1-word or 2-word pattern name table entry
// format. This module uses a simplified sequential bit layout carrying the
// same fields (character number, palette number, flip flags) rather than
// the hardware's exact packed bit ranges; see the VDP2 fidelity note.
type PatternNameMode int

const (
	PatternName1Word PatternNameMode = iota
	PatternName2Word
)

// CharacterSource configures a character-mode (pattern-name-table-indexed)
// VRAM fetch for one background layer. MapWidthChars/MapHeightChars give the
// plane size in characters; coordinates wrap (tile) at the plane boundary.
type CharacterSource struct {
	PatternNameBase uint32
	PatternNameMode PatternNameMode
	CharBase        uint32
	PaletteBase     uint16 // CRAM byte offset for the layer's palette bank
	CellSize        CellSize
	ColorFormat     CharFmt
	MapWidthChars   int
	MapHeightChars  int
}

// BitmapSource configures a bitmap-mode VRAM fetch: pixels are read at a
// linear offset from Base with no pattern-name indirection.
type BitmapSource struct {
	Base        uint32
	Width       int
	Height      int
	ColorFormat CharFmt
	PaletteBase uint16
}

// LayerSource is a background layer's VRAM fetch configuration: a character
// source or a bitmap source, selected by Bitmap.
type LayerSource struct {
	Bitmap bool
	Char   CharacterSource
	Bmp    BitmapSource
}

// Scroll is a simple horizontal/vertical-scrolling background layer, used
// for NBG0-NBG3.
type Scroll struct {
	Enabled          bool
	Priority         uint8
	ScrollX, ScrollY int
	Mosaic           int // 0 = off; N = N-pixel mosaic blocks
	ColorCalcEnabled bool
	Source           LayerSource
	Fetch            FetchFunc
}

// Rotation is a per-pixel affine-transformed background layer, used for
// RBG0/RBG1. Xform maps a screen coordinate to the source plane's
// coordinate via the parameter table (coefficient-table fetch, parameter
// A/B selection); that evaluation is the caller's responsibility. VDP2
// itself decodes the already-transformed coordinate through Source, the
// same character/bitmap pipeline NBG0-3 use.
type Rotation struct {
	Enabled          bool
	Priority         uint8
	ColorCalcEnabled bool
	Source           LayerSource
	Xform            func(x, y int) (sx, sy int, ok bool)
	Fetch            FetchFunc
}

// SpriteLayer decodes the VDP1 display framebuffer into colored, prioritized
// pixels.
type SpriteLayer struct {
	Enabled  bool
	FB       []uint16 // VDP1's current display framebuffer, RGB555 + flags
	Width    int
	Priority [8]uint8 // priority per top-3-bit sprite type, SPCTL.TYPE-keyed

	// SpriteType selects word-mode (16-bit: top 3 bits type, low 15 bits
	// returned as the RGB555 color, overlapping the type bits) vs
	// byte-mode (8-bit: top 3 bits type, low 5 bits
	// a CRAM palette index resolved through PaletteBase) framebuffer
	// decode, mirroring SPCTL.TYPE's 0-7/8-15 word/byte split.
	SpriteType  SpriteMode
	ColorCalc   [8]bool // per-type color-calc opt-in, SPCTL.TYPE-keyed
	PaletteBase uint16  // CRAM byte offset for byte-mode color index lookup
}

// SpriteMode selects SPCTL's word/byte sprite data interpretation.
type SpriteMode int

const (
	SpriteWord SpriteMode = iota
	SpriteByte
)

// ColorCalc controls the two-layer blend applied where both the top two
// priority layers opt in.
type ColorCalc struct {
	Additive bool
	RatioTop uint8 // 0..31, ratio applied to the higher-priority layer
}

// Window is a single rectangular gate; AND/OR combination across multiple
// windows is left to the caller building the per-line mask.
type Window struct {
	Enabled bool
	Rect    Rect
}

// VDP2 composites one output scanline at a time from the sprite layer, two
// rotation backgrounds, four scrolling backgrounds, and a backdrop color.
type VDP2 struct {
	VRAM [VDP2VRAMSize]byte
	CRAM [VDP2CRAMSize]byte

	Sprite     SpriteLayer
	Rotation   [2]Rotation
	Scrolls    [4]Scroll
	BackColor  uint16
	ColorCalc  ColorCalc
	Window     Window
	ScreenWide int // output pixels per line
}

// NewVDP2 returns a VDP2 sized for 320-wide output.
func NewVDP2() *VDP2 {
	return &VDP2{ScreenWide: 320}
}

type layerSample struct {
	color    uint16
	priority uint8
	calc     bool
	present  bool
}

// DrawLine composes one output scanline into out (len(out) == ScreenWide),
// each entry a 15-bit RGB555 value after color-calc blending.
func (v *VDP2) DrawLine(y int, out []uint16) {
	for x := 0; x < v.ScreenWide && x < len(out); x++ {
		if v.Window.Enabled && !v.Window.Rect.contains(Point{int16(x), int16(y)}) {
			out[x] = v.BackColor
			continue
		}
		out[x] = v.composePixel(x, y)
	}
}

func (v *VDP2) composePixel(x, y int) uint16 {
	var samples []layerSample

	if v.Sprite.Enabled && v.Sprite.FB != nil && x < v.Sprite.Width {
		if c, prio, calc, present := v.decodeSprite(x, y); present {
			samples = append(samples, layerSample{color: c, priority: prio, calc: calc, present: true})
		}
	}
	for i := range v.Rotation {
		r := &v.Rotation[i]
		if !r.Enabled {
			continue
		}
		sx, sy, ok := x, y, true
		if r.Xform != nil {
			sx, sy, ok = r.Xform(x, y)
		}
		if !ok {
			continue
		}
		c, transparent := v.sampleLayerFetch(r.Fetch, &r.Source, sx, sy)
		if !transparent {
			samples = append(samples, layerSample{color: c, priority: r.Priority, calc: r.ColorCalcEnabled, present: true})
		}
	}
	for i := range v.Scrolls {
		s := &v.Scrolls[i]
		if !s.Enabled {
			continue
		}
		sx, sy := x+s.ScrollX, y+s.ScrollY
		if s.Mosaic > 1 {
			sx -= sx % s.Mosaic
			sy -= sy % s.Mosaic
		}
		c, transparent := v.sampleLayerFetch(s.Fetch, &s.Source, sx, sy)
		if !transparent {
			samples = append(samples, layerSample{color: c, priority: s.Priority, calc: s.ColorCalcEnabled, present: true})
		}
	}

	if len(samples) == 0 {
		return v.BackColor
	}

	top, second := pickTopTwo(samples)
	if second == nil || !(top.calc && second.calc) {
		return top.color
	}
	return v.blend(top.color, second.color)
}

// sampleLayerFetch samples a background layer: an explicit Fetch override
// takes priority (the escape hatch tests and alternative renderers use),
// falling back to decoding src through VDP2's own VRAM/CRAM otherwise.
func (v *VDP2) sampleLayerFetch(fetch FetchFunc, src *LayerSource, x, y int) (uint16, bool) {
	if fetch != nil {
		return fetch(x, y)
	}
	return v.sampleLayer(src, x, y)
}

// sampleLayer decodes one background layer's pixel at (x, y) through its
// character or bitmap source.
func (v *VDP2) sampleLayer(src *LayerSource, x, y int) (uint16, bool) {
	if src.Bitmap {
		return v.fetchBitmap(&src.Bmp, x, y)
	}
	return v.fetchChar(&src.Char, x, y)
}

// decodeSprite interprets the VDP1 framebuffer's raw word for (x, y) per
// SPCTL's word/byte mode, extracting the priority and color-calc flags the
// documented sprite-type table specifies. Word mode returns the low 15 bits
// as the RGB555 color (bits 13-15 also select the type); byte mode's low 5
// bits are a CRAM palette index resolved through
// Sprite.PaletteBase, index 0 meaning transparent.
func (v *VDP2) decodeSprite(x, y int) (color uint16, priority uint8, calc bool, present bool) {
	s := &v.Sprite
	idx := y*s.Width + x
	if idx < 0 || idx >= len(s.FB) {
		return 0, 0, false, false
	}
	px := s.FB[idx]
	if px == 0 {
		return 0, 0, false, false
	}
	if s.SpriteType == SpriteByte {
		b := uint8(px)
		typ := (b >> 5) & 7
		colorIdx := b & 0x1F
		if colorIdx == 0 {
			return 0, 0, false, false
		}
		return v.paletteColor(s.PaletteBase + uint16(colorIdx)*2), s.Priority[typ], s.ColorCalc[typ], true
	}
	typ := (px >> 13) & 7
	return px &^ 0x8000, s.Priority[typ], s.ColorCalc[typ], true
}

// pickTopTwo returns the highest- and second-highest-priority samples.
func pickTopTwo(samples []layerSample) (layerSample, *layerSample) {
	topIdx := 0
	for i, s := range samples {
		if s.priority > samples[topIdx].priority {
			topIdx = i
		}
	}
	if len(samples) == 1 {
		return samples[0], nil
	}
	secondIdx := -1
	for i, s := range samples {
		if i == topIdx {
			continue
		}
		if secondIdx == -1 || s.priority > samples[secondIdx].priority {
			secondIdx = i
		}
	}
	second := samples[secondIdx]
	return samples[topIdx], &second
}

func (v *VDP2) blend(top, bottom uint16) uint16 {
	ratio := uint32(v.ColorCalc.RatioTop)
	if ratio > 31 {
		ratio = 31
	}
	blendChan := func(a, b uint16) uint16 {
		av := uint32(a) & 0x1F
		bv := uint32(b) & 0x1F
		if v.ColorCalc.Additive {
			sum := av + bv
			if sum > 31 {
				sum = 31
			}
			return uint16(sum)
		}
		return uint16((av*ratio + bv*(31-ratio)) / 31)
	}
	tr, tg, tb := (top>>10)&0x1F, (top>>5)&0x1F, top&0x1F
	br, bg, bb := (bottom>>10)&0x1F, (bottom>>5)&0x1F, bottom&0x1F
	return blendChan(tr, br)<<10 | blendChan(tg, bg)<<5 | blendChan(tb, bb)
}

// fetchChar decodes a character-mode pixel: the pattern name table entry
// covering (x, y) selects a character number, palette bank, and flip
// flags; the character's cell data is then decoded per ColorFormat.
func (v *VDP2) fetchChar(src *CharacterSource, x, y int) (uint16, bool) {
	cellPx := 8
	if src.CellSize == Cell16x16 {
		cellPx = 16
	}
	mapW, mapH := src.MapWidthChars, src.MapHeightChars
	if mapW <= 0 {
		mapW = 64
	}
	if mapH <= 0 {
		mapH = 64
	}
	planeW, planeH := mapW*cellPx, mapH*cellPx
	x = wrap(x, planeW)
	y = wrap(y, planeH)

	charCol, charRow := x/cellPx, y/cellPx
	cx, cy := x%cellPx, y%cellPx

	pnWordSize := uint32(2)
	if src.PatternNameMode == PatternName2Word {
		pnWordSize = 4
	}
	pnAddr := src.PatternNameBase + (uint32(charRow)*uint32(mapW)+uint32(charCol))*pnWordSize

	var charNum uint32
	var paletteNum uint16
	var flipH, flipV bool
	if src.PatternNameMode == PatternName2Word {
		word := v.vramRead32(pnAddr)
		charNum = word & 0x7FFF
		paletteNum = uint16((word >> 16) & 0x7F)
		flipH = word&0x4000_0000 != 0
		flipV = word&0x8000_0000 != 0
	} else {
		word := v.vramRead16(pnAddr)
		charNum = uint32(word & 0x03FF)
		paletteNum = (word >> 10) & 0x0F
		flipH = word&0x4000 != 0
		flipV = word&0x8000 != 0
	}
	if flipH {
		cx = cellPx - 1 - cx
	}
	if flipV {
		cy = cellPx - 1 - cy
	}

	charAddr := src.CharBase + charNum*uint32(charBytesPerCell(src.ColorFormat, cellPx))
	return v.decodeCellPixel(src.ColorFormat, charAddr, cellPx, cx, cy, src.PaletteBase, paletteNum)
}

// fetchBitmap decodes a bitmap-mode pixel directly at a linear VRAM offset,
// tiling at the bitmap's declared width/height.
func (v *VDP2) fetchBitmap(src *BitmapSource, x, y int) (uint16, bool) {
	if src.Width <= 0 || src.Height <= 0 {
		return 0, true
	}
	x = wrap(x, src.Width)
	y = wrap(y, src.Height)
	return v.decodeCellPixel(src.ColorFormat, src.Base, src.Width, x, y, src.PaletteBase, 0)
}

func wrap(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}

// charBytesPerCell returns the VRAM byte size of one cellPx-square
// character's pixel data at the given color format.
func charBytesPerCell(fmt CharFmt, cellPx int) int {
	px := cellPx * cellPx
	switch fmt {
	case FmtPalette16:
		return px / 2
	case FmtPalette256:
		return px
	case FmtPalette2048, FmtRGB555:
		return px * 2
	case FmtRGB888:
		return px * 4
	default:
		return px
	}
}

// decodeCellPixel reads one pixel at (cx, cy) within a stride-wide block of
// pixel data starting at base, per fmt, resolving palette formats through
// CRAM at paletteBase (bank-selected by paletteNum for 16-color data).
func (v *VDP2) decodeCellPixel(fmt CharFmt, base uint32, stride, cx, cy int, paletteBase, paletteNum uint16) (uint16, bool) {
	switch fmt {
	case FmtPalette16:
		rowBytes := stride / 2
		off := base + uint32(cy*rowBytes+cx/2)
		b := v.vramByte(off)
		var idx uint8
		if cx%2 == 0 {
			idx = b >> 4
		} else {
			idx = b & 0x0F
		}
		if idx == 0 {
			return 0, true
		}
		return v.paletteColor(paletteBase + paletteNum*32 + uint16(idx)*2), false
	case FmtPalette256:
		off := base + uint32(cy*stride+cx)
		idx := v.vramByte(off)
		if idx == 0 {
			return 0, true
		}
		return v.paletteColor(paletteBase + uint16(idx)*2), false
	case FmtPalette2048:
		off := base + uint32((cy*stride+cx)*2)
		idx := v.vramRead16(off) & 0x07FF
		if idx == 0 {
			return 0, true
		}
		return v.paletteColor(paletteBase + idx*2), false
	case FmtRGB555:
		off := base + uint32((cy*stride+cx)*2)
		word := v.vramRead16(off)
		if word == 0 {
			return 0, true
		}
		return word &^ 0x8000, false
	case FmtRGB888:
		off := base + uint32((cy*stride+cx)*4)
		a := v.vramByte(off)
		if a == 0 {
			return 0, true
		}
		r, g, b := v.vramByte(off+1), v.vramByte(off+2), v.vramByte(off+3)
		return uint16(r>>3)<<10 | uint16(g>>3)<<5 | uint16(b>>3), false
	default:
		return 0, true
	}
}

func (v *VDP2) vramByte(addr uint32) uint8 { return v.VRAM[addr&(VDP2VRAMSize-1)] }

func (v *VDP2) vramRead16(addr uint32) uint16 {
	addr &= VDP2VRAMSize - 1
	return uint16(v.VRAM[addr])<<8 | uint16(v.VRAM[(addr+1)&(VDP2VRAMSize-1)])
}

func (v *VDP2) vramRead32(addr uint32) uint32 {
	hi := uint32(v.vramRead16(addr))
	lo := uint32(v.vramRead16(addr + 2))
	return hi<<16 | lo
}

// paletteColor reads a 15-bit RGB555 entry from CRAM at a byte offset.
func (v *VDP2) paletteColor(addr uint16) uint16 {
	a := uint32(addr) & (VDP2CRAMSize - 1)
	return uint16(v.CRAM[a])<<8 | uint16(v.CRAM[(a+1)&(VDP2CRAMSize-1)])
}

// Read8/Write8 expose VRAM over the bus matrix.
func (v *VDP2) Read8(addr uint32) uint8 { return v.VRAM[addr&(VDP2VRAMSize-1)] }
func (v *VDP2) Write8(addr uint32, val uint8) {
	v.VRAM[addr&(VDP2VRAMSize-1)] = val
}

func (v *VDP2) ReadCRAM8(addr uint32) uint8 { return v.CRAM[addr&(VDP2CRAMSize-1)] }
func (v *VDP2) WriteCRAM8(addr uint32, val uint8) {
	v.CRAM[addr&(VDP2CRAMSize-1)] = val
}

// layerSourceStateSize is the save-state byte size of one LayerSource:
// Bitmap flag, the CharacterSource fields, then the BitmapSource fields.
const layerSourceStateSize = 1 + (4 + 4 + 4 + 2 + 4 + 4 + 4 + 4) + (4 + 4 + 4 + 4 + 2)

// scrollStateSize/rotationStateSize are the save-state byte sizes for one
// Scroll/Rotation layer's persisted configuration. Fetch/Xform are runtime
// wiring details supplied by the caller at load time, not save-state data.
const scrollStateSize = 1 + 1 + 4 + 4 + 4 + 1 + layerSourceStateSize // Enabled,Priority,ScrollX,ScrollY,Mosaic,ColorCalcEnabled,Source
const rotationStateSize = 1 + 1 + 1 + layerSourceStateSize           // Enabled,Priority,ColorCalcEnabled,Source
const spriteStateSize = 1 + 4 + 8 + 1 + 8 + 2 // Enabled,Width,Priority[8],SpriteType,ColorCalc[8],PaletteBase

// SerializeSize returns the save-state byte size for VRAM, CRAM, and
// VDP2's persisted layer configuration.
func (v *VDP2) SerializeSize() int {
	return VDP2VRAMSize + VDP2CRAMSize + spriteStateSize + 2*rotationStateSize +
		4*scrollStateSize + 2 /*BackColor*/ + 2 /*ColorCalc*/ + 1 + 8 /*Window*/
}

// Serialize writes VRAM, CRAM, and the persisted layer configuration into
// data at offset.
func (v *VDP2) Serialize(data []byte, offset int) int {
	offset += copy(data[offset:], v.VRAM[:])
	offset += copy(data[offset:], v.CRAM[:])

	offset = putBool(data, offset, v.Sprite.Enabled)
	offset = putU32(data, offset, uint32(v.Sprite.Width))
	for _, p := range v.Sprite.Priority {
		data[offset] = p
		offset++
	}
	data[offset] = byte(v.Sprite.SpriteType)
	offset++
	for _, c := range v.Sprite.ColorCalc {
		offset = putBool(data, offset, c)
	}
	offset = putU16(data, offset, v.Sprite.PaletteBase)
	for _, r := range v.Rotation {
		offset = putBool(data, offset, r.Enabled)
		data[offset] = r.Priority
		offset++
		offset = putBool(data, offset, r.ColorCalcEnabled)
		offset = putLayerSource(data, offset, r.Source)
	}
	for _, s := range v.Scrolls {
		offset = putBool(data, offset, s.Enabled)
		data[offset] = s.Priority
		offset++
		offset = putU32(data, offset, uint32(s.ScrollX))
		offset = putU32(data, offset, uint32(s.ScrollY))
		offset = putU32(data, offset, uint32(s.Mosaic))
		offset = putBool(data, offset, s.ColorCalcEnabled)
		offset = putLayerSource(data, offset, s.Source)
	}
	offset = putU16(data, offset, v.BackColor)
	offset = putBool(data, offset, v.ColorCalc.Additive)
	data[offset] = v.ColorCalc.RatioTop
	offset++
	offset = putBool(data, offset, v.Window.Enabled)
	offset = putRect(data, offset, v.Window.Rect)
	return offset
}

// Deserialize restores VRAM, CRAM, and the persisted layer configuration
// from data at offset, including each layer's Source, so a loaded state
// decodes real pixels immediately. Only the optional Fetch/Xform override
// closures are runtime wiring outside the save-state and must be re-supplied
// by the caller afterward if it relies on them.
func (v *VDP2) Deserialize(data []byte, offset int) int {
	offset += copy(v.VRAM[:], data[offset:offset+VDP2VRAMSize])
	offset += copy(v.CRAM[:], data[offset:offset+VDP2CRAMSize])

	v.Sprite.Enabled, offset = getBool(data, offset)
	var width uint32
	width, offset = getU32(data, offset)
	v.Sprite.Width = int(width)
	for i := range v.Sprite.Priority {
		v.Sprite.Priority[i] = data[offset]
		offset++
	}
	v.Sprite.SpriteType = SpriteMode(data[offset])
	offset++
	for i := range v.Sprite.ColorCalc {
		v.Sprite.ColorCalc[i], offset = getBool(data, offset)
	}
	v.Sprite.PaletteBase, offset = getU16(data, offset)
	for i := range v.Rotation {
		v.Rotation[i].Enabled, offset = getBool(data, offset)
		v.Rotation[i].Priority = data[offset]
		offset++
		v.Rotation[i].ColorCalcEnabled, offset = getBool(data, offset)
		v.Rotation[i].Source, offset = getLayerSource(data, offset)
	}
	for i := range v.Scrolls {
		v.Scrolls[i].Enabled, offset = getBool(data, offset)
		v.Scrolls[i].Priority = data[offset]
		offset++
		var sx, sy, mosaic uint32
		sx, offset = getU32(data, offset)
		sy, offset = getU32(data, offset)
		mosaic, offset = getU32(data, offset)
		v.Scrolls[i].ScrollX = int(sx)
		v.Scrolls[i].ScrollY = int(sy)
		v.Scrolls[i].Mosaic = int(mosaic)
		v.Scrolls[i].ColorCalcEnabled, offset = getBool(data, offset)
		v.Scrolls[i].Source, offset = getLayerSource(data, offset)
	}
	v.BackColor, offset = getU16(data, offset)
	v.ColorCalc.Additive, offset = getBool(data, offset)
	v.ColorCalc.RatioTop = data[offset]
	offset++
	v.Window.Enabled, offset = getBool(data, offset)
	v.Window.Rect, offset = getRect(data, offset)
	return offset
}

func putLayerSource(data []byte, offset int, src LayerSource) int {
	offset = putBool(data, offset, src.Bitmap)
	offset = putU32(data, offset, src.Char.PatternNameBase)
	offset = putU32(data, offset, uint32(src.Char.PatternNameMode))
	offset = putU32(data, offset, src.Char.CharBase)
	offset = putU16(data, offset, src.Char.PaletteBase)
	offset = putU32(data, offset, uint32(src.Char.CellSize))
	offset = putU32(data, offset, uint32(src.Char.ColorFormat))
	offset = putU32(data, offset, uint32(src.Char.MapWidthChars))
	offset = putU32(data, offset, uint32(src.Char.MapHeightChars))
	offset = putU32(data, offset, src.Bmp.Base)
	offset = putU32(data, offset, uint32(src.Bmp.Width))
	offset = putU32(data, offset, uint32(src.Bmp.Height))
	offset = putU32(data, offset, uint32(src.Bmp.ColorFormat))
	offset = putU16(data, offset, src.Bmp.PaletteBase)
	return offset
}

func getLayerSource(data []byte, offset int) (LayerSource, int) {
	var src LayerSource
	src.Bitmap, offset = getBool(data, offset)
	src.Char.PatternNameBase, offset = getU32(data, offset)
	var v uint32
	v, offset = getU32(data, offset)
	src.Char.PatternNameMode = PatternNameMode(v)
	src.Char.CharBase, offset = getU32(data, offset)
	src.Char.PaletteBase, offset = getU16(data, offset)
	v, offset = getU32(data, offset)
	src.Char.CellSize = CellSize(v)
	v, offset = getU32(data, offset)
	src.Char.ColorFormat = CharFmt(v)
	v, offset = getU32(data, offset)
	src.Char.MapWidthChars = int(v)
	v, offset = getU32(data, offset)
	src.Char.MapHeightChars = int(v)
	src.Bmp.Base, offset = getU32(data, offset)
	v, offset = getU32(data, offset)
	src.Bmp.Width = int(v)
	v, offset = getU32(data, offset)
	src.Bmp.Height = int(v)
	v, offset = getU32(data, offset)
	src.Bmp.ColorFormat = CharFmt(v)
	src.Bmp.PaletteBase, offset = getU16(data, offset)
	return src, offset
}

func putU32(data []byte, offset int, v uint32) int {
	for i := 0; i < 4; i++ {
		data[offset+i] = byte(v >> (8 * i))
	}
	return offset + 4
}

func getU32(data []byte, offset int) (uint32, int) {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(data[offset+i]) << (8 * i)
	}
	return v, offset + 4
}

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
