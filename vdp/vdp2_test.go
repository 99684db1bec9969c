package vdp

import "testing"

func TestDrawLineFallsBackToBackdrop(t *testing.T) {
	v := NewVDP2()
	v.BackColor = 0x1234
	out := make([]uint16, v.ScreenWide)
	v.DrawLine(0, out)
	for x, c := range out {
		if c != 0x1234 {
			t.Fatalf("pixel %d = %#x, want backdrop 0x1234", x, c)
		}
	}
}

func TestHigherPriorityLayerWinsWithoutColorCalc(t *testing.T) {
	v := NewVDP2()
	v.Scrolls[0] = Scroll{
		Enabled: true, Priority: 3,
		Fetch: func(x, y int) (uint16, bool) { return 0x7C00, false }, // red
	}
	v.Scrolls[1] = Scroll{
		Enabled: true, Priority: 5,
		Fetch: func(x, y int) (uint16, bool) { return 0x03E0, false }, // green
	}
	out := make([]uint16, v.ScreenWide)
	v.DrawLine(0, out)
	if out[0] != 0x03E0 {
		t.Fatalf("composed pixel = %#x, want the higher-priority layer's color 0x03E0", out[0])
	}
}

func TestColorCalcBlendsOnlyWhenBothLayersOptIn(t *testing.T) {
	v := NewVDP2()
	v.ColorCalc.RatioTop = 16 // roughly even split
	v.Scrolls[0] = Scroll{
		Enabled: true, Priority: 3, ColorCalcEnabled: true,
		Fetch: func(x, y int) (uint16, bool) { return 0, false }, // black
	}
	v.Scrolls[1] = Scroll{
		Enabled: true, Priority: 5, ColorCalcEnabled: true,
		Fetch: func(x, y int) (uint16, bool) { return 0x7FFF, false }, // white
	}
	out := make([]uint16, v.ScreenWide)
	v.DrawLine(0, out)
	if out[0] == 0 || out[0] == 0x7FFF {
		t.Fatalf("composed pixel = %#x, want a blend strictly between black and white", out[0])
	}
}

func TestTransparentPixelsFallThroughToLowerLayers(t *testing.T) {
	v := NewVDP2()
	v.BackColor = 0x5555
	v.Scrolls[0] = Scroll{
		Enabled: true, Priority: 7,
		Fetch: func(x, y int) (uint16, bool) { return 0, true }, // always transparent
	}
	out := make([]uint16, v.ScreenWide)
	v.DrawLine(0, out)
	if out[0] != 0x5555 {
		t.Fatalf("transparent top layer should fall through to backdrop, got %#x", out[0])
	}
}

func TestWindowGatesOutsidePixelsToBackdrop(t *testing.T) {
	v := NewVDP2()
	v.BackColor = 0x0001
	v.Window = Window{Enabled: true, Rect: Rect{X0: 0, Y0: 0, X1: 9, Y1: 239}}
	v.Scrolls[0] = Scroll{
		Enabled: true, Priority: 1,
		Fetch: func(x, y int) (uint16, bool) { return 0x7FFF, false },
	}
	out := make([]uint16, v.ScreenWide)
	v.DrawLine(0, out)
	if out[0] != 0x7FFF {
		t.Fatalf("pixel inside window = %#x, want layer color", out[0])
	}
	if out[20] != 0x0001 {
		t.Fatalf("pixel outside window = %#x, want backdrop", out[20])
	}
}

func TestSpriteLayerDecodesDisplayFramebuffer(t *testing.T) {
	v := NewVDP2()
	fb := make([]uint16, 4*4)
	fb[0] = 0x7C00 // opaque red at (0,0)
	v.Sprite = SpriteLayer{Enabled: true, FB: fb, Width: 4, Priority: [8]uint8{0: 9}}
	out := make([]uint16, v.ScreenWide)
	v.DrawLine(0, out)
	if out[0] != 0x7C00 {
		t.Fatalf("sprite pixel = %#x, want 0x7C00", out[0])
	}
}

func TestSpriteLayerByteModeResolvesThroughCRAMPalette(t *testing.T) {
	v := NewVDP2()
	// CRAM palette entry 5 (at byte offset PaletteBase + 5*2) holds magenta.
	v.CRAM[0x20+5*2], v.CRAM[0x20+5*2+1] = byte(0x7C1F>>8), byte(0x7C1F&0xFF)
	fb := make([]uint16, 4*4)
	fb[0] = uint16(2)<<5 | 5 // type 2, palette index 5
	v.Sprite = SpriteLayer{
		Enabled: true, FB: fb, Width: 4, Priority: [8]uint8{2: 4},
		SpriteType: SpriteByte, PaletteBase: 0x20,
	}
	out := make([]uint16, v.ScreenWide)
	v.DrawLine(0, out)
	if out[0] != 0x7C1F {
		t.Fatalf("byte-mode sprite pixel = %#x, want CRAM-resolved 0x7c1f", out[0])
	}
}

func TestSpriteLayerByteModeIndexZeroIsTransparent(t *testing.T) {
	v := NewVDP2()
	v.BackColor = 0x4444
	fb := make([]uint16, 4*4)
	fb[0] = uint16(2) << 5 // type 2, palette index 0
	v.Sprite = SpriteLayer{
		Enabled: true, FB: fb, Width: 4, Priority: [8]uint8{2: 4},
		SpriteType: SpriteByte,
	}
	out := make([]uint16, v.ScreenWide)
	v.DrawLine(0, out)
	if out[0] != 0x4444 {
		t.Fatalf("index-0 byte-mode sprite pixel should be transparent, got %#x", out[0])
	}
}

func TestFetchCharDecodesPatternNameAndPalette16Cell(t *testing.T) {
	v := NewVDP2()
	src := CharacterSource{
		PatternNameBase: 0x0000,
		PatternNameMode: PatternName1Word,
		CharBase:        0x1000,
		PaletteBase:     0x40,
		CellSize:        Cell8x8,
		ColorFormat:     FmtPalette16,
		MapWidthChars:   2,
		MapHeightChars:  2,
	}
	// Pattern name entry for character cell (0,0): character number 1, palette bank 2.
	pnWord := uint16(1) | uint16(2)<<10
	v.VRAM[0], v.VRAM[1] = byte(pnWord>>8), byte(pnWord)

	// Character 1's cell data lives at CharBase + 1*32 (4bpp, 8x8 = 32 bytes).
	cellAddr := src.CharBase + 32
	// Top-left nibble (cx=0,cy=0) selects palette index 3.
	v.VRAM[cellAddr] = 0x30

	// CRAM entry for palette bank 2, index 3: PaletteBase + 2*32 + 3*2.
	cramOff := src.PaletteBase + 2*32 + 3*2
	v.CRAM[cramOff], v.CRAM[cramOff+1] = byte(0x03FF>>8), byte(0x03FF&0xFF)

	color, transparent := v.fetchChar(&src, 0, 0)
	if transparent {
		t.Fatalf("expected an opaque pixel")
	}
	if color != 0x03FF {
		t.Fatalf("fetchChar color = %#x, want 0x03ff", color)
	}
}

func TestFetchBitmapDecodesRGB555DirectAndWraps(t *testing.T) {
	v := NewVDP2()
	src := BitmapSource{Base: 0x2000, Width: 2, Height: 2, ColorFormat: FmtRGB555}
	// Pixel (1,1): offset Base + (1*2+1)*2.
	off := src.Base + 6
	v.VRAM[off], v.VRAM[off+1] = byte(0x6318>>8), byte(0x6318&0xFF)

	color, transparent := v.fetchBitmap(&src, 1, 1)
	if transparent || color != 0x6318 {
		t.Fatalf("fetchBitmap(1,1) = %#x,%v want 0x6318,false", color, transparent)
	}
	// (3,3) wraps to (1,1) against a 2x2 bitmap.
	color, transparent = v.fetchBitmap(&src, 3, 3)
	if transparent || color != 0x6318 {
		t.Fatalf("fetchBitmap(3,3) (wrapped) = %#x,%v want 0x6318,false", color, transparent)
	}
}

func TestScrollWithoutFetchDecodesThroughSource(t *testing.T) {
	v := NewVDP2()
	v.Scrolls[0] = Scroll{
		Enabled:  true,
		Priority: 2,
		Source: LayerSource{
			Bitmap: true,
			Bmp:    BitmapSource{Base: 0x3000, Width: 1, Height: 1, ColorFormat: FmtRGB555},
		},
	}
	v.VRAM[0x3000], v.VRAM[0x3001] = byte(0x5AD6>>8), byte(0x5AD6&0xFF)
	out := make([]uint16, v.ScreenWide)
	v.DrawLine(0, out)
	if out[0] != 0x5AD6 {
		t.Fatalf("Source-decoded scroll pixel = %#x, want 0x5ad6", out[0])
	}
}
