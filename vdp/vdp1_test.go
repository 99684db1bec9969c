package vdp

import "testing"

func writeCmd(v *VDP1, addr uint32, kind CommandKind, mode DrawMode, color uint16, verts [4]Point, next uint32) {
	writeCmdGouraud(v, addr, kind, mode, color, verts, next, 0)
}

func writeCmdGouraud(v *VDP1, addr uint32, kind CommandKind, mode DrawMode, color uint16, verts [4]Point, next, gouraudAddr uint32) {
	put := func(i uint32, val uint16) {
		a := (addr + i*2) & (VDP1VRAMSize - 1)
		v.VRAM[a] = uint8(val >> 8)
		v.VRAM[a+1] = uint8(val)
	}
	put(0, uint16(kind))
	put(1, uint16(mode))
	put(2, color)
	for i, p := range verts {
		put(uint32(3+2*i), uint16(p.X))
		put(uint32(4+2*i), uint16(p.Y))
	}
	put(13, uint16(next/8))
	put(14, uint16(gouraudAddr/8))
}

func TestVDP1StopsAtEnd(t *testing.T) {
	v := NewVDP1()
	writeCmd(v, 0, CmdEnd, 0, 0, [4]Point{}, 0)
	v.BeginFrame(10000)

	done := false
	v.OnFrameComplete = func() { done = true }
	v.RunFrame()

	if !done {
		t.Fatalf("End command should invoke OnFrameComplete")
	}
}

func TestVDP1DrawsSpriteIntoDrawBuffer(t *testing.T) {
	v := NewVDP1()
	v.SystemClip = Rect{X0: 0, Y0: 0, X1: 511, Y1: 255}

	verts := [4]Point{{10, 10}, {20, 10}, {20, 20}, {10, 20}}
	writeCmd(v, 0, CmdNormalSprite, 0, 0x7C00, verts, 32)
	writeCmd(v, 32, CmdEnd, 0, 0, [4]Point{}, 0)
	v.BeginFrame(100000)
	v.RunFrame()

	fb := v.FB[v.drawFB]
	if fb[15*FBWidth+15] != 0x7C00 {
		t.Fatalf("pixel (15,15) = %#x, want 0x7C00", fb[15*FBWidth+15])
	}
}

func TestVDP1ClippedSpriteDrawsNothing(t *testing.T) {
	v := NewVDP1()
	v.SystemClip = Rect{X0: 0, Y0: 0, X1: 7, Y1: 7}

	verts := [4]Point{{100, 100}, {110, 100}, {110, 110}, {100, 110}}
	writeCmd(v, 0, CmdNormalSprite, 0, 0x7C00, verts, 32)
	writeCmd(v, 32, CmdEnd, 0, 0, [4]Point{}, 0)
	v.BeginFrame(100000)
	v.RunFrame()

	fb := v.FB[v.drawFB]
	if fb[105*FBWidth+105] != 0 {
		t.Fatalf("pixel outside clip rect should remain 0, got %#x", fb[105*FBWidth+105])
	}
}

func TestVDP1SwapRequiresRequestAndErases(t *testing.T) {
	v := NewVDP1()
	v.EraseRect = Rect{X0: 0, Y0: 0, X1: 3, Y1: 3}
	v.EraseWriteValue = 0xDEAD & 0x7FFF

	if v.Swap() {
		t.Fatalf("Swap() should do nothing without a pending request")
	}
	v.RequestSwap()
	if !v.Swap() {
		t.Fatalf("Swap() should perform the swap once requested")
	}
	if v.FB[v.drawFB][0] != v.EraseWriteValue {
		t.Fatalf("new draw buffer should have been erased")
	}
}

func TestVDP1JumpFollowsNextAddress(t *testing.T) {
	v := NewVDP1()
	writeCmd(v, 0, CmdJump, 0, 0, [4]Point{}, 64)
	writeCmd(v, 64, CmdEnd, 0, 0, [4]Point{}, 0)
	v.BeginFrame(1000)

	done := false
	v.OnFrameComplete = func() { done = true }
	v.RunFrame()
	if !done {
		t.Fatalf("jump should have reached End at the target address")
	}
}

func TestVDP1MeshModeWithoutEnhancementDiscardsAlternatePixels(t *testing.T) {
	v := NewVDP1()
	v.SystemClip = Rect{X0: 0, Y0: 0, X1: 511, Y1: 255}
	v.TransparentMeshes = false

	verts := [4]Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	writeCmd(v, 0, CmdNormalSprite, ModeMesh, 0x7FFF, verts, 32)
	writeCmd(v, 32, CmdEnd, 0, 0, [4]Point{}, 0)
	v.BeginFrame(1000)
	v.RunFrame()

	// (0,0): (0+0)%2==0 -> mesh-discarded, stays 0.
	if v.FB[v.drawFB][0] != 0 {
		t.Fatalf("mesh-discarded pixel should remain 0, got %#x", v.FB[v.drawFB][0])
	}
}

func writeGouraudTable(v *VDP1, addr uint32, colors [4]uint16) {
	for i, c := range colors {
		a := (addr + uint32(i)*2) & (VDP1VRAMSize - 1)
		v.VRAM[a] = uint8(c >> 8)
		v.VRAM[a+1] = uint8(c)
	}
}

func TestVDP1GouraudInterpolatesCornerColors(t *testing.T) {
	v := NewVDP1()
	v.SystemClip = Rect{X0: 0, Y0: 0, X1: 511, Y1: 255}

	// A 4x4 quad, corners black (A), red (B), black (C), black (D): only
	// the top-right corner should end up red, the rest should stay darker.
	writeGouraudTable(v, 256, [4]uint16{0x0000, 0x7C00, 0x0000, 0x0000})
	verts := [4]Point{{0, 0}, {3, 0}, {3, 3}, {0, 3}}
	writeCmdGouraud(v, 0, CmdNormalSprite, ModeGouraud, 0x7FFF, verts, 32, 256)
	writeCmd(v, 32, CmdEnd, 0, 0, [4]Point{}, 0)
	v.BeginFrame(100000)
	v.RunFrame()

	fb := v.FB[v.drawFB]
	if fb[0*FBWidth+3] != 0x7C00 {
		t.Fatalf("top-right corner = %#x, want the B vertex color 0x7c00", fb[0*FBWidth+3])
	}
	if fb[0*FBWidth+0] != 0x0000 {
		t.Fatalf("top-left corner = %#x, want the A vertex color 0x0000", fb[0*FBWidth+0])
	}
}

func TestVDP1HalfTransparentBlendsWithExistingPixel(t *testing.T) {
	v := NewVDP1()
	v.SystemClip = Rect{X0: 0, Y0: 0, X1: 511, Y1: 255}
	v.FB[v.drawFB][0] = 0x7FFF // pre-existing white pixel

	verts := [4]Point{{0, 0}, {0, 0}, {0, 0}, {0, 0}}
	writeCmd(v, 0, CmdNormalSprite, ModeHalfTransparent, 0x0000, verts, 32) // black, half-transparent
	writeCmd(v, 32, CmdEnd, 0, 0, [4]Point{}, 0)
	v.BeginFrame(100000)
	v.RunFrame()

	if v.FB[v.drawFB][0] != 0x3DEF {
		t.Fatalf("half-transparent blend = %#x, want 0x3def (halfway between black and white)", v.FB[v.drawFB][0])
	}
}

func TestVDP1HighSpeedShrinkSkipsAlternatePixels(t *testing.T) {
	v := NewVDP1()
	v.SystemClip = Rect{X0: 0, Y0: 0, X1: 511, Y1: 255}

	verts := [4]Point{{0, 0}, {3, 0}, {3, 3}, {0, 3}}
	writeCmd(v, 0, CmdNormalSprite, ModeHighSpeedShrink, 0x7FFF, verts, 32)
	writeCmd(v, 32, CmdEnd, 0, 0, [4]Point{}, 0)
	v.BeginFrame(100000)
	v.RunFrame()

	fb := v.FB[v.drawFB]
	if fb[0] != 0x7FFF {
		t.Fatalf("pixel (0,0) should be drawn, got %#x", fb[0])
	}
	if fb[1] != 0 {
		t.Fatalf("pixel (1,0) should be skipped by high-speed shrink, got %#x", fb[1])
	}
	if fb[FBWidth] != 0 {
		t.Fatalf("pixel (0,1) should be skipped by high-speed shrink, got %#x", fb[FBWidth])
	}
}
