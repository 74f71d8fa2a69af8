package domain

import "testing"

func TestGeometry_ToTileReferenceExample(t *testing.T) {
	g := Geometry{Width: 4000, Height: 4000, TileSize: 256}

	// exemplo de referência: (1234, 567) em canvas 4000x4000, tile 256
	tx, ty, lx, ly := g.ToTile(1234, 567)
	if tx != 4 || ty != 2 {
		t.Fatalf("expected tile (4,2), got (%d,%d)", tx, ty)
	}
	if lx != 210 || ly != 55 {
		t.Fatalf("expected local (210,55), got (%d,%d)", lx, ly)
	}
	if idx := g.PixelIndex(lx, ly); idx != 14290 {
		t.Fatalf("expected pixel index 14290, got %d", idx)
	}
	if off := g.ByteOffset(lx, ly); off != 57160 {
		t.Fatalf("expected byte offset 57160, got %d", off)
	}
}

func TestGeometry_Contains(t *testing.T) {
	g := Geometry{Width: 100, Height: 50, TileSize: 16}

	cases := []struct {
		x, y int
		want bool
	}{
		{0, 0, true},
		{99, 49, true},
		{100, 0, false},
		{0, 50, false},
		{-1, 10, false},
		{10, -1, false},
	}
	for _, c := range cases {
		if got := g.Contains(c.x, c.y); got != c.want {
			t.Fatalf("Contains(%d,%d) = %v, want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestGeometry_WhiteTileIsOpaqueWhite(t *testing.T) {
	g := Geometry{Width: 64, Height: 64, TileSize: 8}

	buf := g.WhiteTile()
	if len(buf) != 8*8*4 {
		t.Fatalf("expected %d bytes, got %d", 8*8*4, len(buf))
	}
	for i, b := range buf {
		if b != 0xFF {
			t.Fatalf("expected 0xFF at %d, got %#x", i, b)
		}
	}
}

func TestGeometry_ContainsTile(t *testing.T) {
	g := Geometry{Width: 4000, Height: 4000, TileSize: 256}

	cases := []struct {
		tx, ty int
		want   bool
	}{
		{0, 0, true},
		{15, 15, true},
		{16, 0, false},
		{0, 16, false},
		{-1, 0, false},
		{999999, 999999, false},
	}
	for _, c := range cases {
		if got := g.ContainsTile(c.tx, c.ty); got != c.want {
			t.Fatalf("ContainsTile(%d,%d) = %v, want %v", c.tx, c.ty, got, c.want)
		}
	}
}

func TestTileID_RoundTrip(t *testing.T) {
	id := TileID(4, 2)
	if id != "tile:4:2" {
		t.Fatalf("expected tile:4:2, got %q", id)
	}

	tx, ty, err := ParseTileID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx != 4 || ty != 2 {
		t.Fatalf("expected (4,2), got (%d,%d)", tx, ty)
	}
}

func TestParseTileID_Malformed(t *testing.T) {
	for _, id := range []string{"", "tile:4", "pixel:4:2", "tile:a:2", "tile:4:b", "tile:4:2:9"} {
		if _, _, err := ParseTileID(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}
