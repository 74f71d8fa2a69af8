package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pixel-mural/mural/domain"
)

// fakeTiles implementa domain.TileStore guardando pixels num mapa.
type fakeTiles struct {
	mu     sync.Mutex
	geo    domain.Geometry
	pixels map[[2]int]domain.Color
	setErr error
}

func newFakeTiles(geo domain.Geometry) *fakeTiles {
	return &fakeTiles{geo: geo, pixels: make(map[[2]int]domain.Color)}
}

func (f *fakeTiles) SetPixel(_ context.Context, x, y int, c domain.Color) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pixels[[2]int{x, y}] = c
	return nil
}

func (f *fakeTiles) GetTile(_ context.Context, tileX, tileY int) ([]byte, error) {
	buf := f.geo.WhiteTile()
	f.mu.Lock()
	defer f.mu.Unlock()
	for pos, c := range f.pixels {
		tx, ty, lx, ly := f.geo.ToTile(pos[0], pos[1])
		if tx != tileX || ty != tileY {
			continue
		}
		rgba := c.RGBA()
		copy(buf[f.geo.ByteOffset(lx, ly):], rgba[:])
	}
	return buf, nil
}

func (f *fakeTiles) SnapshotAll(_ context.Context) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}

type recordingFanout struct {
	mu      sync.Mutex
	updates []domain.Update
}

func (r *recordingFanout) Publish(_ context.Context, u domain.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *recordingFanout) Subscribe(context.Context) (<-chan domain.Update, error) {
	ch := make(chan domain.Update)
	close(ch)
	return ch, nil
}

func (r *recordingFanout) all() []domain.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Update(nil), r.updates...)
}

func testService(geo domain.Geometry) (*Service, *fakeTiles, *recordingFanout) {
	tiles := newFakeTiles(geo)
	fan := &recordingFanout{}
	svc := &Service{Geo: geo, Tiles: tiles, Fanout: fan}
	return svc, tiles, fan
}

func TestService_SetPixelWritesAndPublishes(t *testing.T) {
	geo := domain.Geometry{Width: 100, Height: 100, TileSize: 16}
	svc, tiles, fan := testService(geo)

	u, err := svc.SetPixel(context.Background(), "conn-1", "10.0.0.1", 5, 7, "#ff0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.X != 5 || u.Y != 7 || u.Color != (domain.Color{0xFF, 0, 0}) || u.Origin != "conn-1" {
		t.Fatalf("unexpected update: %+v", u)
	}
	if u.Timestamp == 0 {
		t.Fatalf("expected timestamp to be set")
	}

	if got := tiles.pixels[[2]int{5, 7}]; got != (domain.Color{0xFF, 0, 0}) {
		t.Fatalf("expected pixel stored, got %v", got)
	}
	if got := fan.all(); len(got) != 1 {
		t.Fatalf("expected 1 published update, got %d", len(got))
	}
}

func TestService_SetPixelOutOfBounds(t *testing.T) {
	geo := domain.Geometry{Width: 10, Height: 10, TileSize: 4}
	svc, _, fan := testService(geo)

	_, err := svc.SetPixel(context.Background(), "c", "k", 10, 0, "#ff0000")
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(fan.all()) != 0 {
		t.Fatalf("expected nothing published")
	}
}

func TestService_SetPixelMalformedColor(t *testing.T) {
	geo := domain.Geometry{Width: 10, Height: 10, TileSize: 4}
	svc, _, _ := testService(geo)

	_, err := svc.SetPixel(context.Background(), "c", "k", 1, 1, "red")
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestService_SetPixelDeniedByAdmission(t *testing.T) {
	geo := domain.Geometry{Width: 10, Height: 10, TileSize: 4}
	svc, tiles, _ := testService(geo)
	svc.Admission = Admission{
		Limiter: &fakeWindow{allow: false},
		Pixel:   Policy{Limit: 1, Window: 1},
	}

	_, err := svc.SetPixel(context.Background(), "c", "k", 1, 1, "#00ff00")
	var rle domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if len(tiles.pixels) != 0 {
		t.Fatalf("expected no write when denied")
	}
}

func TestService_SetPixelStorageError(t *testing.T) {
	geo := domain.Geometry{Width: 10, Height: 10, TileSize: 4}
	svc, tiles, fan := testService(geo)
	tiles.setErr = errors.New("boom")

	_, err := svc.SetPixel(context.Background(), "c", "k", 1, 1, "#00ff00")
	var se domain.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if len(fan.all()) != 0 {
		t.Fatalf("expected nothing published on storage error")
	}
}

func TestService_GetTilesResolvesIDs(t *testing.T) {
	geo := domain.Geometry{Width: 32, Height: 32, TileSize: 16}
	svc, _, _ := testService(geo)

	if _, err := svc.SetPixel(context.Background(), "c", "k", 17, 1, "#0000ff"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := svc.GetTiles(context.Background(), []string{"tile:1:0", "tile:0:1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(out))
	}

	// tile:1:0 tem o pixel (17,1) => local (1,1)
	off := geo.ByteOffset(1, 1)
	got := out[0].Data[off : off+4]
	if got[0] != 0 || got[1] != 0 || got[2] != 0xFF || got[3] != 0xFF {
		t.Fatalf("unexpected pixel bytes: %v", got)
	}

	// tile:0:1 nunca foi escrito => branco
	for i, b := range out[1].Data {
		if b != 0xFF {
			t.Fatalf("expected white tile, got %#x at %d", b, i)
		}
	}
}

func TestService_GetTilesRejectsBadInput(t *testing.T) {
	geo := domain.Geometry{Width: 32, Height: 32, TileSize: 16}
	svc, _, _ := testService(geo)

	if _, err := svc.GetTiles(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty list")
	}

	_, err := svc.GetTiles(context.Background(), []string{"nope"})
	var pe domain.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}

	many := make([]string, maxTilesPerRequest+1)
	for i := range many {
		many[i] = "tile:0:0"
	}
	_, err = svc.GetTiles(context.Background(), many)
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for oversized list, got %v", err)
	}
}

func TestService_GetTilesRejectsTilesOutsideCanvas(t *testing.T) {
	// 32x32 com tile 16 => tiles válidos 0..1 em cada eixo
	geo := domain.Geometry{Width: 32, Height: 32, TileSize: 16}
	svc, _, _ := testService(geo)

	for _, id := range []string{"tile:2:0", "tile:0:2", "tile:-1:0", "tile:999999:999999"} {
		_, err := svc.GetTiles(context.Background(), []string{id})
		var ve domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for %s, got %v", id, err)
		}
	}
}
