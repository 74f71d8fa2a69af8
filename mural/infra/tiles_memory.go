package infra

import (
	"context"
	"sync"

	"pixel-mural/mural/domain"
)

// MemoryTileStore guarda os tiles no processo. É o caminho padrão de
// desenvolvimento/teste e de instância única; com múltiplos processos use o
// RedisTileStore.
//
// Atomicidade: cada tile tem seu próprio mutex; a emenda dos 4 bytes roda
// inteira dentro da seção crítica do tile, então escritas concorrentes no
// mesmo pixel terminam com uma das cores por inteiro.
type MemoryTileStore struct {
	geo domain.Geometry

	mu    sync.Mutex
	tiles map[string]*memoryTile
}

type memoryTile struct {
	mu  sync.Mutex
	buf []byte
}

func NewMemoryTileStore(geo domain.Geometry) *MemoryTileStore {
	return &MemoryTileStore{
		geo:   geo,
		tiles: make(map[string]*memoryTile),
	}
}

// tile busca-ou-cria a entrada do tile. Só o mapa é protegido aqui; o buffer
// é protegido pelo mutex do próprio tile.
func (s *MemoryTileStore) tile(tileX, tileY int) *memoryTile {
	id := domain.TileID(tileX, tileY)

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tiles[id]; ok {
		return t
	}
	t := &memoryTile{buf: s.geo.WhiteTile()}
	s.tiles[id] = t
	return t
}

func (s *MemoryTileStore) SetPixel(_ context.Context, x, y int, c domain.Color) error {
	tileX, tileY, localX, localY := s.geo.ToTile(x, y)
	t := s.tile(tileX, tileY)
	rgba := c.RGBA()

	t.mu.Lock()
	copy(t.buf[s.geo.ByteOffset(localX, localY):], rgba[:])
	t.mu.Unlock()
	return nil
}

func (s *MemoryTileStore) GetTile(_ context.Context, tileX, tileY int) ([]byte, error) {
	id := domain.TileID(tileX, tileY)

	s.mu.Lock()
	t, ok := s.tiles[id]
	s.mu.Unlock()

	// tile ausente = tile branco; não persiste o buffer sintetizado
	if !ok {
		return s.geo.WhiteTile(), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, len(t.buf))
	copy(out, t.buf)
	return out, nil
}

func (s *MemoryTileStore) SnapshotAll(_ context.Context) (map[string][]byte, error) {
	s.mu.Lock()
	ids := make(map[string]*memoryTile, len(s.tiles))
	for id, t := range s.tiles {
		ids[id] = t
	}
	s.mu.Unlock()

	out := make(map[string][]byte, len(ids))
	for id, t := range ids {
		t.mu.Lock()
		buf := make([]byte, len(t.buf))
		copy(buf, t.buf)
		t.mu.Unlock()
		out[id] = buf
	}
	return out, nil
}
