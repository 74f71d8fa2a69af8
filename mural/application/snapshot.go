package application

import (
	"context"
	"log"
	"time"

	"pixel-mural/mural/domain"
)

// Snapshotter entrega o snapshot completo do canvas (tile-id → buffer) ao
// colaborador de persistência em período fixo.
//
// Falhas são logadas e o laço segue; o snapshot é best-effort por desenho.
type Snapshotter struct {
	Tiles domain.TileStore
	Store domain.SnapshotStore
	Every time.Duration
}

// Run bloqueia até ctx encerrar. Normalmente roda como goroutine do binário.
func (s Snapshotter) Run(ctx context.Context) {
	if s.Store == nil || s.Every <= 0 {
		return
	}

	t := time.NewTicker(s.Every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.snapshotOnce(ctx)
		}
	}
}

func (s Snapshotter) snapshotOnce(ctx context.Context) {
	tiles, err := s.Tiles.SnapshotAll(ctx)
	if err != nil {
		log.Printf("snapshot: read error: %v", err)
		return
	}
	if len(tiles) == 0 {
		return
	}
	if err := s.Store.Save(ctx, tiles); err != nil {
		log.Printf("snapshot: save error: %v", err)
		return
	}
	log.Printf("snapshot: saved %d tiles", len(tiles))
}
