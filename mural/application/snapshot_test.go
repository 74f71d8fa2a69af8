package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"pixel-mural/mural/domain"
)

type snapshotTiles struct {
	fakeTiles
	tiles map[string][]byte
}

func (s *snapshotTiles) SnapshotAll(context.Context) (map[string][]byte, error) {
	return s.tiles, nil
}

type recordingSnapshotStore struct {
	mu    sync.Mutex
	saves []map[string][]byte
}

func (r *recordingSnapshotStore) Save(_ context.Context, tiles map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, tiles)
	return nil
}

func (r *recordingSnapshotStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func TestSnapshotter_SavesOnTickAndStopsOnCancel(t *testing.T) {
	tiles := &snapshotTiles{tiles: map[string][]byte{domain.TileID(0, 0): {1, 2, 3, 4}}}
	store := &recordingSnapshotStore{}
	s := Snapshotter{Tiles: tiles, Store: store, Every: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for store.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no snapshot saved")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("snapshot loop did not stop")
	}
}

func TestSnapshotter_NoStoreIsNoop(t *testing.T) {
	s := Snapshotter{Tiles: &snapshotTiles{}, Every: time.Millisecond}

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return immediately without a store")
	}
}
