package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pixel-mural/mural/domain"
)

type testListener struct {
	mu       sync.Mutex
	started  []int
	estimate time.Duration
	progress []int
	complete chan int
}

func newTestListener() *testListener {
	return &testListener{complete: make(chan int, 1)}
}

func (l *testListener) DrawingStarted(total int, estimate time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, total)
	l.estimate = estimate
}

func (l *testListener) DrawingProgress(placed, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, placed)
}

func (l *testListener) DrawingComplete(placed int) {
	l.complete <- placed
}

func (l *testListener) snapshotProgress() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.progress...)
}

func gradientPixels(n int) []domain.Pixel {
	out := make([]domain.Pixel, n)
	for i := range out {
		out[i] = domain.Pixel{DX: i % 100, DY: i / 100, Color: domain.Color{byte(i), byte(i >> 8), 0}}
	}
	return out
}

func TestPlacer_DrainsWithProgressAndComplete(t *testing.T) {
	geo := domain.Geometry{Width: 4000, Height: 4000, TileSize: 256}
	tiles := newFakeTiles(geo)
	fan := &recordingFanout{}
	p := NewPlacer(geo, tiles, fan, Admission{}, WithDrainRate(50, time.Millisecond))

	l := newTestListener()
	pixels := gradientPixels(1200)
	if err := p.Place(context.Background(), "conn-1", "k", 100, 200, pixels, l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var placed int
	select {
	case placed = <-l.complete:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for completion")
	}
	if placed != 1200 {
		t.Fatalf("expected 1200 placed, got %d", placed)
	}

	if len(l.started) != 1 || l.started[0] != 1200 {
		t.Fatalf("expected exactly one started event with total 1200, got %v", l.started)
	}
	if l.estimate != 24*time.Millisecond {
		t.Fatalf("expected estimate 24ms (24 ticks), got %s", l.estimate)
	}

	// progresso em 500 e 1000, nunca em 1200 (que vira o complete)
	got := l.snapshotProgress()
	if len(got) != 2 || got[0] != 500 || got[1] != 1000 {
		t.Fatalf("expected progress [500 1000], got %v", got)
	}

	tiles.mu.Lock()
	stored := len(tiles.pixels)
	tiles.mu.Unlock()
	if stored != 1200 {
		t.Fatalf("expected 1200 pixels stored, got %d", stored)
	}
	if got := len(fan.all()); got != 1200 {
		t.Fatalf("expected 1200 published updates, got %d", got)
	}

	if p.Active("conn-1") {
		t.Fatalf("expected job slot freed after completion")
	}
}

func TestPlacer_SecondJobSameOwnerConflicts(t *testing.T) {
	geo := domain.Geometry{Width: 100, Height: 100, TileSize: 16}
	tiles := newFakeTiles(geo)
	p := NewPlacer(geo, tiles, nil, Admission{}, WithDrainRate(1, 50*time.Millisecond))

	l := newTestListener()
	if err := p.Place(context.Background(), "conn-1", "k", 0, 0, gradientPixels(100), l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := p.Place(context.Background(), "conn-1", "k", 0, 0, gradientPixels(10), newTestListener())
	var ce domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// outra identidade pode desenhar em paralelo
	if err := p.Place(context.Background(), "conn-2", "k2", 0, 0, gradientPixels(10), newTestListener()); err != nil {
		t.Fatalf("unexpected error for second owner: %v", err)
	}

	p.Cancel("conn-1")
	p.Cancel("conn-2")
}

func TestPlacer_CancelStopsFurtherBatches(t *testing.T) {
	geo := domain.Geometry{Width: 100, Height: 100, TileSize: 16}
	tiles := newFakeTiles(geo)
	p := NewPlacer(geo, tiles, nil, Admission{}, WithDrainRate(1, time.Millisecond))

	l := newTestListener()
	if err := p.Place(context.Background(), "conn-1", "k", 0, 0, gradientPixels(5000), l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// espera algum pixel ser aplicado antes de cancelar
	deadline := time.Now().Add(time.Second)
	for {
		tiles.mu.Lock()
		n := len(tiles.pixels)
		tiles.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no pixel applied before cancel")
		}
		time.Sleep(time.Millisecond)
	}

	if !p.Cancel("conn-1") {
		t.Fatalf("expected active job to be cancelled")
	}

	// o dreno para: a contagem estabiliza abaixo do total
	time.Sleep(20 * time.Millisecond)
	tiles.mu.Lock()
	after := len(tiles.pixels)
	tiles.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	tiles.mu.Lock()
	final := len(tiles.pixels)
	tiles.mu.Unlock()

	if final != after {
		t.Fatalf("expected draining to stop, got %d then %d", after, final)
	}
	if final >= 5000 {
		t.Fatalf("expected partial application, got %d", final)
	}
	if p.Active("conn-1") {
		t.Fatalf("expected no active job after cancel")
	}

	select {
	case <-l.complete:
		t.Fatalf("cancelled job must not complete")
	default:
	}
}

func TestPlacer_OwnerContextCancelStopsJob(t *testing.T) {
	geo := domain.Geometry{Width: 100, Height: 100, TileSize: 16}
	tiles := newFakeTiles(geo)
	p := NewPlacer(geo, tiles, nil, Admission{}, WithDrainRate(1, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Place(ctx, "conn-1", "k", 0, 0, gradientPixels(5000), newTestListener()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// desconexão do dono = cancelamento do contexto da conexão
	cancel()

	deadline := time.Now().Add(time.Second)
	for p.Active("conn-1") {
		if time.Now().After(deadline) {
			t.Fatalf("job did not stop after owner context cancel")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPlacer_RejectsInvalidImages(t *testing.T) {
	geo := domain.Geometry{Width: 10, Height: 10, TileSize: 4}
	p := NewPlacer(geo, newFakeTiles(geo), nil, Admission{}, WithMaxPixels(4))

	var ve domain.ValidationError

	err := p.Place(context.Background(), "c", "k", 0, 0, nil, newTestListener())
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for empty list, got %v", err)
	}

	err = p.Place(context.Background(), "c", "k", 8, 8, []domain.Pixel{px(5, 0)}, newTestListener())
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for out of bounds, got %v", err)
	}

	err = p.Place(context.Background(), "c", "k", 0, 0, gradientPixels(5), newTestListener())
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for oversized image, got %v", err)
	}
}

func TestPlacer_DeniedByImageAdmission(t *testing.T) {
	geo := domain.Geometry{Width: 100, Height: 100, TileSize: 16}
	adm := Admission{Limiter: &fakeWindow{allow: false}, Image: Policy{Limit: 10, Window: time.Minute}}
	p := NewPlacer(geo, newFakeTiles(geo), nil, adm)

	err := p.Place(context.Background(), "c", "k", 0, 0, gradientPixels(5), newTestListener())
	var rle domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if p.Active("c") {
		t.Fatalf("expected no job registered when denied")
	}
}

type emptyPool struct{}

func (emptyPool) Acquire(ctx context.Context) (func(), bool) {
	<-ctx.Done()
	return nil, false
}

func TestPlacer_NoJobSlotFreesIdentity(t *testing.T) {
	geo := domain.Geometry{Width: 100, Height: 100, TileSize: 16}
	p := NewPlacer(geo, newFakeTiles(geo), nil, Admission{},
		WithJobPool(emptyPool{}, 5*time.Millisecond))

	err := p.Place(context.Background(), "c", "k", 0, 0, gradientPixels(5), newTestListener())
	var rle domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError when pool is exhausted, got %v", err)
	}

	// a vaga da identidade foi liberada: sem conflito fantasma
	if p.Active("c") {
		t.Fatalf("expected identity slot freed after pool rejection")
	}
}
