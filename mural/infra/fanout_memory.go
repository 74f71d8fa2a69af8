package infra

import (
	"context"
	"sync"

	"pixel-mural/mural/domain"
)

// MemoryFanout distribui updates dentro do processo. Cada assinante tem um
// canal com buffer; assinante lento perde updates em vez de travar o
// publicador (o cliente reconverge pela leitura de tiles).
type MemoryFanout struct {
	mu     sync.Mutex
	subs   map[int]chan domain.Update
	nextID int
	buffer int
}

type MemoryFanoutOption func(*MemoryFanout)

func WithFanoutBuffer(n int) MemoryFanoutOption {
	return func(f *MemoryFanout) { f.buffer = n }
}

func NewMemoryFanout(opts ...MemoryFanoutOption) *MemoryFanout {
	f := &MemoryFanout{
		subs:   make(map[int]chan domain.Update),
		buffer: 256,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *MemoryFanout) Publish(_ context.Context, u domain.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- u:
		default:
			// assinante sem folga no buffer: descarta
		}
	}
	return nil
}

func (f *MemoryFanout) Subscribe(ctx context.Context) (<-chan domain.Update, error) {
	ch := make(chan domain.Update, f.buffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
