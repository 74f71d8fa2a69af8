package infra

import (
	"sync"
	"time"

	"pixel-mural/mural/domain"

	"golang.org/x/time/rate"
)

// MsgRateStore é a proteção de transporte da borda websocket: um token
// bucket (x/time/rate) por origem, limitando quantas mensagens entrantes uma
// conexão pode disparar antes mesmo de chegar à admissão do canvas.
//
// Cache por chave com limpeza periódica, para origens inativas não
// acumularem estado.
type MsgRateStore struct {
	mu           sync.Mutex
	entries      map[string]*msgRateEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type msgRateEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type MsgRateOption func(*MsgRateStore)

func WithMsgRateIdleTTL(d time.Duration) MsgRateOption {
	return func(s *MsgRateStore) { s.idleTTL = d }
}

func WithMsgRateCleanupEvery(d time.Duration) MsgRateOption {
	return func(s *MsgRateStore) { s.cleanupEvery = d }
}

func NewMsgRateStore(rps float64, burst int, opts ...MsgRateOption) *MsgRateStore {
	s := &MsgRateStore{
		entries:      make(map[string]*msgRateEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implementa domain.LimiterStore.
func (s *MsgRateStore) Get(key domain.Key) domain.Limiter {
	return s.GetString(string(key))
}

func (s *MsgRateStore) GetString(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &msgRateEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *MsgRateStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa origens inativas
// periodicamente. Pare cancelando o contexto.
func (s *MsgRateStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
