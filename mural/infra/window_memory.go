package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryWindowStore é a janela deslizante em memória: por chave, os
// timestamps dos eventos já admitidos, com limpeza periódica das chaves
// inativas.
type MemoryWindowStore struct {
	mu           sync.Mutex
	entries      map[string]*windowEntry
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type windowEntry struct {
	hits     []time.Time
	lastSeen time.Time
}

type WindowOption func(*MemoryWindowStore)

func WithWindowIdleTTL(d time.Duration) WindowOption {
	return func(s *MemoryWindowStore) { s.idleTTL = d }
}

func WithWindowCleanupEvery(d time.Duration) WindowOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

func NewMemoryWindowStore(opts ...WindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		entries:      make(map[string]*windowEntry),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow implementa domain.WindowLimiter: descarta hits mais antigos que
// now−window, admite (e registra now) só se a contagem restante < limit.
func (s *MemoryWindowStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		ent = &windowEntry{}
		s.entries[key] = ent
	}
	ent.lastSeen = now

	// poda in-place os hits expirados
	kept := ent.hits[:0]
	for _, at := range ent.hits {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	ent.hits = kept

	if len(ent.hits) >= limit {
		return false, nil
	}
	ent.hits = append(ent.hits, now)
	return true, nil
}

func (s *MemoryWindowStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas
// periodicamente. Pare cancelando o contexto.
func (s *MemoryWindowStore) StartJanitor(ctx DoneContext) {
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

// DoneContext é o mínimo necessário para aceitar context.Context sem acoplar
// as assinaturas dos janitors ao pacote context.
type DoneContext interface {
	Done() <-chan struct{}
}

var _ DoneContext = context.Context(nil)
