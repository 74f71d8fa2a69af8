package domain

import (
	"context"
	"time"
)

// Classes de admissão do canvas. Cada uma tem sua própria política de
// janela deslizante.
const (
	OpPixel = "pixel"
	OpImage = "image"
)

// StatsEvent representa uma decisão de admissão do canvas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key sem controle pode
// explodir o número de chaves em uma base como Redis).
type StatsEvent struct {
	Key     Key
	Op      string
	Allowed bool

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de admissão.
//
// Implementações podem armazenar em Redis, memória, etc.
// O chamador deve tratar erro como best-effort (não derrubar a operação).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
