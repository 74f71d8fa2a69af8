package domain

import (
	"context"
	"time"
)

type Key string

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Usado na borda websocket como proteção de transporte (throttle de
// mensagens por conexão); a implementação pode ser token-bucket via
// golang.org/x/time/rate.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP de origem).
// A implementação pode manter cache, TTL, etc.
type LimiterStore interface {
	Get(Key) Limiter
}

// WindowLimiter é a admissão de janela deslizante do canvas: mantém, por
// chave, os timestamps dos eventos já admitidos; descarta os mais antigos
// que now−window antes de contar; admite (e registra now) apenas se a
// contagem restante for menor que limit.
//
// Um erro aqui significa que o backing store falhou; a camada de aplicação
// decide fail-open (admitir) nesse caso, nunca esta interface.
type WindowLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Decision é o resultado de uma checagem de admissão.
type Decision struct {
	Allowed bool
	// RetryAfter é a recomendação de espera quando bloquear. Se 0, não há.
	RetryAfter time.Duration
}
