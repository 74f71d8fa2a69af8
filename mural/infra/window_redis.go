package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript faz a sequência poda-conta-registra numa única chamada
// scriptada: o Redis executa scripts atomicamente, então chamadores
// concorrentes (inclusive processos pares) nunca observam a mesma contagem
// e estouram o limite juntos.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisWindowStore é a janela deslizante compartilhada entre processos:
// um sorted set por chave, score = timestamp do evento admitido.
//
// Erros de Redis sobem para o chamador; quem decide fail-open é a camada de
// aplicação, não o store.
type RedisWindowStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisWindowOption func(*RedisWindowStore)

func WithRedisWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisWindowStore(rdb *redis.Client, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "mural:rate",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	rkey := s.prefix + ":" + key

	allowed, err := allowScript.Run(ctx, s.rdb,
		[]string{rkey},
		strconv.FormatInt(now.Add(-window).UnixMilli(), 10),
		limit,
		now.UnixMilli(),
		// membro único por evento; a chave inteira expira quando a origem some
		strconv.FormatInt(now.UnixNano(), 10),
		window.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return allowed == 1, nil
}
