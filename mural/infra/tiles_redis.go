package infra

import (
	"context"
	"strings"

	"pixel-mural/mural/domain"

	"github.com/redis/go-redis/v9"
)

// setPixelScript faz a sequência busca-ou-cria/emenda numa única chamada
// scriptada: o Redis executa scripts atomicamente, então dois SetPixel
// concorrentes no mesmo tile nunca se intercalam.
var setPixelScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('SET', KEYS[1], string.rep('\255', tonumber(ARGV[1])))
end
redis.call('SETRANGE', KEYS[1], tonumber(ARGV[2]), ARGV[3])
return 1
`)

// RedisTileStore guarda os tiles como strings binárias no Redis, um
// processo-compartilhado: todos os servidores cooperantes enxergam o mesmo
// canvas. A ordem em que o Redis serializa os comandos define a ordem de
// aceitação das escritas ("last accepted wins").
type RedisTileStore struct {
	rdb    *redis.Client
	geo    domain.Geometry
	prefix string
}

type RedisTileOption func(*RedisTileStore)

func WithTilePrefix(prefix string) RedisTileOption {
	return func(s *RedisTileStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisTileStore(rdb *redis.Client, geo domain.Geometry, opts ...RedisTileOption) *RedisTileStore {
	s := &RedisTileStore{
		rdb:    rdb,
		geo:    geo,
		prefix: "mural",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisTileStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisTileStore) SetPixel(ctx context.Context, x, y int, c domain.Color) error {
	tileX, tileY, localX, localY := s.geo.ToTile(x, y)
	rgba := c.RGBA()

	return setPixelScript.Run(ctx, s.rdb,
		[]string{s.key(domain.TileID(tileX, tileY))},
		s.geo.TileBytes(),
		s.geo.ByteOffset(localX, localY),
		string(rgba[:]),
	).Err()
}

func (s *RedisTileStore) GetTile(ctx context.Context, tileX, tileY int) ([]byte, error) {
	buf, err := s.rdb.Get(ctx, s.key(domain.TileID(tileX, tileY))).Bytes()
	if err == redis.Nil {
		return s.geo.WhiteTile(), nil
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *RedisTileStore) SnapshotAll(ctx context.Context) (map[string][]byte, error) {
	pattern := s.prefix + ":tile:*"
	out := make(map[string][]byte)

	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return out, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Get(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for i, cmd := range cmds {
		buf, err := cmd.Bytes()
		if err == redis.Nil {
			// chave sumiu entre o scan e o get; tile ausente = branco, pula
			continue
		}
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(keys[i], s.prefix+":")] = buf
	}
	return out, nil
}
