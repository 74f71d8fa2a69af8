package infra

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSnapshotStore persiste o snapshot periódico do canvas em Postgres:
// uma linha por tile, sobrescrita a cada snapshot.
type PGSnapshotStore struct {
	pool  *pgxpool.Pool
	table string
}

type PGSnapshotOption func(*PGSnapshotStore)

func WithSnapshotTable(table string) PGSnapshotOption {
	return func(s *PGSnapshotStore) { s.table = table }
}

func NewPGSnapshotStore(pool *pgxpool.Pool, opts ...PGSnapshotOption) *PGSnapshotStore {
	s := &PGSnapshotStore{
		pool:  pool,
		table: "mural_tiles",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema cria a tabela de tiles se ainda não existir.
func (s *PGSnapshotStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			tile_id    text PRIMARY KEY,
			data       bytea NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *PGSnapshotStore) Save(ctx context.Context, tiles map[string][]byte) error {
	batch := &pgx.Batch{}
	for id, buf := range tiles {
		batch.Queue(`
			INSERT INTO `+s.table+` (tile_id, data, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (tile_id) DO UPDATE
			SET data = EXCLUDED.data, updated_at = now()`,
			id, buf)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer func() { _ = res.Close() }()

	for range tiles {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}
	return nil
}
