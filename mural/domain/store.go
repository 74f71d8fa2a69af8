package domain

import "context"

// TileStore é o dono exclusivo dos buffers de tile. Nenhum outro componente
// muta bytes de tile diretamente.
//
// A propriedade central do contrato é a atomicidade de SetPixel: a sequência
// "busca-ou-cria buffer, emenda os 4 bytes, persiste" é indivisível em
// relação a qualquer outro escritor do mesmo tile. Duas escritas
// concorrentes no mesmo pixel deixam o store com exatamente uma das duas
// cores por inteiro (a última aceita vence), nunca uma mistura de bytes.
type TileStore interface {
	// SetPixel grava a cor na coordenada absoluta. O chamador já validou
	// limites e formato da cor.
	SetPixel(ctx context.Context, x, y int, c Color) error

	// GetTile retorna o buffer RGBA do tile. Nunca retorna nil com erro nil:
	// tile ausente sintetiza o buffer branco padrão sem persisti-lo.
	GetTile(ctx context.Context, tileX, tileY int) ([]byte, error)

	// SnapshotAll retorna todos os tiles já gravados, indexados por TileID,
	// para persistência externa periódica.
	SnapshotAll(ctx context.Context) (map[string][]byte, error)
}

// SnapshotStore é a estratégia de persistência do snapshot periódico do
// canvas (um buffer por tile, endereçado pelo TileID).
//
// Implementações podem gravar em Postgres, disco, etc. O laço de snapshot
// trata erro como best-effort (loga e segue).
type SnapshotStore interface {
	Save(ctx context.Context, tiles map[string][]byte) error
}
