package application

import (
	"context"
	"fmt"
	"log"
	"time"

	"pixel-mural/mural/domain"
)

// Limite de ids por requisição get_tiles; acima disso é rejeitado.
const maxTilesPerRequest = 64

// TileData é um tile resolvido para resposta de get_tiles.
type TileData struct {
	TileX int
	TileY int
	Data  []byte
}

// Service concentra as operações diretas do canvas: escrita de um pixel e
// leitura de tiles. Desenho em massa fica no Placer, remontagem no Uploads.
type Service struct {
	Geo       domain.Geometry
	Tiles     domain.TileStore
	Admission Admission
	Fanout    domain.Fanout
}

// SetPixel valida, admite, grava atomicamente e publica a mutação no fanout.
//
// origin é a identidade opaca da conexão (vai no update publicado);
// key é a identidade remota usada na admissão (sobrevive a reconexões).
func (s *Service) SetPixel(ctx context.Context, origin, key string, x, y int, colorHex string) (domain.Update, error) {
	if !s.Geo.Contains(x, y) {
		return domain.Update{}, domain.ValidationError{Msg: "pixel out of canvas bounds"}
	}
	c, err := domain.ParseColor(colorHex)
	if err != nil {
		return domain.Update{}, err
	}

	dec := s.Admission.Decide(ctx, key, domain.OpPixel)
	if !dec.Allowed {
		return domain.Update{}, domain.RateLimitError{RetryAfter: dec.RetryAfter}
	}

	if err := s.Tiles.SetPixel(ctx, x, y, c); err != nil {
		return domain.Update{}, domain.StorageError{Op: "set pixel", Err: err}
	}

	u := domain.Update{
		X:         x,
		Y:         y,
		Color:     c,
		Timestamp: time.Now().UnixMilli(),
		Origin:    origin,
	}
	s.publish(ctx, u)
	return u, nil
}

// GetTiles resolve uma lista de ids "tile:X:Y" em buffers RGBA.
// Tiles nunca escritos vêm como o buffer branco padrão.
func (s *Service) GetTiles(ctx context.Context, ids []string) ([]TileData, error) {
	if len(ids) == 0 {
		return nil, domain.ValidationError{Msg: "empty tile list"}
	}
	if len(ids) > maxTilesPerRequest {
		return nil, domain.ValidationError{Msg: "too many tiles in one request"}
	}

	out := make([]TileData, 0, len(ids))
	for _, id := range ids {
		tx, ty, err := domain.ParseTileID(id)
		if err != nil {
			return nil, err
		}
		if !s.Geo.ContainsTile(tx, ty) {
			return nil, domain.ValidationError{Msg: fmt.Sprintf("tile %s out of canvas extent", id)}
		}
		buf, err := s.Tiles.GetTile(ctx, tx, ty)
		if err != nil {
			return nil, domain.StorageError{Op: "get tile", Err: err}
		}
		out = append(out, TileData{TileX: tx, TileY: ty, Data: buf})
	}
	return out, nil
}

// Snapshot devolve o mapeamento tile-id → buffer para persistência externa.
func (s *Service) Snapshot(ctx context.Context) (map[string][]byte, error) {
	tiles, err := s.Tiles.SnapshotAll(ctx)
	if err != nil {
		return nil, domain.StorageError{Op: "snapshot", Err: err}
	}
	return tiles, nil
}

// publish é fire-and-forget: falha de publicação não desfaz a escrita já
// aceita, só é logada.
func (s *Service) publish(ctx context.Context, u domain.Update) {
	if s.Fanout == nil {
		return
	}
	if err := s.Fanout.Publish(ctx, u); err != nil {
		log.Printf("fanout: publish error: %v", err)
	}
}
