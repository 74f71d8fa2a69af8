package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Geometry descreve o canvas do processo: dimensões fixas e tamanho do tile.
//
// Imutável durante a vida do processo. Toda conversão de coordenada absoluta
// para (tile, offset) passa por aqui.
type Geometry struct {
	Width    int
	Height   int
	TileSize int
}

// Contains informa se a coordenada absoluta está dentro do canvas.
// É a única checagem de limites; ToTile assume entrada válida.
func (g Geometry) Contains(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// TilesX e TilesY são a extensão do canvas em tiles. O tile da borda pode ser
// parcial quando a dimensão não é múltipla de TileSize.
func (g Geometry) TilesX() int { return (g.Width + g.TileSize - 1) / g.TileSize }
func (g Geometry) TilesY() int { return (g.Height + g.TileSize - 1) / g.TileSize }

// ContainsTile informa se (tileX, tileY) é um tile que existe neste canvas.
// Pedir um tile fora da extensão não é um tile branco, é entrada inválida.
func (g Geometry) ContainsTile(tileX, tileY int) bool {
	return tileX >= 0 && tileX < g.TilesX() &&
		tileY >= 0 && tileY < g.TilesY()
}

// ToTile mapeia uma coordenada absoluta para (tileX, tileY, localX, localY).
//
// Função pura e total sobre entrada válida: o chamador valida limites antes.
func (g Geometry) ToTile(x, y int) (tileX, tileY, localX, localY int) {
	return x / g.TileSize, y / g.TileSize, x % g.TileSize, y % g.TileSize
}

// PixelIndex retorna o índice do pixel dentro do buffer do tile (row-major).
func (g Geometry) PixelIndex(localX, localY int) int {
	return localY*g.TileSize + localX
}

// ByteOffset retorna o offset em bytes do pixel dentro do buffer RGBA do tile.
func (g Geometry) ByteOffset(localX, localY int) int {
	return g.PixelIndex(localX, localY) * 4
}

// TileBytes é o tamanho do buffer de um tile: TileSize × TileSize × 4 (RGBA).
func (g Geometry) TileBytes() int {
	return g.TileSize * g.TileSize * 4
}

// WhiteTile sintetiza um buffer de tile inteiramente branco opaco.
// Um tile ausente no store é semanticamente idêntico a este buffer.
func (g Geometry) WhiteTile() []byte {
	buf := make([]byte, g.TileBytes())
	for i := range buf {
		buf[i] = 0xFF
	}
	return buf
}

// TileID monta o identificador textual de um tile ("tile:X:Y"),
// usado no protocolo (get_tiles) e como chave de snapshot.
func TileID(tileX, tileY int) string {
	return "tile:" + strconv.Itoa(tileX) + ":" + strconv.Itoa(tileY)
}

// ParseTileID faz o caminho inverso de TileID.
func ParseTileID(id string) (tileX, tileY int, err error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != "tile" {
		return 0, 0, ProtocolError{Msg: fmt.Sprintf("malformed tile id %q", id)}
	}
	tileX, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, ProtocolError{Msg: fmt.Sprintf("malformed tile id %q", id)}
	}
	tileY, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, ProtocolError{Msg: fmt.Sprintf("malformed tile id %q", id)}
	}
	return tileX, tileY, nil
}
