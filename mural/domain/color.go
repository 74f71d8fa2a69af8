package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Color é uma cor RGB de 3 bytes. O alfa é implicitamente opaco (0xFF)
// nas escritas do canvas.
type Color [3]byte

// ParseColor valida e converte uma cor no formato "#RRGGBB"
// (exatamente 6 dígitos hex com prefixo '#').
func ParseColor(s string) (Color, error) {
	if len(s) != 7 || s[0] != '#' {
		return Color{}, ValidationError{Msg: fmt.Sprintf("malformed color %q", s)}
	}
	raw, err := hex.DecodeString(strings.ToLower(s[1:]))
	if err != nil {
		return Color{}, ValidationError{Msg: fmt.Sprintf("malformed color %q", s)}
	}
	return Color{raw[0], raw[1], raw[2]}, nil
}

// Hex retorna a cor no formato "#rrggbb".
func (c Color) Hex() string {
	return "#" + hex.EncodeToString(c[:])
}

// RGBA retorna os 4 bytes gravados no buffer do tile.
func (c Color) RGBA() [4]byte {
	return [4]byte{c[0], c[1], c[2], 0xFF}
}

// MarshalJSON serializa a cor como string hex ("#rrggbb") no protocolo
// e no canal de fanout.
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Hex())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
