package mural

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"pixel-mural/mural/domain"
)

// Tipos de mensagem do protocolo. Payloads JSON com campo "type".
const (
	// cliente → servidor
	msgSetPixel   = "set_pixel"
	msgGetTiles   = "get_tiles"
	msgPlaceImage = "place_image"
	msgPlaceChunk = "place_image_chunk"
	msgCancel     = "cancel_image"
	msgPing       = "ping"

	// servidor → cliente
	msgPixel         = "pixel"
	msgTiles         = "tiles"
	msgPixelUpdate   = "pixel_update"
	msgDrawStarted   = "image_drawing_started"
	msgDrawProgress  = "image_drawing_progress"
	msgDrawComplete  = "image_drawing_complete"
	msgDrawCancelled = "image_drawing_cancelled"
	msgChunkReceived = "image_chunk_received"
	msgPong          = "pong"
	msgError         = "error"
)

type envelope struct {
	Type string `json:"type"`
}

type setPixelReq struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

type getTilesReq struct {
	Tiles []string `json:"tiles"`
}

type placeImageReq struct {
	StartX int         `json:"startX"`
	StartY int         `json:"startY"`
	Pixels []wirePixel `json:"pixels"`
}

type placeChunkReq struct {
	ImageID     string      `json:"imageId"`
	ChunkIndex  int         `json:"chunkIndex"`
	TotalChunks int         `json:"totalChunks"`
	StartX      int         `json:"startX"`
	StartY      int         `json:"startY"`
	Pixels      []wirePixel `json:"pixels"`
}

// wirePixel aceita o registro de pixel nas duas formas do protocolo:
// objeto {"dx":1,"dy":2,"color":"#aabbcc"} ou array [1,2,"#aabbcc"].
// A ambiguidade morre aqui; o núcleo só vê domain.Pixel.
type wirePixel struct {
	DX    int
	DY    int
	Color string
}

func (p *wirePixel) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		if len(arr) != 3 {
			return fmt.Errorf("pixel array must have 3 elements, got %d", len(arr))
		}
		if err := json.Unmarshal(arr[0], &p.DX); err != nil {
			return err
		}
		if err := json.Unmarshal(arr[1], &p.DY); err != nil {
			return err
		}
		return json.Unmarshal(arr[2], &p.Color)
	}

	var obj struct {
		DX    *int    `json:"dx"`
		DY    *int    `json:"dy"`
		Color *string `json:"color"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	if obj.DX == nil || obj.DY == nil || obj.Color == nil {
		return errors.New("pixel object must have dx, dy and color")
	}
	p.DX = *obj.DX
	p.DY = *obj.DY
	p.Color = *obj.Color
	return nil
}

// normalizePixels valida as cores e converte a lista da borda para o
// registro único do domínio.
func normalizePixels(in []wirePixel) ([]domain.Pixel, error) {
	out := make([]domain.Pixel, len(in))
	for i, wp := range in {
		c, err := domain.ParseColor(wp.Color)
		if err != nil {
			return nil, err
		}
		out[i] = domain.Pixel{DX: wp.DX, DY: wp.DY, Color: c}
	}
	return out, nil
}

// --- mensagens servidor → cliente ---

func mustEncode(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		// só acontece com bug de programação nos tipos daqui
		log.Printf("protocol: encode error: %v", err)
		return []byte(`{"type":"error","code":"server_error","message":"encode failure"}`)
	}
	return raw
}

func encodePixel(u domain.Update) []byte {
	return mustEncode(struct {
		Type      string       `json:"type"`
		X         int          `json:"x"`
		Y         int          `json:"y"`
		Color     domain.Color `json:"color"`
		Timestamp int64        `json:"timestamp"`
	}{msgPixel, u.X, u.Y, u.Color, u.Timestamp})
}

func encodeUpdate(u domain.Update) []byte {
	return mustEncode(struct {
		Type string `json:"type"`
		domain.Update
	}{msgPixelUpdate, u})
}

type tilePayload struct {
	TileX int    `json:"tileX"`
	TileY int    `json:"tileY"`
	Data  []byte `json:"data"` // base64 via encoding/json
}

func encodeTiles(tiles []tilePayload) []byte {
	return mustEncode(struct {
		Type  string        `json:"type"`
		Tiles []tilePayload `json:"tiles"`
	}{msgTiles, tiles})
}

func encodeDrawStarted(total int, estimate time.Duration) []byte {
	return mustEncode(struct {
		Type        string `json:"type"`
		TotalPixels int    `json:"totalPixels"`
		EstimateMs  int64  `json:"estimateMs"`
	}{msgDrawStarted, total, estimate.Milliseconds()})
}

func encodeDrawProgress(placed, total int) []byte {
	return mustEncode(struct {
		Type         string `json:"type"`
		PixelsPlaced int    `json:"pixelsPlaced"`
		Progress     int    `json:"progress"`
	}{msgDrawProgress, placed, placed * 100 / total})
}

func encodeDrawComplete(placed int) []byte {
	return mustEncode(struct {
		Type         string `json:"type"`
		PixelsPlaced int    `json:"pixelsPlaced"`
	}{msgDrawComplete, placed})
}

func encodeDrawCancelled(cancelled bool) []byte {
	return mustEncode(struct {
		Type      string `json:"type"`
		Cancelled bool   `json:"cancelled"`
	}{msgDrawCancelled, cancelled})
}

func encodeChunkReceived(imageID string, received, total int) []byte {
	return mustEncode(struct {
		Type           string `json:"type"`
		ImageID        string `json:"imageId"`
		ChunksReceived int    `json:"chunksReceived"`
		TotalChunks    int    `json:"totalChunks"`
	}{msgChunkReceived, imageID, received, total})
}

func encodePong() []byte {
	return mustEncode(struct {
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
	}{msgPong, time.Now().UnixMilli()})
}

func encodeError(err error) []byte {
	code := errorCode(err)
	msg := err.Error()
	// falha de storage vira erro genérico: detalhe interno não vaza pro cliente
	if code == "server_error" {
		msg = "internal server error"
	}
	return mustEncode(struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}{msgError, code, msg})
}

// errorCode traduz a taxonomia do domínio para o código de protocolo.
// Nenhum erro fecha a conexão.
func errorCode(err error) string {
	var (
		ve  domain.ValidationError
		rle domain.RateLimitError
		ce  domain.ConflictError
		se  domain.StorageError
		pe  domain.ProtocolError
	)
	switch {
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &rle):
		return "rate_limit_error"
	case errors.As(err, &ce):
		return "conflict_error"
	case errors.As(err, &se):
		return "server_error"
	case errors.As(err, &pe):
		return "protocol_error"
	default:
		return "server_error"
	}
}
