package mural

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pixel-mural/mural/domain"
)

// client é uma conexão websocket ativa: identidade opaca (uuid), chave
// remota para rate limit e o canal de escrita consumido pelo writePump.
//
// O contexto da conexão é cancelado na desconexão; jobs de desenho herdam
// esse contexto, então desconectar cancela o job sem passo extra.
//
// Vários produtores escrevem em send (readPump, hub, callbacks do Placer),
// então o canal nunca é fechado; o encerramento é sinalizado por done.
type client struct {
	id   string
	key  string
	sock *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	srv    *Server
	ctx    context.Context
	cancel context.CancelFunc
}

// shutdown sinaliza o fim da conexão para o writePump e para qualquer
// produtor. Seguro chamar de qualquer goroutine, quantas vezes for.
func (c *client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue entrega uma mensagem ao writePump sem bloquear o chamador.
// Depois do shutdown vira no-op: produtores atrasados (readPump, callbacks de
// desenho) não podem derrubar o processo.
func (c *client) enqueue(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		log.Printf("client %s: send buffer full, dropping message", c.id)
	}
}

// readPump lê mensagens até a conexão cair e despacha cada uma.
// A limpeza na saída é transacional: cancela o job de desenho e descarta as
// sessões de upload da conexão antes de sair.
func (c *client) readPump() {
	defer func() {
		c.cancel()
		c.shutdown()
		c.srv.opts.Placer.Cancel(c.id)
		if n := c.srv.opts.Uploads.DiscardOwner(c.id); n > 0 {
			log.Printf("client %s: discarded %d upload sessions on disconnect", c.id, n)
		}
		select {
		case c.srv.hub.unregister <- c:
		case <-c.srv.ctx.Done():
		}
		_ = c.sock.Close()
	}()

	var msgLimiter domain.Limiter
	if c.srv.opts.MsgRates != nil {
		msgLimiter = c.srv.opts.MsgRates.Get(domain.Key(c.key))
	}

	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			log.Printf("client %s: disconnected: %v", c.id, err)
			return
		}

		if msgLimiter != nil && !msgLimiter.Allow() {
			c.enqueue(encodeError(domain.RateLimitError{RetryAfter: time.Second}))
			continue
		}

		c.dispatch(raw)
	}
}

func (c *client) writePump() {
	defer func() { _ = c.sock.Close() }()
	for {
		select {
		case <-c.done:
			_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			if err := c.sock.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// dispatch decodifica o envelope e executa a operação. Erro nunca fecha a
// conexão: vira uma mensagem de erro para o autor.
func (c *client) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.enqueue(encodeError(domain.ProtocolError{Msg: "unparsable payload"}))
		return
	}

	switch env.Type {
	case msgSetPixel:
		c.handleSetPixel(raw)
	case msgGetTiles:
		c.handleGetTiles(raw)
	case msgPlaceImage:
		c.handlePlaceImage(raw)
	case msgPlaceChunk:
		c.handlePlaceChunk(raw)
	case msgCancel:
		c.enqueue(encodeDrawCancelled(c.srv.opts.Placer.Cancel(c.id)))
	case msgPing:
		c.enqueue(encodePong())
	default:
		c.enqueue(encodeError(domain.ProtocolError{Msg: "unknown message type " + env.Type}))
	}
}

func (c *client) handleSetPixel(raw []byte) {
	var req setPixelReq
	if err := json.Unmarshal(raw, &req); err != nil {
		c.enqueue(encodeError(domain.ProtocolError{Msg: "unparsable set_pixel payload"}))
		return
	}

	u, err := c.srv.opts.Service.SetPixel(c.ctx, c.id, c.key, req.X, req.Y, req.Color)
	if err != nil {
		c.enqueue(encodeError(err))
		return
	}
	c.enqueue(encodePixel(u))
}

func (c *client) handleGetTiles(raw []byte) {
	var req getTilesReq
	if err := json.Unmarshal(raw, &req); err != nil {
		c.enqueue(encodeError(domain.ProtocolError{Msg: "unparsable get_tiles payload"}))
		return
	}

	tiles, err := c.srv.opts.Service.GetTiles(c.ctx, req.Tiles)
	if err != nil {
		c.enqueue(encodeError(err))
		return
	}

	out := make([]tilePayload, len(tiles))
	for i, td := range tiles {
		out[i] = tilePayload{TileX: td.TileX, TileY: td.TileY, Data: td.Data}
	}
	c.enqueue(encodeTiles(out))
}

func (c *client) handlePlaceImage(raw []byte) {
	var req placeImageReq
	if err := json.Unmarshal(raw, &req); err != nil {
		c.enqueue(encodeError(domain.ProtocolError{Msg: "unparsable place_image payload"}))
		return
	}

	pixels, err := normalizePixels(req.Pixels)
	if err != nil {
		c.enqueue(encodeError(err))
		return
	}

	if err := c.srv.opts.Placer.Place(c.ctx, c.id, c.key, req.StartX, req.StartY, pixels, c); err != nil {
		c.enqueue(encodeError(err))
	}
}

func (c *client) handlePlaceChunk(raw []byte) {
	var req placeChunkReq
	if err := json.Unmarshal(raw, &req); err != nil {
		c.enqueue(encodeError(domain.ProtocolError{Msg: "unparsable place_image_chunk payload"}))
		return
	}

	pixels, err := normalizePixels(req.Pixels)
	if err != nil {
		c.enqueue(encodeError(err))
		return
	}

	res, err := c.srv.opts.Uploads.Submit(req.ImageID, req.ChunkIndex, req.TotalChunks,
		c.id, req.StartX, req.StartY, pixels)
	if err != nil {
		c.enqueue(encodeError(err))
		return
	}

	c.enqueue(encodeChunkReceived(res.ImageID, res.ChunksReceived, res.TotalChunks))

	// último chunk: a lista montada segue o mesmo fluxo do place_image
	if res.Complete {
		if err := c.srv.opts.Placer.Place(c.ctx, c.id, c.key, res.StartX, res.StartY, res.Pixels, c); err != nil {
			c.enqueue(encodeError(err))
		}
	}
}

// --- application.Listener: eventos de desenho só para a conexão dona ---

func (c *client) DrawingStarted(total int, estimate time.Duration) {
	c.enqueue(encodeDrawStarted(total, estimate))
}

func (c *client) DrawingProgress(placed, total int) {
	c.enqueue(encodeDrawProgress(placed, total))
}

func (c *client) DrawingComplete(placed int) {
	c.enqueue(encodeDrawComplete(placed))
}
