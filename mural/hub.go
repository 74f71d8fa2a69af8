package mural

import (
	"context"
	"log"

	"pixel-mural/mural/domain"
)

// hub mantém o conjunto de conexões ativas e repassa os updates do fanout
// para todas elas. Uma única goroutine é dona do mapa de clientes; registro,
// remoção e broadcast chegam por canal (sem mutex).
type hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// run é a única goroutine dona do mapa de clientes. Ela nunca fecha c.send:
// outros produtores (readPump, callbacks de desenho) também escrevem nele.
// Derrubar um cliente é sinalizar o done dele e tirá-lo do mapa.
func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.shutdown()
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			log.Printf("hub: client registered id=%s key=%s total=%d", c.id, c.key, len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.shutdown()
				log.Printf("hub: client unregistered id=%s total=%d", c.id, len(h.clients))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// cliente sem folga no buffer de escrita: derruba
					c.shutdown()
					delete(h.clients, c)
				}
			}
		}
	}
}

// forward assina o fanout e alimenta o broadcast até ctx encerrar.
// Todo update aceito, local ou de um processo par, passa por aqui.
func (h *hub) forward(ctx context.Context, fanout domain.Fanout) error {
	ch, err := fanout.Subscribe(ctx)
	if err != nil {
		return err
	}
	go func() {
		for u := range ch {
			select {
			case h.broadcast <- encodeUpdate(u):
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
