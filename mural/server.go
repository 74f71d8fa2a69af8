package mural

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"pixel-mural/mural/application"
	"pixel-mural/mural/domain"
)

// Options do adapter. Service, Placer e Uploads são obrigatórios.
type Options struct {
	Service *application.Service
	Placer  *application.Placer
	Uploads *application.Uploads

	// MsgRates é o throttle de transporte por origem (opcional).
	MsgRates domain.LimiterStore

	// Extração da chave remota; se KeyFn for nil, usa DefaultKeyFunc.
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	// SendBuffer é o tamanho do buffer de escrita por conexão.
	SendBuffer int
}

// Server é o adapter websocket: aceita conexões em /ws, despacha o protocolo
// para a camada application e repassa o fanout para todos os clientes.
type Server struct {
	opts     Options
	hub      *hub
	upgrader websocket.Upgrader

	// contexto raiz das conexões; definido em Run
	ctx context.Context
}

func NewServer(opts Options) *Server {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	return &Server{
		opts: opts,
		hub:  newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run inicia o hub e a assinatura do fanout. Deve ser chamado antes de
// servir requisições; pare cancelando o contexto.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	go s.hub.run(ctx)
	if s.opts.Service.Fanout != nil {
		if err := s.hub.forward(ctx, s.opts.Service.Fanout); err != nil {
			return err
		}
	}
	return nil
}

// Router monta as rotas do servidor: o endpoint websocket e o healthcheck.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.serveWS)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return r
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	key := s.opts.KeyFn(r)

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	c := &client{
		id:     uuid.NewString(),
		key:    key,
		sock:   sock,
		send:   make(chan []byte, s.opts.SendBuffer),
		done:   make(chan struct{}),
		srv:    s,
		ctx:    ctx,
		cancel: cancel,
	}

	s.hub.register <- c
	go c.writePump()
	c.readPump()
}
