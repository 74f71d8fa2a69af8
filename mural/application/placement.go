package application

import (
	"context"
	"log"
	"sync"
	"time"

	"pixel-mural/mural/domain"
)

// Listener recebe os eventos de um job de desenho. Entregues apenas à
// conexão dona do job, nunca pelo broadcast global.
type Listener interface {
	DrawingStarted(totalPixels int, estimate time.Duration)
	DrawingProgress(pixelsPlaced, totalPixels int)
	DrawingComplete(pixelsPlaced int)
}

// Placer agenda jobs de desenho em massa: drena uma lista de pixels no
// TileStore em lotes de tamanho fixo a cada tick (referência: 50 pixels a
// cada 50ms = 1000 pixels/s), publicando cada escrita aceita no fanout.
//
// Invariante por identidade: no máximo um job ativo por conexão dona; um
// segundo pedido enquanto há job ativo é rejeitado com conflito, não
// enfileirado. Cancelamento (desconexão do dono ou pedido explícito) para de
// agendar novos lotes sem desfazer pixels já aplicados.
type Placer struct {
	geo       domain.Geometry
	tiles     domain.TileStore
	fanout    domain.Fanout
	admission Admission

	pool           domain.SlotPool
	acquireTimeout time.Duration

	batchSize     int
	tick          time.Duration
	progressEvery int
	maxPixels     int

	mu   sync.Mutex
	jobs map[string]*placementJob
}

type placementJob struct {
	cancel      context.CancelFunc
	release     func()
	releaseOnce sync.Once
}

func (j *placementJob) done() {
	if j.release != nil {
		j.releaseOnce.Do(j.release)
	}
}

type PlacerOption func(*Placer)

// WithDrainRate ajusta o lote e o intervalo do dreno (vazão = batch/tick).
func WithDrainRate(batch int, tick time.Duration) PlacerOption {
	return func(p *Placer) {
		p.batchSize = batch
		p.tick = tick
	}
}

// WithProgressEvery ajusta de quantos em quantos pixels o dono recebe
// notificação de progresso.
func WithProgressEvery(n int) PlacerOption {
	return func(p *Placer) { p.progressEvery = n }
}

// WithJobPool limita quantos jobs de desenho rodam simultaneamente no
// processo. Aquisição espera até o timeout; sem vaga, o pedido é rejeitado.
func WithJobPool(pool domain.SlotPool, acquireTimeout time.Duration) PlacerOption {
	return func(p *Placer) {
		p.pool = pool
		p.acquireTimeout = acquireTimeout
	}
}

// WithMaxPixels limita o tamanho de uma imagem. 0 = sem limite.
func WithMaxPixels(n int) PlacerOption {
	return func(p *Placer) { p.maxPixels = n }
}

func NewPlacer(geo domain.Geometry, tiles domain.TileStore, fanout domain.Fanout, admission Admission, opts ...PlacerOption) *Placer {
	p := &Placer{
		geo:           geo,
		tiles:         tiles,
		fanout:        fanout,
		admission:     admission,
		batchSize:     50,
		tick:          50 * time.Millisecond,
		progressEvery: 500,
		jobs:          make(map[string]*placementJob),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Place valida a imagem, admite na classe image e inicia o job da conexão
// owner. O job herda ctx: cancelar o contexto da conexão cancela o job.
//
// Erros possíveis: ValidationError (lista vazia/grande demais/pixel fora do
// canvas), RateLimitError (admissão negada ou processo sem vaga de job),
// ConflictError (owner já tem job ativo).
func (p *Placer) Place(ctx context.Context, owner, key string, startX, startY int, pixels []domain.Pixel, l Listener) error {
	if len(pixels) == 0 {
		return domain.ValidationError{Msg: "empty pixel list"}
	}
	if p.maxPixels > 0 && len(pixels) > p.maxPixels {
		return domain.ValidationError{Msg: "image too large"}
	}
	for _, px := range pixels {
		if !p.geo.Contains(startX+px.DX, startY+px.DY) {
			return domain.ValidationError{Msg: "image pixel out of canvas bounds"}
		}
	}

	dec := p.admission.Decide(ctx, key, domain.OpImage)
	if !dec.Allowed {
		return domain.RateLimitError{RetryAfter: dec.RetryAfter}
	}

	// reserva a vaga da identidade antes de adquirir a vaga do processo,
	// para que o conflito seja detectado sem bloquear o mutex
	job := &placementJob{}
	p.mu.Lock()
	if _, active := p.jobs[owner]; active {
		p.mu.Unlock()
		return domain.ConflictError{Msg: "drawing already in progress for this connection"}
	}
	p.jobs[owner] = job
	p.mu.Unlock()

	if p.pool != nil {
		release, ok := p.acquireSlot(ctx)
		if !ok {
			p.remove(owner, job)
			return domain.RateLimitError{RetryAfter: p.tick}
		}
		job.release = release
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel

	go p.run(jobCtx, owner, job, startX, startY, pixels, l)
	return nil
}

func (p *Placer) acquireSlot(ctx context.Context) (func(), bool) {
	if p.acquireTimeout <= 0 {
		return p.pool.Acquire(ctx)
	}
	acqCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()
	return p.pool.Acquire(acqCtx)
}

func (p *Placer) run(ctx context.Context, owner string, job *placementJob, startX, startY int, pixels []domain.Pixel, l Listener) {
	defer func() {
		p.remove(owner, job)
		job.cancel()
	}()

	total := len(pixels)
	ticks := (total + p.batchSize - 1) / p.batchSize
	l.DrawingStarted(total, time.Duration(ticks)*p.tick)

	t := time.NewTicker(p.tick)
	defer t.Stop()

	cursor := 0
	for {
		select {
		case <-ctx.Done():
			// cancelado: pixels já aplicados permanecem
			return
		case <-t.C:
			end := cursor + p.batchSize
			if end > total {
				end = total
			}
			for cursor < end {
				px := pixels[cursor]
				x, y := startX+px.DX, startY+px.DY
				if err := p.tiles.SetPixel(ctx, x, y, px.Color); err != nil {
					log.Printf("placement: set pixel (%d,%d) error: %v", x, y, err)
				} else if p.fanout != nil {
					u := domain.Update{
						X:         x,
						Y:         y,
						Color:     px.Color,
						Timestamp: time.Now().UnixMilli(),
						Origin:    owner,
					}
					if err := p.fanout.Publish(ctx, u); err != nil {
						log.Printf("placement: fanout publish error: %v", err)
					}
				}
				cursor++
				if p.progressEvery > 0 && cursor%p.progressEvery == 0 && cursor < total {
					l.DrawingProgress(cursor, total)
				}
			}
			if cursor >= total {
				l.DrawingComplete(cursor)
				return
			}
		}
	}
}

// Cancel interrompe o job ativo de uma conexão, se houver. Chamado na
// desconexão do dono e no pedido explícito de cancelamento.
func (p *Placer) Cancel(owner string) bool {
	p.mu.Lock()
	job, ok := p.jobs[owner]
	if ok {
		delete(p.jobs, owner)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	if job.cancel != nil {
		job.cancel()
	}
	job.done()
	return true
}

// Active informa se a conexão tem job de desenho em andamento.
func (p *Placer) Active(owner string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.jobs[owner]
	return ok
}

// remove tira o job do registro apenas se ainda for o mesmo (o dono pode já
// ter iniciado outro depois de um Cancel).
func (p *Placer) remove(owner string, job *placementJob) {
	p.mu.Lock()
	if cur, ok := p.jobs[owner]; ok && cur == job {
		delete(p.jobs, owner)
	}
	p.mu.Unlock()
	job.done()
}
