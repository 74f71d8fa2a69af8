package application

import (
	"context"
	"log"
	"time"

	"pixel-mural/mural/domain"
)

// Policy é o par (limite, janela) de uma classe de admissão.
// Os valores concretos são configuração do operador; o mecanismo
// (janela deslizante) é fixo.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Admission concentra a regra de admissão do canvas.
//
// Ela não sabe nada sobre o protocolo, apenas retorna uma decisão.
// Política de falha: se o backing store do limiter estiver indisponível,
// fail-open: admitir. Negar todo o tráfego num soluço de infra é pior do
// que passar temporariamente sem throttle.
type Admission struct {
	Limiter domain.WindowLimiter
	Stats   domain.StatsStore

	Pixel Policy
	Image Policy
}

// Decide checa a admissão de uma operação (domain.OpPixel ou domain.OpImage)
// para a chave de origem. Estatísticas são best-effort.
func (a Admission) Decide(ctx context.Context, key string, op string) domain.Decision {
	pol := a.Pixel
	if op == domain.OpImage {
		pol = a.Image
	}

	dec := domain.Decision{Allowed: true}
	if a.Limiter != nil && pol.Limit > 0 {
		ok, err := a.Limiter.Allow(ctx, op+":"+key, pol.Limit, pol.Window)
		if err != nil {
			// fail-open: admite e loga
			log.Printf("admission: limiter error, failing open: op=%s err=%v", op, err)
			ok = true
		}
		if !ok {
			dec = domain.Decision{Allowed: false, RetryAfter: pol.Window}
		}
	}

	if a.Stats != nil {
		_ = a.Stats.Record(ctx, domain.StatsEvent{
			Key:     domain.Key(key),
			Op:      op,
			Allowed: dec.Allowed,
			At:      time.Now(),
		})
	}
	return dec
}
